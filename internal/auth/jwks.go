package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/collabcast/marketplace/internal/config"
)

// NewJWKS returns the identity provider's signing keys as a JWT key function.
// The set is refreshed in the background every JWKSRefresh until ctx is done.
// A token with an unknown kid triggers a refetch at most once per
// JWKSMinRefetch. A failed refresh keeps the previous keys.
func NewJWKS(ctx context.Context, cfg config.AuthConfig, log *zap.Logger) (keyfunc.Keyfunc, error) {
	minRefetch := cfg.JWKSMinRefetch
	if minRefetch <= 0 {
		minRefetch = 10 * time.Second
	}
	kf, err := keyfunc.NewDefaultOverrideCtx(ctx, []string{cfg.JWKSURL}, keyfunc.Override{
		HTTPTimeout:       10 * time.Second,
		RateLimitWaitMax:  5 * time.Second,
		RefreshInterval:   cfg.JWKSRefresh,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(minRefetch), 1),
		RefreshErrorHandlerFunc: func(u string) func(ctx context.Context, err error) {
			return func(_ context.Context, err error) {
				log.Warn("jwks refresh failed", zap.String("url", u), zap.Error(err))
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return kf, nil
}

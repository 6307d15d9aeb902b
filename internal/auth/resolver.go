package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/collabcast/marketplace/internal/db"
	"github.com/collabcast/marketplace/internal/metrics"
	"github.com/collabcast/marketplace/internal/models"
)

var (
	ErrNoToken            = errors.New("missing token")
	ErrIdentityUnverified = errors.New("identity unverified")
)

// Trust tells verified identities from hash-derived anonymous ones.
type Trust string

const (
	TrustVerified  Trust = "verified"
	TrustAnonymous Trust = "anonymous"
)

type Identity struct {
	UserID string
	FID    int64 // 0 for anonymous identities
	Trust  Trust
}

func (i *Identity) Verified() bool { return i != nil && i.Trust == TrustVerified }

// TokenVerifier is satisfied by *QuickAuthVerifier.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Claims, error)
}

// Resolver maps bearer tokens to internal user ids.
type Resolver struct {
	verifier       TokenVerifier
	db             *gorm.DB
	allowAnonymous bool
	metrics        metrics.Recorder
	log            *zap.Logger
}

func NewResolver(verifier TokenVerifier, g *gorm.DB, allowAnonymous bool, rec metrics.Recorder, log *zap.Logger) *Resolver {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Resolver{verifier: verifier, db: g, allowAnonymous: allowAnonymous, metrics: rec, log: log}
}

// FIDUserID is the internal id of a verified principal.
func FIDUserID(fid int64) string {
	return "usr_fid_" + strconv.FormatInt(fid, 10)
}

// AnonymousUserID derives a stable id from the raw token bytes.
func AnonymousUserID(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return "usr_" + hex.EncodeToString(sum[:])[:24]
}

// ResolveUserID verifies raw and upserts the local user. A token shaped like
// a JWT that fails verification is rejected with ErrIdentityUnverified and
// never receives a fallback id. Opaque tokens get an anonymous id only when
// anonymous sessions are allowed.
func (r *Resolver) ResolveUserID(ctx context.Context, raw string) (*Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoToken
	}

	claims, err := r.verifier.Verify(ctx, raw)
	if err == nil {
		id := &Identity{UserID: FIDUserID(claims.FID), FID: claims.FID, Trust: TrustVerified}
		if err := r.upsertUser(ctx, id.UserID, claims); err != nil {
			return nil, err
		}
		r.record("verified")
		return id, nil
	}

	if looksLikeJWT(raw) || !r.allowAnonymous {
		r.record("rejected")
		r.log.Debug("token verification failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrIdentityUnverified, err)
	}
	r.record("anonymous")
	return &Identity{UserID: AnonymousUserID(raw), Trust: TrustAnonymous}, nil
}

func (r *Resolver) record(outcome string) {
	r.metrics.IncCounter(metrics.IdentityResolution, map[string]string{"outcome": outcome})
}

// upsertUser refreshes the local copy. Empty claims never overwrite stored
// profile fields.
func (r *Resolver) upsertUser(ctx context.Context, userID string, c *Claims) error {
	u := models.User{
		ID:          userID,
		FID:         c.FID,
		Handle:      c.Username,
		DisplayName: c.DisplayName,
		AvatarURL:   c.PfpURL,
	}
	cols := []string{"fid", "updated_at"}
	if c.Username != "" {
		cols = append(cols, "handle")
	}
	if c.DisplayName != "" {
		cols = append(cols, "display_name")
	}
	if c.PfpURL != "" {
		cols = append(cols, "avatar_url")
	}
	err := db.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}).Create(&u).Error
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

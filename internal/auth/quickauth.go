package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/collabcast/marketplace/internal/config"
)

// Claims are the Quick Auth claims the service consumes.
type Claims struct {
	FID         int64
	Username    string
	DisplayName string
	PfpURL      string
}

// QuickAuthVerifier checks Quick Auth JWTs against the provider's JWKS.
type QuickAuthVerifier struct {
	keys   keyfunc.Keyfunc
	parser *jwt.Parser
}

func NewQuickAuthVerifier(keys keyfunc.Keyfunc, cfg config.AuthConfig) *QuickAuthVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"EdDSA", "RS256", "ES256"}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithJSONNumber(),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &QuickAuthVerifier{keys: keys, parser: jwt.NewParser(opts...)}
}

// Verify returns the claims of a valid token. Any failure, including an
// unreachable JWKS endpoint, is an error.
func (v *QuickAuthVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	token, err := v.parser.Parse(raw, v.keys.KeyfuncCtx(ctx))
	if err != nil {
		return nil, err
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("token invalid")
	}

	fid, err := numericClaim(mc["sub"])
	if err != nil {
		return nil, fmt.Errorf("sub: %w", err)
	}
	return &Claims{
		FID:         fid,
		Username:    stringClaim(mc, "username"),
		DisplayName: stringClaim(mc, "displayName", "display_name"),
		PfpURL:      stringClaim(mc, "pfpUrl", "pfp_url"),
	}, nil
}

func numericClaim(v interface{}) (int64, error) {
	var s string
	switch n := v.(type) {
	case json.Number:
		s = n.String()
	case string:
		s = n
	default:
		return 0, errors.New("missing or not a number")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid fid %q", s)
	}
	return id, nil
}

func stringClaim(mc jwt.MapClaims, names ...string) string {
	for _, name := range names {
		if s, ok := mc[name].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// looksLikeJWT reports whether raw has the compact JWS shape with a JSON
// header. Such tokens never fall back to an anonymous identity.
func looksLikeJWT(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return false
	}
	var header map[string]interface{}
	b, err := jwt.NewParser().DecodeSegment(parts[0])
	if err != nil {
		return false
	}
	return json.Unmarshal(b, &header) == nil
}

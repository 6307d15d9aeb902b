package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/collabcast/marketplace/internal/config"
	"github.com/collabcast/marketplace/internal/models"
)

const testIssuer = "https://auth.farcaster.xyz"

// provider is a fake identity provider serving a JWKS.
type provider struct {
	t       *testing.T
	srv     *httptest.Server
	keys    atomic.Value // []map[string]string
	fetches atomic.Int32
	priv    ed25519.PrivateKey
	kid     string
}

func newProvider(t *testing.T) *provider {
	t.Helper()
	p := &provider{t: t}
	p.rotate("k1")
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"keys": p.keys.Load()})
	}))
	t.Cleanup(p.srv.Close)
	return p
}

// rotate replaces the published key set with a fresh Ed25519 key.
func (p *provider) rotate(kid string) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		p.t.Fatal(err)
	}
	p.priv, p.kid = priv, kid
	p.keys.Store([]map[string]string{{
		"kty": "OKP",
		"crv": "Ed25519",
		"kid": kid,
		"use": "sig",
		"x":   base64.RawURLEncoding.EncodeToString(pub),
	}})
}

func (p *provider) authConfig() config.AuthConfig {
	return config.AuthConfig{
		Issuer:         testIssuer,
		JWKSURL:        p.srv.URL,
		JWKSRefresh:    time.Hour,
		JWKSMinRefetch: time.Millisecond,
		Leeway:         5 * time.Second,
		SessionSecret:  "0123456789abcdef0123456789abcdef",
		SessionTTL:     8 * time.Hour,
		CookieName:     "cm_session",
		CookieSecure:   true,
	}
}

// verifierFor builds a verifier whose key set lives as long as the test.
func verifierFor(t *testing.T, cfg config.AuthConfig) *QuickAuthVerifier {
	t.Helper()
	keys, err := NewJWKS(testContext(t), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewJWKS: %v", err)
	}
	return NewQuickAuthVerifier(keys, cfg)
}

func (p *provider) verifier() *QuickAuthVerifier {
	return verifierFor(p.t, p.authConfig())
}

// token signs claims with the current key. Missing iss and exp are filled in.
func (p *provider) token(claims jwt.MapClaims) string {
	p.t.Helper()
	if _, ok := claims["iss"]; !ok {
		claims["iss"] = testIssuer
	}
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = p.kid
	s, err := tok.SignedString(p.priv)
	if err != nil {
		p.t.Fatal(err)
	}
	return s
}

func (p *provider) fidToken(fid int64) string {
	return p.token(jwt.MapClaims{"sub": fid, "username": "alice", "displayName": "Alice", "pfpUrl": "https://img/a.png"})
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	g, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := models.AutoMigrate(g); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return g
}

// testContext mirrors testing.T.Context (Go 1.24+): a context canceled when
// the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/collabcast/marketplace/internal/auth"
	"github.com/collabcast/marketplace/internal/chain"
	"github.com/collabcast/marketplace/internal/chain/chaintest"
	"github.com/collabcast/marketplace/internal/config"
	"github.com/collabcast/marketplace/internal/fees"
	"github.com/collabcast/marketplace/internal/ledger"
	"github.com/collabcast/marketplace/internal/market"
	"github.com/collabcast/marketplace/internal/models"
	"github.com/collabcast/marketplace/internal/posting"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testIssuer = "https://auth.farcaster.xyz"

var (
	feeContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	usdc        = common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	payer       = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

// ── Test server ─────────────────────────────────────────────────────────────

type testServer struct {
	t      *testing.T
	r      *gin.Engine
	db     *gorm.DB
	node   *chaintest.Backend
	signer ed25519.PrivateKey
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

// newTestServer wires the full stack against a fake node with fees enabled at
// 1 USDC, a fake JWKS endpoint and miniredis. fid 1 is an admin.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "OKP", "crv": "Ed25519", "kid": "k1", "use": "sig",
			"x": base64.RawURLEncoding.EncodeToString(pub),
		}}})
	}))
	t.Cleanup(jwks.Close)

	cfg := &config.Config{
		Chain: config.ChainConfig{
			ChainID:       84532,
			FeeContract:   strings.ToLower(feeContract.Hex()),
			TokenAddress:  strings.ToLower(usdc.Hex()),
			TokenDecimals: 6,
			RPCTimeout:    2 * time.Second,
		},
		Fees: config.FeesConfig{FailOpen: true},
		Auth: config.AuthConfig{
			Issuer:        testIssuer,
			JWKSURL:       jwks.URL,
			JWKSRefresh:   time.Hour,
			Leeway:        5 * time.Second,
			SessionSecret: "0123456789abcdef0123456789abcdef",
			SessionTTL:    time.Hour,
			CookieName:    "cm_session",
			AdminFIDs:     []string{"1"},
		},
	}

	node := chaintest.New()
	node.Enabled = true
	node.Price.SetInt64(1_000_000)
	node.Token = usdc
	client, err := chain.NewClient(node, feeContract, 84532, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	g := setupTestDB(t)

	reader := fees.NewReader(client, cfg, rdb, nil, log)
	l := ledger.New(g, log)
	gate := posting.NewGate(g, reader, fees.NewVerifier(client, cfg, nil, log), l, nil, log)
	keys, err := auth.NewJWKS(testContext(t), cfg.Auth, log)
	if err != nil {
		t.Fatal(err)
	}
	resolver := auth.NewResolver(auth.NewQuickAuthVerifier(keys, cfg.Auth), g, false, nil, log)
	a := auth.NewAuthenticator(resolver, rdb, cfg.Auth, log)

	r := gin.New()
	r.GET("/healthz", Health(g))
	NewHandler(reader, gate, market.NewStore(g), l, a, log).Register(r.Group("/api", a.Identify()))

	return &testServer{t: t, r: r, db: g, node: node, signer: priv}
}

func (s *testServer) token(fid int64) string {
	s.t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"iss":         testIssuer,
		"sub":         fid,
		"exp":         time.Now().Add(time.Hour).Unix(),
		"username":    fmt.Sprintf("user%d", fid),
		"displayName": fmt.Sprintf("User %d", fid),
	})
	tok.Header["kid"] = "k1"
	signed, err := tok.SignedString(s.signer)
	if err != nil {
		s.t.Fatal(err)
	}
	return signed
}

func (s *testServer) do(method, path string, fid int64, payload any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			s.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if fid > 0 {
		req.Header.Set("Authorization", "Bearer "+s.token(fid))
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func (s *testServer) pay(action string) string {
	return s.node.AddFeePayment(feeContract, payer, action, big.NewInt(1_000_000)).Hex()
}

func (s *testServer) count(model any) int64 {
	s.t.Helper()
	var n int64
	if err := s.db.Model(model).Count(&n).Error; err != nil {
		s.t.Fatal(err)
	}
	return n
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return m
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) map[string]any {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, w.Code, w.Body.String())
	}
	m := decode(t, w)
	if m["ok"] != false || m["code"] != code {
		t.Errorf("expected code %q, got %v", code, m)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control: got %q", got)
	}
	return m
}

var validProject = map[string]any{
	"title":        "Frame game",
	"pitch":        "A tiny game that lives inside a frame",
	"project_type": "game",
	"skills":       "go, design",
}

// ── Fees ────────────────────────────────────────────────────────────────────

func TestFees(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/fees", 0, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	f, _ := decode(t, w)["fees"].(map[string]any)
	if f["enabled"] != true || f["price"] != "1000000" || f["price_display"] != "1.00" {
		t.Errorf("unexpected fees: %v", f)
	}
	if f["contract"] != strings.ToLower(feeContract.Hex()) || f["token"] != strings.ToLower(usdc.Hex()) {
		t.Errorf("addresses: %v", f)
	}
	if f["chain_id"] != float64(84532) {
		t.Errorf("chain_id: %v", f["chain_id"])
	}
}

func TestFees_FailOpen(t *testing.T) {
	s := newTestServer(t)
	s.node.CallErr = errors.New("rpc down")

	w := s.do(http.MethodGet, "/api/fees", 0, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	f, _ := decode(t, w)["fees"].(map[string]any)
	if f["enabled"] != false || f["price"] != nil {
		t.Errorf("expected fees reported disabled, got %v", f)
	}
}

// ── Projects ────────────────────────────────────────────────────────────────

func TestCreateProject_RequiresVerifiedIdentity(t *testing.T) {
	s := newTestServer(t)
	expectError(t, s.do(http.MethodPost, "/api/projects", 0, validProject), http.StatusUnauthorized, "unauthorized")
}

func TestCreateProject_PaymentRequired(t *testing.T) {
	s := newTestServer(t)

	expectError(t, s.do(http.MethodPost, "/api/projects", 3, validProject), http.StatusPaymentRequired, "payment_required")
	if n := s.count(&models.Project{}); n != 0 {
		t.Errorf("expected no projects, got %d", n)
	}
}

func TestCreateProject_PaidThenReused(t *testing.T) {
	s := newTestServer(t)
	tx := s.pay("project")

	body := map[string]any{"payment_tx": tx}
	for k, v := range validProject {
		body[k] = v
	}
	w := s.do(http.MethodPost, "/api/projects", 3, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	m := decode(t, w)
	project, _ := m["project"].(map[string]any)
	if project["payment_tx"] != strings.ToLower(tx) || project["owner_id"] != "usr_fid_3" {
		t.Errorf("unexpected project: %v", project)
	}
	payment, _ := m["payment"].(map[string]any)
	if payment["amount_display"] != "1.00" || payment["action"] != "project" {
		t.Errorf("unexpected payment: %v", payment)
	}

	// Same hash again, even for another user.
	expectError(t, s.do(http.MethodPost, "/api/projects", 4, body), http.StatusConflict, "payment_used")
	if n := s.count(&models.Project{}); n != 1 {
		t.Errorf("expected 1 project, got %d", n)
	}
}

func TestCreateProject_PaymentFailures(t *testing.T) {
	tests := []struct {
		name   string
		tx     func(s *testServer) string
		status int
		code   string
		reason string
	}{
		{"wrong action", func(s *testServer) string { return s.pay("profile") }, http.StatusBadRequest, "payment_failed", "action_mismatch"},
		{"malformed hash", func(*testServer) string { return "0x1234" }, http.StatusBadRequest, "payment_failed", "invalid_transaction_hash"},
		{"unknown hash", func(*testServer) string { return "0x" + strings.Repeat("ab", 32) }, http.StatusBadRequest, "payment_failed", "transaction_not_found"},
		{"node down", func(s *testServer) string {
			tx := s.pay("project")
			s.node.ReceiptErr = errors.New("connection refused")
			return tx
		}, http.StatusServiceUnavailable, "chain_unavailable", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			body := map[string]any{"payment_tx": tt.tx(s)}
			for k, v := range validProject {
				body[k] = v
			}
			m := expectError(t, s.do(http.MethodPost, "/api/projects", 3, body), tt.status, tt.code)
			if tt.reason != "" && m["reason"] != tt.reason {
				t.Errorf("reason: got %v want %s", m["reason"], tt.reason)
			}
			if n := s.count(&models.PaymentRecord{}); n != 0 {
				t.Errorf("payment recorded on failure: %d", n)
			}
		})
	}
}

func TestCreateProject_ValidationBeforeChain(t *testing.T) {
	s := newTestServer(t)
	calls := s.node.Calls()

	m := expectError(t, s.do(http.MethodPost, "/api/projects", 3, map[string]any{"title": "x", "pitch": "short"}), http.StatusBadRequest, "validation")
	fields, _ := m["fields"].(map[string]any)
	if _, ok := fields["title"]; !ok {
		t.Errorf("title error missing: %v", m)
	}
	if s.node.Calls() != calls {
		t.Error("chain was queried for invalid input")
	}
}

func TestCreateProject_FeesDisabled(t *testing.T) {
	s := newTestServer(t)
	s.node.Enabled = false

	w := s.do(http.MethodPost, "/api/projects", 3, validProject)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if _, ok := decode(t, w)["payment"]; ok {
		t.Error("no payment expected when fees are disabled")
	}
}

func TestProjects_ReadAndUpdate(t *testing.T) {
	s := newTestServer(t)
	s.node.Enabled = false

	w := s.do(http.MethodPost, "/api/projects", 3, validProject)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	id, _ := decode(t, w)["project"].(map[string]any)["id"].(string)

	w = s.do(http.MethodGet, "/api/projects/"+id, 0, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	expectError(t, s.do(http.MethodGet, "/api/projects/nope", 0, nil), http.StatusNotFound, "not_found")

	w = s.do(http.MethodGet, "/api/projects?skills=GO", 0, nil)
	if list, _ := decode(t, w)["projects"].([]any); len(list) != 1 {
		t.Errorf("list by skill: %v", list)
	}

	expectError(t, s.do(http.MethodPatch, "/api/projects/"+id, 4, map[string]any{"title": "Mine now"}), http.StatusForbidden, "forbidden")

	w = s.do(http.MethodPatch, "/api/projects/"+id, 3, map[string]any{"status": "archived"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["project"].(map[string]any)["status"]; got != "archived" {
		t.Errorf("status: %v", got)
	}
}

// ── Profiles ────────────────────────────────────────────────────────────────

func TestProfile_CreateGatedUpdateFree(t *testing.T) {
	s := newTestServer(t)
	profile := map[string]any{"display_name": "Alice", "handle": "@alice", "skills": []string{"go"}}

	w := s.do(http.MethodGet, "/api/profile", 3, nil)
	if w.Code != http.StatusOK || decode(t, w)["profile"] != nil {
		t.Fatalf("expected empty profile, got %d %s", w.Code, w.Body.String())
	}

	expectError(t, s.do(http.MethodPost, "/api/profile", 3, profile), http.StatusPaymentRequired, "payment_required")

	// A project payment cannot buy a profile.
	profile["payment_tx"] = s.pay("project")
	m := expectError(t, s.do(http.MethodPost, "/api/profile", 3, profile), http.StatusBadRequest, "payment_failed")
	if m["reason"] != "action_mismatch" {
		t.Errorf("reason: %v", m["reason"])
	}

	profile["payment_tx"] = s.pay("profile")
	w = s.do(http.MethodPost, "/api/profile", 3, profile)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	created, _ := decode(t, w)["profile"].(map[string]any)
	if user, _ := created["user"].(map[string]any); user["handle"] != "alice" {
		t.Errorf("handle: %v", created)
	}

	delete(profile, "payment_tx")
	profile["bio"] = "Now with a bio"
	w = s.do(http.MethodPost, "/api/profile", 3, profile)
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}
	if decode(t, w)["created"] != false {
		t.Error("expected update")
	}
	if n := s.count(&models.PaymentRecord{}); n != 1 {
		t.Errorf("payments: got %d want 1", n)
	}

	w = s.do(http.MethodGet, "/api/collaborators?q=bio", 0, nil)
	if list, _ := decode(t, w)["collaborators"].([]any); len(list) != 1 {
		t.Errorf("collaborators: %v", list)
	}
}

// ── Payments ────────────────────────────────────────────────────────────────

func TestPayments_Visibility(t *testing.T) {
	s := newTestServer(t)
	tx := s.pay("project")
	body := map[string]any{"payment_tx": tx}
	for k, v := range validProject {
		body[k] = v
	}
	if w := s.do(http.MethodPost, "/api/projects", 3, body); w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}

	if w := s.do(http.MethodGet, "/api/payments/"+tx, 3, nil); w.Code != http.StatusOK {
		t.Errorf("owner: expected 200, got %d", w.Code)
	}
	expectError(t, s.do(http.MethodGet, "/api/payments/"+tx, 4, nil), http.StatusNotFound, "not_found")
	if w := s.do(http.MethodGet, "/api/payments/"+strings.ToUpper(tx[2:]), 1, nil); w.Code != http.StatusBadRequest {
		t.Errorf("hash without 0x: expected 400, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/payments/0x"+strings.ToUpper(tx[2:]), 1, nil); w.Code != http.StatusOK {
		t.Errorf("admin: expected 200, got %d", w.Code)
	}

	expectError(t, s.do(http.MethodGet, "/api/admin/payments", 3, nil), http.StatusForbidden, "forbidden")
	w := s.do(http.MethodGet, "/api/admin/payments", 1, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin list: %d", w.Code)
	}
	if list, _ := decode(t, w)["payments"].([]any); len(list) != 1 {
		t.Errorf("payments: %v", list)
	}
	expectError(t, s.do(http.MethodGet, "/api/admin/payments?before=yesterday", 1, nil), http.StatusBadRequest, "bad_request")
}

// ── Misc ────────────────────────────────────────────────────────────────────

func TestMe(t *testing.T) {
	s := newTestServer(t)

	expectError(t, s.do(http.MethodGet, "/api/me", 0, nil), http.StatusUnauthorized, "unauthorized")

	w := s.do(http.MethodGet, "/api/me", 1, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	m := decode(t, w)
	if m["user_id"] != "usr_fid_1" || m["admin"] != true || m["has_profile"] != false {
		t.Errorf("unexpected me: %v", m)
	}
	if user, _ := m["user"].(map[string]any); user["handle"] != "user1" {
		t.Errorf("user: %v", m["user"])
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	if w := s.do(http.MethodGet, "/healthz", 0, nil); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

// testContext mirrors testing.T.Context (Go 1.24+): a context canceled when
// the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vitalia/portal/internal/config"
	"github.com/vitalia/portal/internal/domain/account"
	"github.com/vitalia/portal/internal/domain/profile"
	"github.com/vitalia/portal/internal/platform/auth"
	"github.com/vitalia/portal/internal/platform/blobstore"
	"github.com/vitalia/portal/internal/platform/llm"
	"github.com/vitalia/portal/internal/platform/notification"
)

const testAPIKey = "anon-test-key"

type stubModel struct{}

func (stubModel) Complete(context.Context, string, string, llm.Params) (string, error) {
	return "", errors.New("model unavailable")
}

type testServer struct {
	e      *echo.Echo
	store  *auth.RedisStore
	tokens *auth.TokenIssuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	t.Setenv("GROQ_API_KEY", "")

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	store := auth.NewRedisStore(rdb)

	cfg := &config.Config{
		Env:          "test",
		PublicURL:    "http://localhost:5173",
		JWTSecret:    "router-test-secret",
		TokenTTL:     time.Hour,
		PublicAPIKey: testAPIKey,
		CORSOrigins:  []string{"http://localhost:5173"},
	}
	logger := zerolog.Nop()

	e := newRouter(deps{
		cfg:      cfg,
		logger:   logger,
		sessions: store,
		blobs:    blobstore.NewInMemoryBlobStore("http://localhost:8000/blobs"),
		mailer:   notification.NewNotificationManager(&notification.MockEmailSender{}, nil, logger),
		model:    stubModel{},
	})
	return &testServer{e: e, store: store, tokens: auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// bearer signs a token for a fresh user and stores its session.
func (s *testServer) bearer(t *testing.T, role string) string {
	t.Helper()
	tok, claims, err := s.tokens.Issue(uuid.NewString(), role)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	err = s.store.Save(context.Background(), auth.SessionRecord{
		ID:        claims.SessionID(),
		UserID:    claims.Subject,
		Role:      role,
		CreatedAt: time.Now(),
		ExpiresAt: claims.ExpiresAt.Time,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	return tok
}

// ---------------------------------------------------------------------------
// Router wiring
// ---------------------------------------------------------------------------

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["version"] != version {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRouter_APIKeyRequired(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set(auth.APIKeyHeader, "wrong")
	if rec := s.do(req); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key status = %d, want 401", rec.Code)
	}
}

func TestRouter_PortalRequiresSession(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.Header.Set(auth.APIKeyHeader, testAPIKey)
	if rec := s.do(req); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRouter_UnknownPathIsNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	req.Header.Set(auth.APIKeyHeader, testAPIKey)
	if rec := s.do(req); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRouter_RoleGuard(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.Header.Set(auth.APIKeyHeader, testAPIKey)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.bearer(t, auth.RoleDoctor))
	if rec := s.do(req); rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestRouter_RevokedSession(t *testing.T) {
	s := newTestServer(t)
	tok := s.bearer(t, auth.RolePatient)
	claims, err := s.tokens.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := s.store.Delete(context.Background(), claims.SessionID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.Header.Set(auth.APIKeyHeader, testAPIKey)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	if rec := s.do(req); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRouter_FunctionsAnonymousDemo(t *testing.T) {
	s := newTestServer(t)
	body := `{"vitals":{"age":45,"heartRate":110,"bloodPressureSystolic":150,"bloodPressureDiastolic":95,"oxygenLevel":93}}`
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/analyze-risk", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(auth.APIKeyHeader, testAPIKey)

	rec := s.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Success bool   `json:"success"`
		Source  string `json:"source"`
		Risk    struct {
			Level string `json:"level"`
		} `json:"risk"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success || out.Source != "demo" || out.Risk.Level == "" {
		t.Errorf("response = %+v", out)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/functions/v1/smart-rundown", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:5173")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	req.Header.Set(echo.HeaderAccessControlRequestHeaders, "authorization, apikey, content-type")

	rec := s.do(req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestRouter_WebsocketRequiresSession(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/ws?apikey="+testAPIKey, nil)
	if rec := s.do(req); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Seeding
// ---------------------------------------------------------------------------

type seedRepo struct {
	account.Repository
	mu       sync.Mutex
	emails   map[string]bool
	profiles []*profile.Profile
}

func (r *seedRepo) CreateWithProfile(_ context.Context, a *account.Account, p *profile.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emails[a.Email] {
		return account.ErrEmailTaken
	}
	r.emails[a.Email] = true
	r.profiles = append(r.profiles, p)
	return nil
}

func TestSeedDemo(t *testing.T) {
	repo := &seedRepo{emails: make(map[string]bool)}

	n, err := seedDemo(context.Background(), repo, "vitalia-demo")
	if err != nil {
		t.Fatalf("seedDemo: %v", err)
	}
	if n != len(demoAccounts) {
		t.Errorf("created = %d, want %d", n, len(demoAccounts))
	}

	var patient *profile.Profile
	for _, p := range repo.profiles {
		if p.Role == auth.RolePatient {
			patient = p
		}
	}
	if patient == nil || patient.FullName != "Sarah Johnson" || *patient.Age != 32 {
		t.Errorf("demo patient = %+v", patient)
	}

	n, err = seedDemo(context.Background(), repo, "vitalia-demo")
	if err != nil {
		t.Fatalf("second seedDemo: %v", err)
	}
	if n != 0 {
		t.Errorf("second run created = %d, want 0", n)
	}
}

func TestSeedDemo_WeakPassword(t *testing.T) {
	repo := &seedRepo{emails: make(map[string]bool)}
	if _, err := seedDemo(context.Background(), repo, "abc"); err == nil {
		t.Fatal("expected weak password error")
	}
	if len(repo.profiles) != 0 {
		t.Errorf("profiles = %d, want 0", len(repo.profiles))
	}
}

// ---------------------------------------------------------------------------
// Migrations source
// ---------------------------------------------------------------------------

func TestMigrationsFS(t *testing.T) {
	if _, err := fs.Stat(migrationsFS("", ""), "001_core.sql"); err != nil {
		t.Errorf("embedded set: %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "900_local.sql"), []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Stat(migrationsFS("", dir), "900_local.sql"); err != nil {
		t.Errorf("config dir: %v", err)
	}
	if _, err := fs.Stat(migrationsFS(dir, "/nonexistent"), "900_local.sql"); err != nil {
		t.Errorf("flag dir should win: %v", err)
	}
}

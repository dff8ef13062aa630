// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/auth"
	"github.com/tomtom215/portico/internal/authz"
	"github.com/tomtom215/portico/internal/config"
	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/events"
	"github.com/tomtom215/portico/internal/models"
	"github.com/tomtom215/portico/internal/storage"
	ws "github.com/tomtom215/portico/internal/websocket"
)

const testSecret = "api-test-secret-with-at-least-32-characters"

type apiFixture struct {
	router http.Handler
	db     *database.DB
	auth   *auth.Service
	audit  *audit.MemoryStore
}

// testEnvelope mirrors models.APIResponse with raw data for decoding.
type testEnvelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()
	dir := t.TempDir()

	db, err := database.New(&config.DatabaseConfig{
		Dialect:        "sqlite",
		Path:           filepath.Join(dir, "portico.db"),
		MaxOpenConns:   4,
		MaxIdleConns:   2,
		BusyTimeout:    10 * time.Second,
		IdempotencyTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sec := &config.SecurityConfig{
		JWTSecret:         testSecret,
		SessionTimeout:    time.Hour,
		MinPasswordLength: 8,
		InviteTTL:         24 * time.Hour,
		MaxInviteTTL:      7 * 24 * time.Hour,
		AdminUsername:     "admin",
		AdminPassword:     "admin-password",
		RateLimitDisabled: true,
		Lockout:           config.LockoutConfig{Enabled: true, MaxAttempts: 5, Duration: time.Minute},
	}
	jwtManager, err := auth.NewJWTManager(sec)
	if err != nil {
		t.Fatal(err)
	}
	state := auth.NewMemoryState()

	auditStore := audit.NewMemoryStore(1000)
	auditLog := audit.NewLogger(auditStore, audit.DefaultConfig())
	t.Cleanup(func() { _ = auditLog.Close() })

	svc := auth.NewService(db, jwtManager, state, auditLog, sec)
	if err := svc.BootstrapAdmin(context.Background()); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
	authn := auth.NewMiddleware(jwtManager, state.Revocations, db)

	enforcer, err := authz.NewEnforcer(authz.DefaultEnforcerConfig())
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}
	authzMW := authz.NewMiddleware(enforcer, auditLog)

	store, err := storage.New(storage.Config{Dir: filepath.Join(dir, "uploads"), MaxBytes: 1 << 20, ThumbnailSize: 64, AvatarSize: 32})
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	bus, err := events.NewBus(&config.EventsConfig{TopicPrefix: "portico-test"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = bus.Close() })

	hub := ws.NewHub(ws.Config{}, authn, db)
	h := NewHandler(Dependencies{
		DB:      db,
		Config:  &config.Config{Security: *sec},
		Auth:    svc,
		Authz:   authzMW,
		Storage: store,
		Hub:     hub,
		Events:  bus,
		Audit:   auditLog,
	})
	router := NewRouter(h, authn, authzMW, NewChiMiddleware(ChiMiddlewareConfigFrom(sec)))
	return &apiFixture{router: router.SetupChi(), db: db, auth: svc, audit: auditStore}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v\n%s", err, rec.Body.String())
	}
	if dst != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			t.Fatalf("decode data: %v\n%s", err, env.Data)
		}
	}
	return env
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d: %s", rec.Code, want, rec.Body.String())
	}
}

func (f *apiFixture) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": password})
	expectStatus(t, rec, http.StatusOK)
	var s auth.Session
	decode(t, rec, &s)
	if s.Token == "" {
		t.Fatal("login returned no token")
	}
	return s.Token
}

func (f *apiFixture) adminToken(t *testing.T) string {
	t.Helper()
	return f.login(t, "admin", "admin-password")
}

// userToken creates an active employee and logs them in.
func (f *apiFixture) userToken(t *testing.T, username string) (string, *models.User) {
	t.Helper()
	hash, err := auth.HashPassword("employee-password")
	if err != nil {
		t.Fatal(err)
	}
	u := &models.User{Username: username, Email: username + "@example.com", PasswordHash: hash, DisplayName: username, Role: models.RoleUser, IsActive: true}
	if err := f.db.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return f.login(t, username, "employee-password"), u
}

func TestHealth(t *testing.T) {
	f := setupAPI(t)
	rec := f.do(t, http.MethodGet, "/api/health", "", nil)
	expectStatus(t, rec, http.StatusOK)

	var health HealthResponse
	env := decode(t, rec, &health)
	if env.Status != "success" || health.Status != "healthy" || !health.Database.Connected {
		t.Errorf("health = %+v", health)
	}
	if health.Events != events.TransportInProcess {
		t.Errorf("events transport = %q", health.Events)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestNotFoundUsesEnvelope(t *testing.T) {
	f := setupAPI(t)
	rec := f.do(t, http.MethodGet, "/api/nope", "", nil)
	expectStatus(t, rec, http.StatusNotFound)
	env := decode(t, rec, nil)
	if env.Status != "error" || env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("envelope = %+v", env)
	}
}

func TestAuthentication(t *testing.T) {
	f := setupAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
		code   string
	}{
		{"no token", http.MethodGet, "/api/quotes", nil, http.StatusUnauthorized, ""},
		{"bad password", http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "wrong-password"}, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"missing fields", http.MethodPost, "/api/auth/login", map[string]string{"username": "admin"}, http.StatusBadRequest, ErrCodeValidation},
		{"unknown field", http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "x", "extra": "y"}, http.StatusBadRequest, ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, "", tt.body)
			expectStatus(t, rec, tt.want)
			if tt.code != "" {
				if env := decode(t, rec, nil); env.Error == nil || env.Error.Code != tt.code {
					t.Errorf("error = %+v, want code %s", env.Error, tt.code)
				}
			}
		})
	}

	t.Run("login and me", func(t *testing.T) {
		token := f.adminToken(t)
		rec := f.do(t, http.MethodGet, "/api/auth/me", token, nil)
		expectStatus(t, rec, http.StatusOK)
	})

	t.Run("logout revokes token", func(t *testing.T) {
		token := f.adminToken(t)
		expectStatus(t, f.do(t, http.MethodPost, "/api/auth/logout", token, nil), http.StatusNoContent)
		expectStatus(t, f.do(t, http.MethodGet, "/api/auth/me", token, nil), http.StatusUnauthorized)
	})
}

func TestRegistrationFlow(t *testing.T) {
	f := setupAPI(t)
	admin := f.adminToken(t)

	rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "bertil", "password": "bertil-password", "email": "bertil@example.com",
	})
	expectStatus(t, rec, http.StatusAccepted)
	var reg RegisterResponse
	decode(t, rec, &reg)
	if reg.Status != "pending" || reg.Pending == nil {
		t.Fatalf("register = %+v", reg)
	}

	// Pending accounts cannot log in.
	expectStatus(t, f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "bertil", "password": "bertil-password"}), http.StatusUnauthorized)

	rec = f.do(t, http.MethodPost, "/api/admin/pending/"+itoa(reg.Pending.ID)+"/approve", admin, nil)
	expectStatus(t, rec, http.StatusCreated)
	f.login(t, "bertil", "bertil-password")

	// An invite registers without approval.
	rec = f.do(t, http.MethodPost, "/api/admin/invites", admin, map[string]string{"ttl": "48h"})
	expectStatus(t, rec, http.StatusCreated)
	var invite models.InviteCode
	decode(t, rec, &invite)

	rec = f.do(t, http.MethodGet, "/api/auth/invite/"+invite.Code, "", nil)
	expectStatus(t, rec, http.StatusOK)
	var status InviteStatus
	decode(t, rec, &status)
	if !status.Valid {
		t.Error("fresh invite should be valid")
	}

	rec = f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "cecilia", "password": "cecilia-password", "invite_code": invite.Code,
	})
	expectStatus(t, rec, http.StatusCreated)
	decode(t, rec, &reg)
	if reg.Status != "active" || reg.Session == nil || reg.Session.Token == "" {
		t.Errorf("invite registration = %+v", reg)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	f := setupAPI(t)
	token, _ := f.userToken(t, "anna")

	for _, path := range []string{"/api/admin/pending", "/api/admin/invites", "/api/admin/audit", "/api/admin/performance"} {
		t.Run(path, func(t *testing.T) {
			expectStatus(t, f.do(t, http.MethodGet, path, token, nil), http.StatusForbidden)
		})
	}

	admin := f.adminToken(t)
	expectStatus(t, f.do(t, http.MethodGet, "/api/admin/performance", admin, nil), http.StatusOK)
	expectStatus(t, f.do(t, http.MethodPost, "/api/admin/backups", admin, nil), http.StatusServiceUnavailable)
}

func TestAdminCannotDeactivateSelf(t *testing.T) {
	f := setupAPI(t)
	admin := f.adminToken(t)
	rec := f.do(t, http.MethodGet, "/api/auth/me", admin, nil)
	var me models.User
	decode(t, rec, &me)

	rec = f.do(t, http.MethodPut, "/api/admin/users/"+itoa(me.ID)+"/active", admin, map[string]bool{"active": false})
	expectStatus(t, rec, http.StatusForbidden)

	_, anna := f.userToken(t, "anna")
	rec = f.do(t, http.MethodPut, "/api/admin/users/"+itoa(anna.ID)+"/active", admin, map[string]bool{"active": false})
	expectStatus(t, rec, http.StatusOK)
	var updated models.User
	decode(t, rec, &updated)
	if updated.IsActive {
		t.Error("user still active")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/config"
	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/models"
)

type serviceFixture struct {
	svc    *Service
	db     *database.DB
	events *audit.MemoryStore
	audit  *audit.Logger
	cfg    *config.SecurityConfig
}

// drainAudit flushes pending audit events and returns their types.
func (f *serviceFixture) drainAudit(t *testing.T) map[audit.EventType]int {
	t.Helper()
	if err := f.audit.Close(); err != nil {
		t.Fatal(err)
	}
	events, err := f.events.Query(context.Background(), audit.QueryFilter{Limit: 1000})
	if err != nil {
		t.Fatal(err)
	}
	out := map[audit.EventType]int{}
	for _, e := range events {
		out[e.Type]++
	}
	return out
}

func setupService(t *testing.T) *serviceFixture {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{
		Dialect:      "sqlite",
		Path:         filepath.Join(t.TempDir(), "portico.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		BusyTimeout:  10 * time.Second,
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.SecurityConfig{
		JWTSecret:         testSecret,
		SessionTimeout:    time.Hour,
		MinPasswordLength: 8,
		InviteTTL:         24 * time.Hour,
		MaxInviteTTL:      7 * 24 * time.Hour,
		AdminUsername:     "admin",
		AdminPassword:     "admin-password",
		Lockout:           config.LockoutConfig{Enabled: true, MaxAttempts: 3, Duration: time.Minute},
	}
	jwtManager, err := NewJWTManager(cfg)
	if err != nil {
		t.Fatal(err)
	}
	events := audit.NewMemoryStore(1000)
	auditCfg := audit.DefaultConfig()
	auditCfg.MinSeverity = audit.SeverityDebug
	auditLog := audit.NewLogger(events, auditCfg)
	t.Cleanup(func() { _ = auditLog.Close() })

	return &serviceFixture{
		svc:    NewService(db, jwtManager, NewMemoryState(), auditLog, cfg),
		db:     db,
		events: events,
		audit:  auditLog,
		cfg:    cfg,
	}
}

func (f *serviceFixture) admin(t *testing.T) *Claims {
	t.Helper()
	if err := f.svc.BootstrapAdmin(context.Background()); err != nil {
		t.Fatal(err)
	}
	s, err := f.svc.Login(context.Background(), "admin", "admin-password", "127.0.0.1")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	claims, err := f.svc.jwt.ValidateToken(s.Token)
	if err != nil {
		t.Fatal(err)
	}
	return claims
}

func TestService_BootstrapAdmin(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	if err := f.svc.BootstrapAdmin(ctx); err != nil {
		t.Fatal(err)
	}
	u, err := f.db.GetUserByUsername(ctx, "admin")
	if err != nil || !u.IsAdmin() || !u.IsActive {
		t.Fatalf("bootstrap admin = %+v, err %v", u, err)
	}

	// A second start with different credentials leaves the account alone.
	f.cfg.AdminPassword = "changed-password"
	if err := f.svc.BootstrapAdmin(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Login(ctx, "admin", "admin-password", ""); err != nil {
		t.Errorf("original password should still work: %v", err)
	}

	t.Run("ensure promotes existing user", func(t *testing.T) {
		res, err := f.svc.Register(ctx, RegisterRequest{Username: "carol", Password: "carol-password"})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.db.ApprovePendingUser(ctx, res.Pending.ID); err != nil {
			t.Fatal(err)
		}
		u, created, err := f.svc.EnsureAdmin(ctx, "carol", "", "")
		if err != nil || created || !u.IsAdmin() {
			t.Fatalf("EnsureAdmin = %+v, %v, %v", u, created, err)
		}
		if _, err := f.svc.Login(ctx, "carol", "carol-password", ""); err != nil {
			t.Errorf("empty password must keep the old one: %v", err)
		}
	})
}

func TestService_Login(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.admin(t)

	t.Run("wrong password then lockout", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := f.svc.Login(ctx, "admin", "nope-nope", "10.1.1.1")
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("attempt %d: %v", i+1, err)
			}
		}
		_, err := f.svc.Login(ctx, "admin", "nope-nope", "10.1.1.1")
		var le *LockedError
		if !errors.As(err, &le) || le.Remaining <= 0 {
			t.Fatalf("expected lockout, got %v", err)
		}
		_, err = f.svc.Login(ctx, "admin", "admin-password", "10.2.2.2")
		if !errors.Is(err, ErrAccountLocked) {
			t.Errorf("locked user must be refused before the password check, got %v", err)
		}
		if err := f.svc.Lockout().ClearLockout(ctx, "admin"); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.svc.Login(ctx, "ghost", "whatever-pw", "10.3.3.3")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("inactive user", func(t *testing.T) {
		u := &models.User{Username: "dave", PasswordHash: mustHash(t, "dave-password"), IsActive: false}
		if err := f.db.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
		_, err := f.svc.Login(ctx, "dave", "dave-password", "10.4.4.4")
		if !errors.Is(err, ErrAccountInactive) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("success updates last seen", func(t *testing.T) {
		s, err := f.svc.Login(ctx, "ADMIN", "admin-password", "10.5.5.5")
		if err != nil {
			t.Fatal(err)
		}
		if s.Token == "" || s.User.Username != "admin" || !s.ExpiresAt.After(time.Now()) {
			t.Errorf("unexpected session %+v", s)
		}
		u, _ := f.db.GetUser(ctx, s.User.ID)
		if u.LastSeenAt == nil {
			t.Error("last_seen_at not updated")
		}
	})

	counts := f.drainAudit(t)
	if counts[audit.EventTypeAuthFailure] < 3 || counts[audit.EventTypeAuthLockout] == 0 || counts[audit.EventTypeAuthSuccess] < 2 {
		t.Errorf("audit counts %v", counts)
	}
}

func TestService_LogoutRevokesToken(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	claims := f.admin(t)

	mw := NewMiddleware(f.svc.jwt, f.svc.revoked, f.db)
	s, err := f.svc.Login(ctx, "admin", "admin-password", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mw.Verify(ctx, s.Token); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}
	fresh, _ := f.svc.jwt.ValidateToken(s.Token)
	if err := f.svc.Logout(ctx, fresh); err != nil {
		t.Fatal(err)
	}
	if _, err := mw.Verify(ctx, s.Token); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("expected revoked token, got %v", err)
	}
	if claims.ID == fresh.ID {
		t.Error("every login must mint a distinct token id")
	}
}

func TestService_Register(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	admin := f.admin(t)

	invite, err := f.svc.CreateInvite(ctx, admin, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := invite.ExpiresAt.Sub(invite.CreatedAt); got != 24*time.Hour {
		t.Errorf("default invite ttl = %v", got)
	}

	tests := []struct {
		name         string
		req          RegisterRequest
		wantErr      error
		wantSession  bool
		wantRejected bool
	}{
		{"invite registers directly", RegisterRequest{Username: "erin", Password: "erin-password", InviteCode: invite.Code}, nil, true, false},
		{"used invite falls back to approval", RegisterRequest{Username: "frank", Password: "frank-password", InviteCode: invite.Code}, nil, false, true},
		{"no invite needs approval", RegisterRequest{Username: "grace", Password: "grace-password"}, nil, false, false},
		{"taken by user", RegisterRequest{Username: "Erin", Password: "another-pass"}, ErrUsernameTaken, false, false},
		{"taken by pending", RegisterRequest{Username: "grace", Password: "another-pass"}, ErrUsernameTaken, false, false},
		{"short password", RegisterRequest{Username: "heidi", Password: "short"}, ErrPasswordTooShort, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Register(ctx, tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if (res.Session != nil) != tt.wantSession || (res.Pending != nil) == tt.wantSession {
				t.Errorf("session=%v pending=%v", res.Session != nil, res.Pending != nil)
			}
			if res.InviteRejected != tt.wantRejected {
				t.Errorf("InviteRejected = %v", res.InviteRejected)
			}
		})
	}

	t.Run("check invite", func(t *testing.T) {
		got, usable, err := f.svc.CheckInvite(ctx, invite.Code)
		if err != nil || usable || got.UsedBy == nil {
			t.Errorf("used invite: usable=%v err=%v", usable, err)
		}
	})

	t.Run("invite ttl bounds", func(t *testing.T) {
		for _, ttl := range []time.Duration{time.Second, 30 * 24 * time.Hour} {
			if _, err := f.svc.CreateInvite(ctx, admin, ttl); !errors.Is(err, ErrInvalidInviteTTL) {
				t.Errorf("ttl %v: %v", ttl, err)
			}
		}
	})

	t.Run("used invite cannot be revoked", func(t *testing.T) {
		if err := f.svc.RevokeInvite(ctx, admin, invite.ID); !errors.Is(err, database.ErrConflict) {
			t.Errorf("got %v", err)
		}
		fresh, err := f.svc.CreateInvite(ctx, admin, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.svc.RevokeInvite(ctx, admin, fresh.ID); err != nil {
			t.Error(err)
		}
	})
}

func TestService_AccountAdministration(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	admin := f.admin(t)

	res, err := f.svc.Register(ctx, RegisterRequest{Username: "ivan", Password: "ivan-password"})
	if err != nil {
		t.Fatal(err)
	}
	ivan, err := f.svc.ApprovePending(ctx, admin, res.Pending.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Login(ctx, "ivan", "ivan-password", ""); err != nil {
		t.Fatalf("approved user cannot log in: %v", err)
	}

	rejected, err := f.svc.Register(ctx, RegisterRequest{Username: "judy", Password: "judy-password"})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.RejectPending(ctx, admin, rejected.Pending.ID); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		op      func() error
		wantErr error
	}{
		{"admin cannot demote self", func() error { return f.svc.ChangeRole(ctx, admin, admin.UserID, models.RoleUser) }, ErrSelfModification},
		{"admin cannot deactivate self", func() error { return f.svc.SetActive(ctx, admin, admin.UserID, false) }, ErrSelfModification},
		{"unknown role", func() error { return f.svc.ChangeRole(ctx, admin, ivan.ID, "owner") }, nil},
		{"promote", func() error { return f.svc.ChangeRole(ctx, admin, ivan.ID, models.RoleAdmin) }, nil},
		{"demote other admin", func() error { return f.svc.ChangeRole(ctx, admin, ivan.ID, models.RoleUser) }, nil},
		{"deactivate", func() error { return f.svc.SetActive(ctx, admin, ivan.ID, false) }, nil},
		{"missing user", func() error { return f.svc.SetActive(ctx, admin, 999, false) }, database.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			switch {
			case tt.name == "unknown role":
				if err == nil {
					t.Error("expected error for unknown role")
				}
			case tt.wantErr == nil && err != nil:
				t.Errorf("unexpected error %v", err)
			case tt.wantErr != nil && !errors.Is(err, tt.wantErr):
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := f.svc.Login(ctx, "ivan", "ivan-password", ""); !errors.Is(err, ErrAccountInactive) {
		t.Errorf("deactivated login: %v", err)
	}

	t.Run("last admin guard", func(t *testing.T) {
		// ivan acting against the only admin left.
		actor := &Claims{UserID: ivan.ID, Username: "ivan", Role: models.RoleAdmin}
		if err := f.svc.ChangeRole(ctx, actor, admin.UserID, models.RoleUser); !errors.Is(err, ErrLastAdmin) {
			t.Errorf("demote: %v", err)
		}
		if err := f.svc.DeleteUser(ctx, actor, admin.UserID); !errors.Is(err, ErrLastAdmin) {
			t.Errorf("delete: %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := f.svc.DeleteUser(ctx, admin, ivan.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := f.db.GetUser(ctx, ivan.ID); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("user still present: %v", err)
		}
	})

	t.Run("change password", func(t *testing.T) {
		if err := f.svc.ChangePassword(ctx, admin.UserID, "wrong-current", "new-password-1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("wrong current: %v", err)
		}
		if err := f.svc.ChangePassword(ctx, admin.UserID, "admin-password", "new-password-1"); err != nil {
			t.Fatal(err)
		}
		if _, err := f.svc.Login(ctx, "admin", "new-password-1", ""); err != nil {
			t.Errorf("login with new password: %v", err)
		}
	})

	counts := f.drainAudit(t)
	for _, typ := range []audit.EventType{
		audit.EventTypeUserApproved, audit.EventTypeUserRejected, audit.EventTypeRoleChanged,
		audit.EventTypeUserActive, audit.EventTypeUserDeleted, audit.EventTypePassword,
	} {
		if counts[typ] == 0 {
			t.Errorf("no %s event recorded", typ)
		}
	}
}

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	h, err := HashPassword(pw)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

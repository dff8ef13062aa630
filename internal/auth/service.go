// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/config"
	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/metrics"
	"github.com/tomtom215/portico/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidInviteTTL   = errors.New("invite ttl out of range")
	ErrLastAdmin          = errors.New("cannot remove the last active administrator")
	ErrSelfModification   = errors.New("administrators cannot demote, deactivate or delete themselves")
)

// Store is the account persistence the service needs.
type Store interface {
	UserLookup
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	UsernameTaken(ctx context.Context, username string) (bool, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	TouchLastSeen(ctx context.Context, id int64) error
	CountAdmins(ctx context.Context) (int, error)
	SetRole(ctx context.Context, id int64, role string) error
	SetActive(ctx context.Context, id int64, active bool) error
	DeleteUser(ctx context.Context, id int64) error

	CreatePendingUser(ctx context.Context, p *models.PendingUser) error
	ApprovePendingUser(ctx context.Context, id int64) (*models.User, error)
	RejectPendingUser(ctx context.Context, id int64) error

	CreateInvite(ctx context.Context, code string, createdBy int64, ttl time.Duration) (*models.InviteCode, error)
	GetInviteByCode(ctx context.Context, code string) (*models.InviteCode, error)
	RevokeInvite(ctx context.Context, id int64) error
	RegisterWithInvite(ctx context.Context, u *models.User, code string) error
}

// Service implements the account workflows.
type Service struct {
	store    Store
	jwt      *JWTManager
	lockout  *LockoutManager
	revoked  RevocationStore
	audit    *audit.Logger
	security *logging.SecurityLogger
	cfg      *config.SecurityConfig
	now      func() time.Time
}

// NewService wires the account service. auditLog may be nil.
func NewService(store Store, jwtManager *JWTManager, state *State, auditLog *audit.Logger, cfg *config.SecurityConfig) *Service {
	s := &Service{
		store:    store,
		jwt:      jwtManager,
		lockout:  NewLockoutManager(state.Lockouts, LockoutConfigFrom(&cfg.Lockout)),
		revoked:  state.Revocations,
		audit:    auditLog,
		security: logging.NewSecurityLogger(),
		cfg:      cfg,
		now:      time.Now,
	}
	s.lockout.SetOnLockout(func(e *LockoutEntry) {
		s.security.AccountLocked(e.Subject, e.LockedUntil.Sub(s.now()))
	})
	return s
}

// Lockout exposes the lockout manager for supervision.
func (s *Service) Lockout() *LockoutManager { return s.lockout }

// Session is a freshly issued token.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func (s *Service) issue(u *models.User) (*Session, error) {
	token, claims, err := s.jwt.GenerateToken(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: u}, nil
}

// Login verifies credentials. Failures count towards lockout; a locked
// username or address gets a *LockedError before the password is checked.
func (s *Service) Login(ctx context.Context, username, password, ip string) (*Session, error) {
	username = strings.TrimSpace(username)
	subject := strings.ToLower(username)
	if err := s.lockout.CheckLogin(ctx, subject, ip); err != nil {
		metrics.RecordLogin("locked")
		return nil, err
	}

	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	hash := string(dummyHash)
	if u != nil {
		hash = u.PasswordHash
	}
	if !CheckPassword(hash, password) || u == nil {
		return nil, s.loginFailed(ctx, subject, ip)
	}
	if !u.IsActive {
		metrics.RecordLogin("inactive")
		s.security.LoginFailed(username, ip, "inactive")
		s.audit.LogAuthFailure(ctx, username, ip, "account inactive")
		return nil, ErrAccountInactive
	}

	if err := s.lockout.RecordSuccessfulLogin(ctx, subject); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to clear lockout entry")
	}
	if err := s.store.TouchLastSeen(ctx, u.ID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to update last seen")
	}

	session, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	metrics.RecordLogin("success")
	s.security.LoginSucceeded(username, ip)
	s.audit.LogAuthSuccess(ctx, audit.UserActor(u.ID, u.Username), ip)
	return session, nil
}

func (s *Service) loginFailed(ctx context.Context, username, ip string) error {
	metrics.RecordLogin("failure")
	s.security.LoginFailed(username, ip, "invalid credentials")
	s.audit.LogAuthFailure(ctx, username, ip, "invalid credentials")

	locked, remaining, err := s.lockout.RecordFailedAttempt(ctx, username, ip)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to record login failure")
		return ErrInvalidCredentials
	}
	if locked {
		s.audit.LogAuthLockout(ctx, username, ip, remaining, s.lockout.config.MaxAttempts)
		return &LockedError{Remaining: remaining}
	}
	return ErrInvalidCredentials
}

// Logout revokes the token until it would have expired.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	s.security.Logout(claims.Username)
	s.audit.LogLogout(ctx, audit.UserActor(claims.UserID, claims.Username), claims.ID)
	return nil
}

// RegisterRequest is a self-registration.
type RegisterRequest struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
	InviteCode  string
}

// RegisterResult holds either a Session (invite accepted) or a Pending row.
type RegisterResult struct {
	Session *Session
	Pending *models.PendingUser

	// InviteRejected is set when a code was given but could not be used and
	// the registration fell back to approval.
	InviteRejected bool
}

// Register creates an account straight away with a usable invite code and
// queues it for approval otherwise.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := ValidatePassword(req.Password, s.cfg.MinPasswordLength); err != nil {
		return nil, err
	}
	taken, err := s.store.UsernameTaken(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	result := &RegisterResult{}
	if code := strings.TrimSpace(req.InviteCode); code != "" {
		u := &models.User{Username: req.Username, Email: req.Email, PasswordHash: hash, DisplayName: req.DisplayName}
		err := s.store.RegisterWithInvite(ctx, u, code)
		switch {
		case err == nil:
			session, err := s.issue(u)
			if err != nil {
				return nil, err
			}
			result.Session = session
			s.security.Registered(u.Username, true)
			s.audit.Record(ctx, audit.EventTypeRegistered, audit.UserActor(u.ID, u.Username), audit.IDTarget("user", u.ID),
				"register", "Registered with invite code", nil)
			return result, nil
		case errors.Is(err, database.ErrInviteUnusable):
			result.InviteRejected = true
		case errors.Is(err, database.ErrDuplicate):
			return nil, ErrUsernameTaken
		default:
			return nil, err
		}
	}

	p := &models.PendingUser{Username: req.Username, Email: req.Email, PasswordHash: hash, DisplayName: req.DisplayName}
	if err := s.store.CreatePendingUser(ctx, p); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	result.Pending = p
	s.security.Registered(p.Username, false)
	s.audit.Record(ctx, audit.EventTypeRegistered, audit.Actor{Name: p.Username}, audit.IDTarget("pending_user", p.ID),
		"register", "Registration awaiting approval", map[string]any{"invite_rejected": result.InviteRejected})
	return result, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !CheckPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if err := ValidatePassword(next, s.cfg.MinPasswordLength); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.EventTypePassword, audit.UserActor(u.ID, u.Username), audit.IDTarget("user", u.ID),
		"change_password", "Password changed", nil)
	return nil
}

// CreateInvite issues a new code. ttl 0 uses the configured default.
func (s *Service) CreateInvite(ctx context.Context, actor *Claims, ttl time.Duration) (*models.InviteCode, error) {
	if ttl == 0 {
		ttl = s.cfg.InviteTTL
	}
	if ttl < time.Minute || (s.cfg.MaxInviteTTL > 0 && ttl > s.cfg.MaxInviteTTL) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInviteTTL, ttl)
	}
	code, err := GenerateInviteCode()
	if err != nil {
		return nil, err
	}
	invite, err := s.store.CreateInvite(ctx, code, actor.UserID, ttl)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.EventTypeInviteCreated, audit.UserActor(actor.UserID, actor.Username),
		audit.IDTarget("invite", invite.ID), "create_invite", "Invite code created",
		map[string]any{"expires_at": invite.ExpiresAt})
	return invite, nil
}

// CheckInvite reports whether a code can still be used.
func (s *Service) CheckInvite(ctx context.Context, code string) (*models.InviteCode, bool, error) {
	invite, err := s.store.GetInviteByCode(ctx, code)
	if err != nil {
		return nil, false, err
	}
	return invite, invite.Usable(s.now()), nil
}

// RevokeInvite deletes an unused code.
func (s *Service) RevokeInvite(ctx context.Context, actor *Claims, id int64) error {
	if err := s.store.RevokeInvite(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.EventTypeInviteRevoked, audit.UserActor(actor.UserID, actor.Username),
		audit.IDTarget("invite", id), "revoke_invite", "Invite code revoked", nil)
	return nil
}

// GenerateInviteCode returns 20 random base32 characters.
func GenerateInviteCode() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b), nil
}

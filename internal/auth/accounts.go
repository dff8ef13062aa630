// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/models"
)

// ApprovePending turns a pending registration into an active user.
func (s *Service) ApprovePending(ctx context.Context, actor *Claims, id int64) (*models.User, error) {
	u, err := s.store.ApprovePendingUser(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	s.audit.Record(ctx, audit.EventTypeUserApproved, audit.UserActor(actor.UserID, actor.Username),
		audit.IDTarget("user", u.ID), "approve", "Approved registration of "+u.Username, nil)
	return u, nil
}

// RejectPending deletes a pending registration.
func (s *Service) RejectPending(ctx context.Context, actor *Claims, id int64) error {
	if err := s.store.RejectPendingUser(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.EventTypeUserRejected, audit.UserActor(actor.UserID, actor.Username),
		audit.IDTarget("pending_user", id), "reject", "Rejected registration", nil)
	return nil
}

// guardAdminRemoval refuses changes that would leave no active admin or
// that an admin makes to their own account.
func (s *Service) guardAdminRemoval(ctx context.Context, actor *Claims, target *models.User) error {
	if actor.UserID == target.ID {
		return ErrSelfModification
	}
	if !target.IsAdmin() || !target.IsActive {
		return nil
	}
	n, err := s.store.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if n <= 1 {
		return ErrLastAdmin
	}
	return nil
}

// ChangeRole sets a user's role.
func (s *Service) ChangeRole(ctx context.Context, actor *Claims, id int64, role string) error {
	if !models.IsValidRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}
	target, err := s.store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if target.Role == role {
		return nil
	}
	if role != models.RoleAdmin {
		if err := s.guardAdminRemoval(ctx, actor, target); err != nil {
			return err
		}
	}
	if err := s.store.SetRole(ctx, id, role); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.EventTypeRoleChanged, audit.UserActor(actor.UserID, actor.Username),
		audit.IDTarget("user", id), "set_role", "Role of "+target.Username+" set to "+role,
		map[string]any{"old_role": target.Role, "new_role": role})
	return nil
}

// SetActive activates or deactivates an account. Deactivated users cannot
// log in and their existing tokens stop working.
func (s *Service) SetActive(ctx context.Context, actor *Claims, id int64, active bool) error {
	target, err := s.store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if !active {
		if err := s.guardAdminRemoval(ctx, actor, target); err != nil {
			return err
		}
	}
	if err := s.store.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.EventTypeUserActive, audit.UserActor(actor.UserID, actor.Username),
		audit.IDTarget("user", id), "set_active", fmt.Sprintf("Active flag of %s set to %t", target.Username, active), nil)
	return nil
}

// DeleteUser removes an account. Users who authored content are refused by
// the store with ErrConflict and should be deactivated instead.
func (s *Service) DeleteUser(ctx context.Context, actor *Claims, id int64) error {
	target, err := s.store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guardAdminRemoval(ctx, actor, target); err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.EventTypeUserDeleted, audit.UserActor(actor.UserID, actor.Username),
		audit.IDTarget("user", id), "delete", "Deleted user "+target.Username, nil)
	return nil
}

// EnsureAdmin creates username as an active admin, or promotes and
// reactivates an existing account. A non-empty password replaces the
// existing one.
func (s *Service) EnsureAdmin(ctx context.Context, username, password, email string) (*models.User, bool, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, false, err
	}

	if u == nil {
		if err := ValidatePassword(password, s.cfg.MinPasswordLength); err != nil {
			return nil, false, err
		}
		hash, err := HashPassword(password)
		if err != nil {
			return nil, false, err
		}
		u = &models.User{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			DisplayName:  username,
			Role:         models.RoleAdmin,
			IsActive:     true,
		}
		if err := s.store.CreateUser(ctx, u); err != nil {
			return nil, false, err
		}
		return u, true, nil
	}

	if err := s.store.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
		return nil, false, err
	}
	if err := s.store.SetActive(ctx, u.ID, true); err != nil {
		return nil, false, err
	}
	if password != "" {
		if err := ValidatePassword(password, s.cfg.MinPasswordLength); err != nil {
			return nil, false, err
		}
		hash, err := HashPassword(password)
		if err != nil {
			return nil, false, err
		}
		if err := s.store.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
			return nil, false, err
		}
	}
	u.Role, u.IsActive = models.RoleAdmin, true
	return u, false, nil
}

// BootstrapAdmin creates the configured administrator on first start. It
// does nothing once any active admin exists or when no credentials are set.
func (s *Service) BootstrapAdmin(ctx context.Context) error {
	if s.cfg.AdminUsername == "" || s.cfg.AdminPassword == "" {
		return nil
	}
	n, err := s.store.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	u, created, err := s.EnsureAdmin(ctx, s.cfg.AdminUsername, s.cfg.AdminPassword, s.cfg.AdminEmail)
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	logging.Info().Str("username", u.Username).Bool("created", created).Msg("Bootstrapped administrator account")
	return nil
}

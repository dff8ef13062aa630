// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/portico/internal/models"
)

func TestUsers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")

	t.Run("lookup is case insensitive", func(t *testing.T) {
		got, err := db.GetUserByUsername(ctx, "ALICE")
		checkNoError(t, err)
		checkInt64Equal(t, "id", got.ID, alice.ID)
		checkStringEqual(t, "role", got.Role, models.RoleUser)
	})

	t.Run("duplicate username", func(t *testing.T) {
		err := db.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: "x"})
		checkErrorIs(t, err, ErrDuplicate)
	})

	t.Run("profile role and active flag", func(t *testing.T) {
		checkNoError(t, db.UpdateProfile(ctx, alice.ID, "Alice A.", "a@example.com"))
		checkNoError(t, db.SetRole(ctx, alice.ID, models.RoleAdmin))
		checkNoError(t, db.SetActive(ctx, alice.ID, false))
		got, err := db.GetUser(ctx, alice.ID)
		checkNoError(t, err)
		checkStringEqual(t, "display name", got.DisplayName, "Alice A.")
		if !got.IsAdmin() || got.IsActive {
			t.Errorf("role=%s active=%v", got.Role, got.IsActive)
		}
		n, err := db.CountAdmins(ctx)
		checkNoError(t, err)
		if n != 0 {
			t.Errorf("inactive admins must not count, got %d", n)
		}
		checkNoError(t, db.SetActive(ctx, alice.ID, true))
	})

	t.Run("avatar returns previous file", func(t *testing.T) {
		old, err := db.SetAvatar(ctx, alice.ID, "a.png")
		checkNoError(t, err)
		checkStringEqual(t, "old", old, "")
		old, err = db.SetAvatar(ctx, alice.ID, "b.png")
		checkNoError(t, err)
		checkStringEqual(t, "old", old, "a.png")
	})

	t.Run("search", func(t *testing.T) {
		createTestUser(t, db, "bob")
		page, err := db.ListUsers(ctx, models.ListOptions{Search: "bo"})
		checkNoError(t, err)
		if page.Total != 1 || page.Items[0].Username != "bob" {
			t.Errorf("search returned %+v", page.Items)
		}
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := db.GetUser(ctx, 4242)
		checkErrorIs(t, err, ErrNotFound)
		checkErrorIs(t, db.SetRole(ctx, 4242, models.RoleAdmin), ErrNotFound)
	})

	t.Run("user with posts cannot be deleted", func(t *testing.T) {
		carol := createTestUser(t, db, "carol")
		checkNoError(t, db.CreatePost(ctx, &models.Post{AuthorID: carol.ID, Content: "hi"}))
		checkErrorIs(t, db.DeleteUser(ctx, carol.ID), ErrConflict)

		dave := createTestUser(t, db, "dave")
		checkNoError(t, db.DeleteUser(ctx, dave.ID))
	})
}

func TestPendingUsers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	p := &models.PendingUser{Username: "newbie", Email: "n@example.com", PasswordHash: "hash", DisplayName: "New"}
	checkNoError(t, db.CreatePendingUser(ctx, p))

	taken, err := db.UsernameTaken(ctx, "NEWBIE")
	checkNoError(t, err)
	if !taken {
		t.Error("pending username must count as taken")
	}

	list, err := db.ListPendingUsers(ctx)
	checkNoError(t, err)
	checkLen(t, "pending", len(list), 1)

	u, err := db.ApprovePendingUser(ctx, p.ID)
	checkNoError(t, err)
	checkStringEqual(t, "username", u.Username, "newbie")
	checkStringEqual(t, "hash carried over", u.PasswordHash, "hash")
	if !u.IsActive {
		t.Error("approved user must be active")
	}

	list, err = db.ListPendingUsers(ctx)
	checkNoError(t, err)
	checkLen(t, "pending after approval", len(list), 0)

	_, err = db.ApprovePendingUser(ctx, p.ID)
	checkErrorIs(t, err, ErrNotFound)

	other := &models.PendingUser{Username: "spam", PasswordHash: "x"}
	checkNoError(t, db.CreatePendingUser(ctx, other))
	checkNoError(t, db.RejectPendingUser(ctx, other.ID))
	checkErrorIs(t, db.RejectPendingUser(ctx, other.ID), ErrNotFound)
}

func TestInviteCodes(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	admin := createTestUser(t, db, "admin")

	invite, err := db.CreateInvite(ctx, "code-1", admin.ID, 72*time.Hour)
	checkNoError(t, err)
	if !invite.ExpiresAt.Equal(testClock.Add(72 * time.Hour)) {
		t.Errorf("expires at %v", invite.ExpiresAt)
	}

	u := &models.User{Username: "invited", PasswordHash: "h"}
	checkNoError(t, db.RegisterWithInvite(ctx, u, "code-1"))
	if u.ID == 0 || !u.IsActive || u.Role != models.RoleUser {
		t.Errorf("registered user %+v", u)
	}

	used, err := db.GetInviteByCode(ctx, "code-1")
	checkNoError(t, err)
	if used.UsedBy == nil || *used.UsedBy != u.ID {
		t.Errorf("invite used_by = %v", used.UsedBy)
	}

	tests := []struct {
		name  string
		setup func() string
	}{
		{"already used", func() string { return "code-1" }},
		{"unknown", func() string { return "nope" }},
		{"expired", func() string {
			_, err := db.CreateInvite(ctx, "old", admin.ID, -time.Minute)
			checkNoError(t, err)
			return "old"
		}},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := tt.setup()
			err := db.RegisterWithInvite(ctx, &models.User{Username: fmt.Sprintf("late%d", i), PasswordHash: "h"}, code)
			checkErrorIs(t, err, ErrInviteUnusable)
			if _, err := db.GetUserByUsername(ctx, fmt.Sprintf("late%d", i)); !errors.Is(err, ErrNotFound) {
				t.Errorf("user must not be created, got %v", err)
			}
		})
	}

	t.Run("used invite cannot be revoked", func(t *testing.T) {
		checkErrorIs(t, db.RevokeInvite(ctx, invite.ID), ErrConflict)
		fresh, err := db.CreateInvite(ctx, "code-2", admin.ID, time.Hour)
		checkNoError(t, err)
		checkNoError(t, db.RevokeInvite(ctx, fresh.ID))
		list, err := db.ListInvites(ctx)
		checkNoError(t, err)
		checkLen(t, "invites", len(list), 2)
	})

	t.Run("concurrent registrations consume the code once", func(t *testing.T) {
		_, err := db.CreateInvite(ctx, "race", admin.ID, time.Hour)
		checkNoError(t, err)
		var wg sync.WaitGroup
		results := make(chan error, 5)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results <- db.RegisterWithInvite(ctx, &models.User{Username: fmt.Sprintf("racer%d", i), PasswordHash: "h"}, "race")
			}(i)
		}
		wg.Wait()
		close(results)
		wins := 0
		for err := range results {
			if err == nil {
				wins++
			} else if !errors.Is(err, ErrInviteUnusable) {
				t.Errorf("unexpected error %v", err)
			}
		}
		if wins != 1 {
			t.Errorf("expected one registration, got %d", wins)
		}
	})
}

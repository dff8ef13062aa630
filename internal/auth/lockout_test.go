// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/portico/internal/config"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLockout(store LockoutStore) (*LockoutManager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	m := NewLockoutManager(store, &LockoutConfig{
		Enabled:     true,
		MaxAttempts: 3,
		Duration:    time.Minute,
		MaxDuration: 5 * time.Minute,
		TrackByIP:   true,
	})
	m.now = clock.now
	return m, clock
}

func TestCalculateLockoutDuration(t *testing.T) {
	cfg := &LockoutConfig{Duration: time.Minute, MaxDuration: 5 * time.Minute}
	tests := []struct {
		count int
		want  time.Duration
	}{
		{0, time.Minute},
		{1, 2 * time.Minute},
		{2, 4 * time.Minute},
		{3, 5 * time.Minute},
		{10, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := calculateLockoutDuration(cfg, tt.count); got != tt.want {
			t.Errorf("count %d: got %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestLockoutManager_LocksAndBacksOff(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestLockout(NewMemoryLockoutStore())

	var lockedSubjects []string
	m.SetOnLockout(func(e *LockoutEntry) { lockedSubjects = append(lockedSubjects, e.Subject) })

	for i := 0; i < 2; i++ {
		locked, _, err := m.RecordFailedAttempt(ctx, "alice", "10.0.0.1")
		if err != nil || locked {
			t.Fatalf("attempt %d: locked=%v err=%v", i+1, locked, err)
		}
	}
	locked, remaining, err := m.RecordFailedAttempt(ctx, "alice", "10.0.0.1")
	if err != nil || !locked || remaining != time.Minute {
		t.Fatalf("third attempt: locked=%v remaining=%v err=%v", locked, remaining, err)
	}
	if len(lockedSubjects) != 2 {
		t.Errorf("expected username and address locked, got %v", lockedSubjects)
	}

	err = m.CheckLogin(ctx, "alice", "10.0.0.9")
	var le *LockedError
	if !errors.As(err, &le) || !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected LockedError, got %v", err)
	}
	if err := m.CheckLogin(ctx, "bob", "10.0.0.1"); !errors.Is(err, ErrAccountLocked) {
		t.Errorf("locked address must block other usernames, got %v", err)
	}

	clock.advance(time.Minute)
	if err := m.CheckLogin(ctx, "alice", "10.0.0.9"); err != nil {
		t.Fatalf("lock should have expired: %v", err)
	}

	for i := 0; i < 3; i++ {
		locked, remaining, err = m.RecordFailedAttempt(ctx, "alice", "")
	}
	if err != nil || !locked || remaining != 2*time.Minute {
		t.Errorf("second lockout: locked=%v remaining=%v err=%v", locked, remaining, err)
	}
}

func TestLockoutManager_SuccessClearsUsernameOnly(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLockoutStore()
	m, _ := newTestLockout(store)

	for i := 0; i < 2; i++ {
		if _, _, err := m.RecordFailedAttempt(ctx, "alice", "10.0.0.1"); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.RecordSuccessfulLogin(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetEntry(ctx, "alice"); !errors.Is(err, ErrLockoutNotFound) {
		t.Errorf("username entry should be gone, got %v", err)
	}
	entry, err := store.GetEntry(ctx, "ip:10.0.0.1")
	if err != nil || entry.FailedAttempts != 2 {
		t.Errorf("address entry = %+v, err %v", entry, err)
	}
	if err := m.RecordSuccessfulLogin(ctx, "nobody"); err != nil {
		t.Errorf("clearing an unknown subject: %v", err)
	}
}

func TestLockoutManager_Disabled(t *testing.T) {
	ctx := context.Background()
	m := NewLockoutManager(NewMemoryLockoutStore(), &LockoutConfig{MaxAttempts: 1})
	for i := 0; i < 5; i++ {
		if locked, _, _ := m.RecordFailedAttempt(ctx, "alice", "10.0.0.1"); locked {
			t.Fatal("disabled manager locked an account")
		}
	}
	if err := m.CheckLogin(ctx, "alice", "10.0.0.1"); err != nil {
		t.Errorf("CheckLogin = %v", err)
	}
}

func TestLockoutManager_Cleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLockoutStore()
	m, clock := newTestLockout(store)

	if _, _, err := m.RecordFailedAttempt(ctx, "old", ""); err != nil {
		t.Fatal(err)
	}
	clock.advance(25 * time.Hour)
	if _, _, err := m.RecordFailedAttempt(ctx, "recent", ""); err != nil {
		t.Fatal(err)
	}
	m.performCleanup(ctx)

	if _, err := store.GetEntry(ctx, "old"); !errors.Is(err, ErrLockoutNotFound) {
		t.Errorf("stale entry kept: %v", err)
	}
	if _, err := store.GetEntry(ctx, "recent"); err != nil {
		t.Errorf("recent entry removed: %v", err)
	}
}

func TestLockoutConfigFrom(t *testing.T) {
	lc := LockoutConfigFrom(&config.LockoutConfig{Enabled: true, MaxAttempts: 4, MaxDuration: time.Hour})
	if !lc.Enabled || lc.MaxAttempts != 4 || lc.Duration != 15*time.Minute || lc.MaxDuration != time.Hour {
		t.Errorf("unexpected config %+v", lc)
	}
}

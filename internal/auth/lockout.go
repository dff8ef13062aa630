// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/portico/internal/config"
	"github.com/tomtom215/portico/internal/logging"
)

// LockoutConfig configures account lockout.
type LockoutConfig struct {
	Enabled     bool
	MaxAttempts int

	// Duration is the first lockout; each later one doubles up to MaxDuration.
	Duration    time.Duration
	MaxDuration time.Duration

	CleanupInterval time.Duration

	// TrackByIP also counts failures per client address.
	TrackByIP bool
}

// DefaultLockoutConfig returns 5 attempts, 15 minutes doubling to 24 hours.
func DefaultLockoutConfig() *LockoutConfig {
	return &LockoutConfig{
		Enabled:         true,
		MaxAttempts:     5,
		Duration:        15 * time.Minute,
		MaxDuration:     24 * time.Hour,
		CleanupInterval: 5 * time.Minute,
		TrackByIP:       true,
	}
}

// LockoutConfigFrom maps the security section onto a LockoutConfig.
func LockoutConfigFrom(cfg *config.LockoutConfig) *LockoutConfig {
	lc := DefaultLockoutConfig()
	lc.Enabled = cfg.Enabled
	if cfg.MaxAttempts > 0 {
		lc.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.Duration > 0 {
		lc.Duration = cfg.Duration
	}
	if cfg.MaxDuration > 0 {
		lc.MaxDuration = cfg.MaxDuration
	}
	return lc
}

// LockoutEntry is the failure record for one subject (a username or "ip:<addr>").
type LockoutEntry struct {
	Subject        string    `json:"subject"`
	FailedAttempts int       `json:"failed_attempts"`
	LastAttempt    time.Time `json:"last_attempt"`
	LockoutCount   int       `json:"lockout_count"`
	LockedUntil    time.Time `json:"locked_until"`
	LastFailedIP   string    `json:"last_failed_ip,omitempty"`
}

// LockedAt reports whether the entry is locked at now.
func (e *LockoutEntry) LockedAt(now time.Time) bool {
	return now.Before(e.LockedUntil)
}

// LockoutStore persists lockout entries.
type LockoutStore interface {
	GetEntry(ctx context.Context, subject string) (*LockoutEntry, error)
	SaveEntry(ctx context.Context, entry *LockoutEntry) error
	DeleteEntry(ctx context.Context, subject string) error

	// CleanupExpired removes entries that are unlocked and idle since before.
	CleanupExpired(ctx context.Context, before time.Time) (int, error)
}

var (
	// ErrLockoutNotFound is returned by stores for unknown subjects.
	ErrLockoutNotFound = errors.New("lockout entry not found")

	// ErrAccountLocked is matched by LockedError.
	ErrAccountLocked = errors.New("account temporarily locked due to too many failed attempts")
)

// LockedError carries the time left on a lockout.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s (retry in %s)", ErrAccountLocked, e.Remaining.Round(time.Second))
}

func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// LockoutManager tracks failed logins.
type LockoutManager struct {
	config *LockoutConfig
	store  LockoutStore
	now    func() time.Time

	onLockout func(entry *LockoutEntry)
}

// NewLockoutManager creates a manager over store.
func NewLockoutManager(store LockoutStore, config *LockoutConfig) *LockoutManager {
	if config == nil {
		config = DefaultLockoutConfig()
	}
	return &LockoutManager{config: config, store: store, now: time.Now}
}

// SetOnLockout registers a callback run when a subject becomes locked.
func (m *LockoutManager) SetOnLockout(fn func(entry *LockoutEntry)) {
	m.onLockout = fn
}

// CheckLocked reports whether subject is currently locked and for how long.
func (m *LockoutManager) CheckLocked(ctx context.Context, subject string) (bool, time.Duration, error) {
	if !m.config.Enabled || subject == "" {
		return false, 0, nil
	}
	entry, err := m.store.GetEntry(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrLockoutNotFound) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("check lockout: %w", err)
	}
	now := m.now()
	if !entry.LockedAt(now) {
		return false, 0, nil
	}
	return true, entry.LockedUntil.Sub(now), nil
}

// CheckLogin returns a LockedError if the username or the address is locked.
func (m *LockoutManager) CheckLogin(ctx context.Context, username, ip string) error {
	for _, subject := range m.subjects(username, ip) {
		locked, remaining, err := m.CheckLocked(ctx, subject)
		if err != nil {
			return err
		}
		if locked {
			return &LockedError{Remaining: remaining}
		}
	}
	return nil
}

func (m *LockoutManager) subjects(username, ip string) []string {
	out := []string{username}
	if m.config.TrackByIP && ip != "" {
		out = append(out, "ip:"+ip)
	}
	return out
}

// RecordFailedAttempt counts a failure for the username and, when enabled,
// the address. It reports whether either became (or already was) locked.
func (m *LockoutManager) RecordFailedAttempt(ctx context.Context, username, ip string) (locked bool, remaining time.Duration, err error) {
	if !m.config.Enabled {
		return false, 0, nil
	}
	for _, subject := range m.subjects(username, ip) {
		l, r, err := m.recordAttemptForSubject(ctx, subject, ip)
		if err != nil {
			return false, 0, err
		}
		if l && r > remaining {
			locked, remaining = true, r
		}
	}
	return locked, remaining, nil
}

// calculateLockoutDuration doubles the base duration per previous lockout.
func calculateLockoutDuration(config *LockoutConfig, lockoutCount int) time.Duration {
	duration := config.Duration
	for i := 0; i < lockoutCount && duration < config.MaxDuration; i++ {
		duration *= 2
	}
	if config.MaxDuration > 0 && duration > config.MaxDuration {
		return config.MaxDuration
	}
	return duration
}

func (m *LockoutManager) recordAttemptForSubject(ctx context.Context, subject, ip string) (bool, time.Duration, error) {
	entry, err := m.store.GetEntry(ctx, subject)
	if err != nil {
		if !errors.Is(err, ErrLockoutNotFound) {
			return false, 0, fmt.Errorf("get entry: %w", err)
		}
		entry = &LockoutEntry{Subject: subject}
	}

	now := m.now()
	if entry.LockedAt(now) {
		return true, entry.LockedUntil.Sub(now), nil
	}

	entry.FailedAttempts++
	entry.LastAttempt = now
	entry.LastFailedIP = ip

	if entry.FailedAttempts < m.config.MaxAttempts {
		if err := m.store.SaveEntry(ctx, entry); err != nil {
			return false, 0, fmt.Errorf("save entry: %w", err)
		}
		return false, 0, nil
	}

	duration := calculateLockoutDuration(m.config, entry.LockoutCount)
	entry.LockedUntil = now.Add(duration)
	entry.LockoutCount++
	entry.FailedAttempts = 0

	logging.Warn().
		Str("subject", logging.SanitizeLogValue(subject)).
		Dur("duration", duration).
		Int("lockout_count", entry.LockoutCount).
		Msg("Account locked")

	if err := m.store.SaveEntry(ctx, entry); err != nil {
		return false, 0, fmt.Errorf("save locked entry: %w", err)
	}
	if m.onLockout != nil {
		m.onLockout(entry)
	}
	return true, duration, nil
}

// RecordSuccessfulLogin clears the username's failure record. The address
// record is left alone so one good password does not reset a spraying IP.
func (m *LockoutManager) RecordSuccessfulLogin(ctx context.Context, username string) error {
	if !m.config.Enabled {
		return nil
	}
	if err := m.store.DeleteEntry(ctx, username); err != nil && !errors.Is(err, ErrLockoutNotFound) {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}

// ClearLockout removes a lockout manually.
func (m *LockoutManager) ClearLockout(ctx context.Context, subject string) error {
	if err := m.store.DeleteEntry(ctx, subject); err != nil && !errors.Is(err, ErrLockoutNotFound) {
		return fmt.Errorf("clear lockout: %w", err)
	}
	logging.Info().Str("subject", logging.SanitizeLogValue(subject)).Msg("Manually cleared lockout")
	return nil
}

// Serve removes stale entries every CleanupInterval until ctx ends.
func (m *LockoutManager) Serve(ctx context.Context) error {
	interval := m.config.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.performCleanup(ctx)
		}
	}
}

func (m *LockoutManager) String() string { return "lockout-cleanup" }

// Entries are kept a day after unlocking so repeat offenders keep their
// backoff level.
func (m *LockoutManager) performCleanup(ctx context.Context) {
	count, err := m.store.CleanupExpired(ctx, m.now().Add(-24*time.Hour))
	if err != nil {
		logging.Error().Err(err).Msg("Lockout cleanup error")
		return
	}
	if count > 0 {
		logging.Info().Int("count", count).Msg("Cleaned up expired lockout entries")
	}
}

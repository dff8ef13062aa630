// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package auth

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/portico/internal/config"
	"github.com/tomtom215/portico/internal/logging"
)

// RevocationStore remembers token ids revoked before their expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// State bundles the lockout and revocation stores with whatever backs them.
type State struct {
	Lockouts    LockoutStore
	Revocations RevocationStore
	closer      io.Closer
}

// Close releases the backing store.
func (s *State) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// OpenState opens the configured state store: badger (default) or memory.
func OpenState(cfg *config.SecurityConfig) (*State, error) {
	switch cfg.StateStore {
	case "memory":
		return NewMemoryState(), nil
	case "", "badger":
		db, err := OpenBadger(cfg.StateStorePath)
		if err != nil {
			return nil, err
		}
		return &State{
			Lockouts:    NewBadgerLockoutStore(db),
			Revocations: NewBadgerRevocationStore(db),
			closer:      db,
		}, nil
	default:
		return nil, fmt.Errorf("unknown state store %q", cfg.StateStore)
	}
}

// NewMemoryState keeps everything in process.
func NewMemoryState() *State {
	return &State{
		Lockouts:    NewMemoryLockoutStore(),
		Revocations: NewMemoryRevocationStore(),
	}
}

// OpenBadger opens a badger database at dir with logging routed through
// zerolog.
func OpenBadger(dir string) (*badger.DB, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{}).
		WithNumVersionsToKeep(1).
		WithValueLogFileSize(16 << 20)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", dir, err)
	}
	return db, nil
}

type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...interface{}) {
	logging.Error().Str("component", "badger").Msgf(f, v...)
}
func (badgerLogger) Warningf(f string, v ...interface{}) {
	logging.Warn().Str("component", "badger").Msgf(f, v...)
}
func (badgerLogger) Infof(f string, v ...interface{}) {
	logging.Debug().Str("component", "badger").Msgf(f, v...)
}
func (badgerLogger) Debugf(string, ...interface{}) {}

// MemoryLockoutStore implements LockoutStore in memory.
type MemoryLockoutStore struct {
	entries map[string]*LockoutEntry
	mu      sync.RWMutex
}

func NewMemoryLockoutStore() *MemoryLockoutStore {
	return &MemoryLockoutStore{entries: make(map[string]*LockoutEntry)}
}

func (s *MemoryLockoutStore) GetEntry(_ context.Context, subject string) (*LockoutEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[subject]
	if !ok {
		return nil, ErrLockoutNotFound
	}
	copied := *entry
	return &copied, nil
}

func (s *MemoryLockoutStore) SaveEntry(_ context.Context, entry *LockoutEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *entry
	s.entries[entry.Subject] = &copied
	return nil
}

func (s *MemoryLockoutStore) DeleteEntry(_ context.Context, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[subject]; !ok {
		return ErrLockoutNotFound
	}
	delete(s.entries, subject)
	return nil
}

func (s *MemoryLockoutStore) CleanupExpired(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for subject, entry := range s.entries {
		if staleEntry(entry, before) {
			delete(s.entries, subject)
			count++
		}
	}
	return count, nil
}

func staleEntry(e *LockoutEntry, before time.Time) bool {
	return e.LastAttempt.Before(before) && e.LockedUntil.Before(before)
}

// MemoryRevocationStore implements RevocationStore in memory.
type MemoryRevocationStore struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
	now     func() time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{revoked: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, jti string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, exp := range s.revoked {
		if !now.Before(exp) {
			delete(s.revoked, id)
		}
	}
	s.revoked[jti] = until
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	until, ok := s.revoked[jti]
	return ok && s.now().Before(until), nil
}

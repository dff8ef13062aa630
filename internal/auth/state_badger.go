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

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const (
	lockoutKeyPrefix = "lockout:"
	revokedKeyPrefix = "revoked:"
)

// BadgerLockoutStore implements LockoutStore on badger.
type BadgerLockoutStore struct {
	db *badger.DB
}

func NewBadgerLockoutStore(db *badger.DB) *BadgerLockoutStore {
	return &BadgerLockoutStore{db: db}
}

func (s *BadgerLockoutStore) GetEntry(_ context.Context, subject string) (*LockoutEntry, error) {
	var entry LockoutEntry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lockoutKeyPrefix + subject))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrLockoutNotFound
		}
		if err != nil {
			return fmt.Errorf("get lockout: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *BadgerLockoutStore) SaveEntry(_ context.Context, entry *LockoutEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal lockout: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(lockoutKeyPrefix+entry.Subject), data)
	})
}

func (s *BadgerLockoutStore) DeleteEntry(_ context.Context, subject string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(lockoutKeyPrefix + subject)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrLockoutNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

func (s *BadgerLockoutStore) CleanupExpired(_ context.Context, before time.Time) (int, error) {
	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(lockoutKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var entry LockoutEntry
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &entry) }); err != nil {
				stale = append(stale, item.KeyCopy(nil))
				continue
			}
			if staleEntry(&entry, before) {
				stale = append(stale, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil || len(stale) == 0 {
		return 0, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// BadgerRevocationStore keeps revoked token ids with a TTL matching the
// token's remaining lifetime, so badger expires them on its own.
type BadgerRevocationStore struct {
	db  *badger.DB
	now func() time.Time
}

func NewBadgerRevocationStore(db *badger.DB) *BadgerRevocationStore {
	return &BadgerRevocationStore{db: db, now: time.Now}
}

func (s *BadgerRevocationStore) Revoke(_ context.Context, jti string, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(revokedKeyPrefix+jti), []byte(until.UTC().Format(time.RFC3339))).WithTTL(ttl)
		return txn.SetEntry(e)
	})
}

func (s *BadgerRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	revoked := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(revokedKeyPrefix + jti))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		revoked = true
		return nil
	})
	return revoked, err
}

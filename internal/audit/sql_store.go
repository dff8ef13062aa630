// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/portico/internal/database/query"
)

// DB is the part of the application database the store needs.
type DB interface {
	Conn() *sql.DB
	Rebind(query string) string
}

// SQLStore implements Store on the audit_events table. The table is created
// by the database migrations.
type SQLStore struct {
	db DB
}

// NewSQLStore creates a store on an open, migrated database.
func NewSQLStore(db DB) *SQLStore {
	return &SQLStore{db: db}
}

const selectEvent = `SELECT id, timestamp, type, severity, outcome, actor_id, actor_name,
	target_type, target_id, action, description, metadata, source_ip, request_id
	FROM audit_events`

// Save persists an audit event.
func (s *SQLStore) Save(ctx context.Context, e *Event) error {
	var targetType, targetID string
	if e.Target != nil {
		targetType, targetID = e.Target.Type, e.Target.ID
	}
	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		metadata = sql.NullString{String: string(e.Metadata), Valid: true}
	}

	_, err := s.db.Conn().ExecContext(ctx, s.db.Rebind(`INSERT INTO audit_events
		(id, timestamp, type, severity, outcome, actor_id, actor_name, target_type, target_id,
		 action, description, metadata, source_ip, request_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.Timestamp.UTC(), string(e.Type), string(e.Severity), string(e.Outcome),
		e.Actor.ID, e.Actor.Name, targetType, targetID,
		e.Action, e.Description, metadata, e.SourceIP, e.RequestID)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Get retrieves an event by ID.
func (s *SQLStore) Get(ctx context.Context, id string) (*Event, error) {
	row := s.db.Conn().QueryRowContext(ctx, s.db.Rebind(selectEvent+" WHERE id = ?"), id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return e, err
}

func buildFilter(filter QueryFilter) (string, []any) {
	wb := query.NewWhereBuilder()
	types := make([]string, len(filter.Types))
	for i, t := range filter.Types {
		types[i] = string(t)
	}
	query.AddIn(wb, "type", types...)
	wb.AddEquals("actor_id", filter.ActorID)
	wb.AddEquals("target_id", filter.TargetID)
	if filter.StartTime != nil {
		wb.AddClause("timestamp >= ?", filter.StartTime.UTC())
	}
	if filter.EndTime != nil {
		wb.AddClause("timestamp <= ?", filter.EndTime.UTC())
	}
	wb.AddSearch(filter.Search, "LOWER(description)", "LOWER(action)", "LOWER(actor_name)")
	return wb.BuildWithPrefix()
}

// Query returns matching events newest first.
func (s *SQLStore) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	where, args := buildFilter(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := s.db.Conn().QueryContext(ctx,
		s.db.Rebind(selectEvent+where+" ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Count returns the number of events matching the filter.
func (s *SQLStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	where, args := buildFilter(filter)
	var n int64
	err := s.db.Conn().QueryRowContext(ctx, s.db.Rebind("SELECT COUNT(*) FROM audit_events"+where), args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return n, nil
}

// Delete removes events older than the cutoff.
func (s *SQLStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.Conn().ExecContext(ctx, s.db.Rebind("DELETE FROM audit_events WHERE timestamp < ?"), olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit events: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (*Event, error) {
	var (
		e                    Event
		typ, sev, outcome    string
		targetType, targetID string
		metadata             sql.NullString
	)
	err := sc.Scan(&e.ID, &e.Timestamp, &typ, &sev, &outcome, &e.Actor.ID, &e.Actor.Name,
		&targetType, &targetID, &e.Action, &e.Description, &metadata, &e.SourceIP, &e.RequestID)
	if err != nil {
		return nil, err
	}
	e.Type, e.Severity, e.Outcome = EventType(typ), Severity(sev), Outcome(outcome)
	if targetType != "" || targetID != "" {
		e.Target = &Target{Type: targetType, ID: targetID}
	}
	if metadata.Valid && metadata.String != "" {
		e.Metadata = json.RawMessage(metadata.String)
	}
	return &e, nil
}

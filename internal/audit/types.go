// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package audit

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// EventType categorizes audit events.
type EventType string

const (
	// Authentication events
	EventTypeAuthSuccess EventType = "auth.success"
	EventTypeAuthFailure EventType = "auth.failure"
	EventTypeAuthLockout EventType = "auth.lockout"
	EventTypeLogout      EventType = "auth.logout"
	EventTypeRegistered  EventType = "auth.registered"
	EventTypePassword    EventType = "auth.password_changed"

	// User management events
	EventTypeUserApproved EventType = "user.approved"
	EventTypeUserRejected EventType = "user.rejected"
	EventTypeRoleChanged  EventType = "user.role_changed"
	EventTypeUserActive   EventType = "user.active_changed"
	EventTypeUserDeleted  EventType = "user.deleted"

	EventTypeInviteCreated EventType = "invite.created"
	EventTypeInviteRevoked EventType = "invite.revoked"

	// Business events
	EventTypeQuoteTransition EventType = "quote.transition"
	EventTypeInvoiceCreated  EventType = "invoice.created"
	EventTypeInvoicePaid     EventType = "invoice.paid"
	EventTypeInvoiceCanceled EventType = "invoice.cancelled"

	// Data events
	EventTypeDataImport EventType = "data.import"
	EventTypeDataBackup EventType = "data.backup"

	EventTypeAuthzDenied EventType = "authz.denied"
)

// Severity indicates the severity level of an audit event.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

var severityOrder = map[Severity]int{
	SeverityDebug:    0,
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityError:    3,
	SeverityCritical: 4,
}

// Outcome indicates whether an action succeeded or failed.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ErrEventNotFound is returned by Store.Get.
var ErrEventNotFound = errors.New("audit event not found")

// Event is one audit record.
type Event struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        EventType       `json:"type"`
	Severity    Severity        `json:"severity"`
	Outcome     Outcome         `json:"outcome"`
	Actor       Actor           `json:"actor"`
	Target      *Target         `json:"target,omitempty"`
	SourceIP    string          `json:"source_ip,omitempty"`
	Action      string          `json:"action"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
}

// Actor is who performed the action. ID is the user id as a string, or
// "system" for background jobs.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Target is the object of an action.
type Target struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Store persists audit events.
type Store interface {
	Save(ctx context.Context, event *Event) error
	Get(ctx context.Context, id string) (*Event, error)
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
	Count(ctx context.Context, filter QueryFilter) (int64, error)

	// Delete removes events older than the cutoff.
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}

// QueryFilter narrows audit queries. Zero values mean "any".
type QueryFilter struct {
	Types     []EventType
	ActorID   string
	TargetID  string
	StartTime *time.Time
	EndTime   *time.Time
	Search    string
	Limit     int
	Offset    int
}

// DefaultQueryFilter returns the newest 100 events.
func DefaultQueryFilter() QueryFilter {
	return QueryFilter{Limit: 100}
}

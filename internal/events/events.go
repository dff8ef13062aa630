// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/portico/internal/lifecycle"
	"github.com/tomtom215/portico/internal/models"
)

// Event types. The topic of an event is "<prefix>.<type>".
const (
	TypeInvoiceCreated   = "invoice.created"
	TypeInvoicePaid      = "invoice.paid"
	TypeInvoiceCancelled = "invoice.cancelled"
	TypePostCreated      = "post.created"
	TypeUserApproved     = "user.approved"
)

// QuoteType is the event type for a client-facing quote action.
func QuoteType(action lifecycle.Action) string {
	return "quote." + string(action)
}

// AllTypes lists every event type the portal publishes.
func AllTypes() []string {
	return []string{
		QuoteType(lifecycle.Send),
		QuoteType(lifecycle.Accept),
		QuoteType(lifecycle.Reject),
		QuoteType(lifecycle.Revert),
		TypeInvoiceCreated,
		TypeInvoicePaid,
		TypeInvoiceCancelled,
		TypePostCreated,
		TypeUserApproved,
	}
}

// Topic joins the configured prefix and an event type.
func Topic(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

// Event is a domain event as published on the bus and forwarded to
// WebSocket clients.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	ActorID    int64                  `json:"actor_id,omitempty"`
	EntityID   int64                  `json:"entity_id,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// New stamps an event with an id and the current time.
func New(eventType string, actorID, entityID int64, data map[string]interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		ActorID:    actorID,
		EntityID:   entityID,
		Data:       data,
	}
}

// QuoteTransitioned describes a quote after a client action.
func QuoteTransitioned(actorID int64, q *models.Quote, action lifecycle.Action) Event {
	data := map[string]interface{}{
		"quote_number": q.QuoteNumber,
		"status":       string(q.Status),
		"customer_id":  q.CustomerID,
		"version":      q.Version,
	}
	if q.OrderNumber != nil {
		data["order_number"] = *q.OrderNumber
	}
	return New(QuoteType(action), actorID, q.ID, data)
}

// InvoiceChanged describes an invoice after creation, payment or cancellation.
func InvoiceChanged(eventType string, actorID int64, inv *models.Invoice) Event {
	return New(eventType, actorID, inv.ID, map[string]interface{}{
		"invoice_number": inv.InvoiceNumber,
		"quote_id":       inv.QuoteID,
		"status":         string(inv.Status),
		"total_cents":    inv.TotalCents,
		"currency":       inv.Currency,
	})
}

// PostCreated announces a new feed post.
func PostCreated(p *models.Post) Event {
	return New(TypePostCreated, p.AuthorID, p.ID, map[string]interface{}{
		"author_name": p.AuthorName,
	})
}

// UserApproved announces a newly approved account.
func UserApproved(actorID int64, u *models.User) Event {
	return New(TypeUserApproved, actorID, u.ID, map[string]interface{}{
		"username":     u.Username,
		"display_name": u.DisplayName,
	})
}

// Marshal encodes an event payload.
func Marshal(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// Unmarshal decodes an event payload.
func Unmarshal(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing type")
	}
	return ev, nil
}

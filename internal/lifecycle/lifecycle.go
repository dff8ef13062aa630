// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

// Package lifecycle is the state machine for quotes, orders and invoices.
//
// A quote starts as a draft, is sent to the customer and is then accepted or
// rejected. An accepted quote is an order; creating an invoice moves it to
// invoiced. Every persisted status change must be computed by Next so that
// the store never writes a transition this table does not allow.
package lifecycle

import (
	"errors"
	"fmt"
)

// State is a quote status as stored in the quotes.status column.
type State string

const (
	Draft    State = "draft"
	Sent     State = "sent"
	Accepted State = "accepted"
	Rejected State = "rejected"
	Invoiced State = "invoiced"
)

// Action is a requested transition.
type Action string

const (
	Send   Action = "send"
	Accept Action = "accept"
	Reject Action = "reject"
	Revert Action = "revert"

	// Invoice and Uninvoice are only issued by invoice creation and
	// cancellation, never directly by API clients.
	Invoice   Action = "invoice"
	Uninvoice Action = "uninvoice"
)

// ErrInvalidTransition is returned for an unknown action or an action that is
// not allowed from the current state.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

type edge struct {
	from   State
	action Action
}

var transitions = map[edge]State{
	{Draft, Send}:         Sent,
	{Sent, Accept}:        Accepted,
	{Sent, Reject}:        Rejected,
	{Accepted, Revert}:    Sent,
	{Rejected, Revert}:    Sent,
	{Accepted, Invoice}:   Invoiced,
	{Invoiced, Uninvoice}: Accepted,
}

// clientActions is the order in which Permitted lists actions.
var clientActions = []Action{Send, Accept, Reject, Revert}

// Next returns the state reached by applying action to from.
func Next(from State, action Action) (State, error) {
	to, ok := transitions[edge{from, action}]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, from)
	}
	return to, nil
}

// Permitted lists the client-facing actions available from state.
func Permitted(state State) []Action {
	out := make([]Action, 0, 2)
	for _, a := range clientActions {
		if _, ok := transitions[edge{state, a}]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Editable reports whether a quote's header and lines may be changed.
func Editable(state State) bool {
	return state == Draft || state == Sent
}

// HasOrderNumber reports whether a quote in state carries an order number,
// which is also what makes it an order in listings.
func HasOrderNumber(state State) bool {
	return state == Accepted || state == Invoiced
}

// ParseAction validates a client-supplied action name. Internal actions are
// rejected.
func ParseAction(s string) (Action, error) {
	for _, a := range clientActions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, s)
}

// ParseState validates a stored or filtered state name.
func ParseState(s string) (State, error) {
	switch st := State(s); st {
	case Draft, Sent, Accepted, Rejected, Invoiced:
		return st, nil
	}
	return "", fmt.Errorf("unknown quote status %q", s)
}

// InvoiceStatus is the status of an invoice row.
type InvoiceStatus string

const (
	InvoiceIssued    InvoiceStatus = "issued"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// NextInvoice returns the invoice status after marking it paid or cancelled.
// Only issued invoices can change.
func NextInvoice(from InvoiceStatus, to InvoiceStatus) error {
	if from != InvoiceIssued || (to != InvoicePaid && to != InvoiceCancelled) {
		return fmt.Errorf("%w: invoice %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

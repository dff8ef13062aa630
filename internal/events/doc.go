// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

// Package events is the domain event bus.
//
// Handlers publish an Event after their database work has committed, for
// example when a quote is accepted or an invoice is paid. The bus is built on
// watermill:
//
//   - no NATS settings: in-process gochannel
//   - events.nats_url: core NATS through watermill-nats
//   - events.embedded_nats: an in-process nats-server plus watermill-nats
//
// Publishing is wrapped in a gobreaker circuit breaker. The Forwarder
// subscribes to every event type and hands events to the WebSocket hub.
package events

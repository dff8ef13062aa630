// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/portico/internal/logging"
)

// Broadcaster receives forwarded events. The WebSocket hub satisfies it and
// delivers them to authenticated clients as "event" frames.
type Broadcaster interface {
	BroadcastEvent(ev Event)
}

// Forwarder relays every domain event from the bus to a Broadcaster.
type Forwarder struct {
	bus   *Bus
	sink  Broadcaster
	types []string
}

// NewForwarder forwards all event types the portal publishes.
func NewForwarder(bus *Bus, sink Broadcaster) *Forwarder {
	return &Forwarder{bus: bus, sink: sink, types: AllTypes()}
}

// RunWithContext subscribes to every event type and forwards until ctx is
// canceled. An undecodable message is acked and dropped.
func (f *Forwarder) RunWithContext(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	merged := make(chan *message.Message)
	var wg sync.WaitGroup
	for _, t := range f.types {
		ch, err := f.bus.Subscribe(ctx, t)
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
		wg.Add(1)
		go func(ch <-chan *message.Message) {
			defer wg.Done()
			for msg := range ch {
				select {
				case merged <- msg:
				case <-ctx.Done():
					msg.Nack()
					return
				}
			}
		}(ch)
	}
	defer wg.Wait()

	logging.Info().Int("topics", len(f.types)).Str("transport", f.bus.Transport()).Msg("event forwarder started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("event forwarder stopped")
			return ctx.Err()
		case msg := <-merged:
			f.handle(msg)
		}
	}
}

func (f *Forwarder) handle(msg *message.Message) {
	defer msg.Ack()
	ev, err := Unmarshal(msg.Payload)
	if err != nil {
		logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping malformed event")
		return
	}
	f.sink.BroadcastEvent(ev)
}

// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/portico/internal/config"
	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/metrics"
)

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("event bus is closed")

// Transport names reported by Bus.Transport.
const (
	TransportInProcess = "gochannel"
	TransportNATS      = "nats"
	TransportEmbedded  = "nats-embedded"
)

// Bus publishes domain events through watermill. Publishing goes through a
// circuit breaker so a broken broker fails fast.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	breaker    *gobreaker.CircuitBreaker[struct{}]
	embedded   *EmbeddedServer
	prefix     string
	transport  string

	mu     sync.RWMutex
	closed bool
}

// NewBus selects the transport from cfg: an external NATS server when NATSURL is
// set, an in-process NATS server when EmbeddedNATS is set, otherwise a
// watermill gochannel.
func NewBus(cfg *config.EventsConfig) (*Bus, error) {
	logger := watermill.NewSlogLogger(logging.NewComponentSlogLogger("events"))
	b := &Bus{
		prefix:  cfg.TopicPrefix,
		breaker: newBreaker("event-publisher", cfg.BreakerFailures, cfg.BreakerTimeout),
	}

	url := cfg.NATSURL
	switch {
	case url != "":
		b.transport = TransportNATS
	case cfg.EmbeddedNATS:
		srv, err := StartEmbeddedServer(cfg.NATSPort)
		if err != nil {
			return nil, err
		}
		b.embedded = srv
		url = srv.ClientURL()
		b.transport = TransportEmbedded
	default:
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
		b.publisher, b.subscriber = ch, ch
		b.transport = TransportInProcess
		return b, nil
	}

	if err := b.connectNATS(url, logger); err != nil {
		if b.embedded != nil {
			b.embedded.Shutdown()
		}
		return nil, err
	}
	return b, nil
}

// connectNATS uses core NATS. Events are notifications; JetStream
// persistence is not needed.
func (b *Bus) connectNATS(url string, logger watermill.LoggerAdapter) error {
	natsOpts := []natsgo.Option{
		natsgo.Name("portico"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return fmt.Errorf("create NATS publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		CloseTimeout:     5 * time.Second,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return fmt.Errorf("create NATS subscriber: %w", err)
	}

	b.publisher, b.subscriber = pub, sub
	return nil
}

// Transport reports which transport the bus uses.
func (b *Bus) Transport() string { return b.transport }

// Prefix returns the topic prefix.
func (b *Bus) Prefix() string { return b.prefix }

// Publish sends ev on its topic.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	topic := Topic(b.prefix, ev.Type)
	payload, err := Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := message.NewMessage(ev.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("type", ev.Type)
	if id := logging.RequestIDFromContext(ctx); id != "" {
		msg.Metadata.Set("request_id", id)
	}

	_, err = b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.publisher.Publish(topic, msg)
	})
	metrics.RecordEventPublish(topic, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Emit publishes ev and only logs failures. Handlers use it so that a broken
// broker never fails a request whose database work already committed.
func (b *Bus) Emit(ctx context.Context, ev Event) {
	if b == nil {
		return
	}
	if err := b.Publish(ctx, ev); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("event_type", ev.Type).Msg("event publish failed")
	}
}

// Subscribe returns the messages of one event type. Every message must be
// acked.
func (b *Bus) Subscribe(ctx context.Context, eventType string) (<-chan *message.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	return b.subscriber.Subscribe(ctx, Topic(b.prefix, eventType))
}

// Close stops the publisher, the subscriber and the embedded server.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	// gochannel is both publisher and subscriber.
	if b.transport != TransportInProcess {
		if err := b.subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.embedded != nil {
		b.embedded.Shutdown()
	}
	return errors.Join(errs...)
}

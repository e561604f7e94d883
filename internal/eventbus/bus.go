// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package eventbus

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
	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/logging"
)

// Transport names.
const (
	TransportGoChannel = "gochannel"
	TransportNATS      = "nats"
)

// DefaultTopic is the topic aggregation triggers are published on.
const DefaultTopic = "events.recorded"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("eventbus: closed")

// Config configures the bus.
type Config struct {
	Transport string
	Topic     string

	// BufferSize is the gochannel output buffer.
	BufferSize int64

	NATSURL          string
	SubscribersCount int
	DurableName      string
	QueueGroup       string
	AckWaitTimeout   time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration
	CloseTimeout     time.Duration
}

// DefaultConfig returns an in-process configuration.
func DefaultConfig() Config {
	return Config{
		Transport:        TransportGoChannel,
		Topic:            DefaultTopic,
		BufferSize:       1024,
		NATSURL:          natsgo.DefaultURL,
		SubscribersCount: 2,
		DurableName:      "lectern-aggregation",
		QueueGroup:       "lectern",
		AckWaitTimeout:   30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		CloseTimeout:     10 * time.Second,
	}
}

// Bus owns a publisher and subscriber pair for one transport.
type Bus struct {
	cfg        Config
	publisher  message.Publisher
	subscriber message.Subscriber
	wmLogger   watermill.LoggerAdapter
	logger     zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// New creates a bus for cfg.Transport.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg Config, logger zerolog.Logger) (*Bus, error) {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	wmLogger := watermill.NewSlogLogger(logging.NewSlogLogger(logger.With().Str("component", "watermill").Logger()))

	b := &Bus{
		cfg:      cfg,
		wmLogger: wmLogger,
		logger:   logger.With().Str("component", "eventbus").Str("transport", cfg.Transport).Logger(),
	}

	switch cfg.Transport {
	case "", TransportGoChannel:
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.BufferSize,
		}, wmLogger)
		b.publisher = ch
		b.subscriber = ch
	case TransportNATS:
		pub, sub, err := newNATS(&cfg, wmLogger)
		if err != nil {
			return nil, err
		}
		b.publisher = pub
		b.subscriber = sub
	default:
		return nil, fmt.Errorf("unknown event transport %q", cfg.Transport)
	}
	return b, nil
}

func newNATS(cfg *Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.NATSURL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.AckWait(cfg.AckWaitTimeout),
				natsgo.DeliverNew(),
			},
			DurablePrefix: cfg.DurableName,
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, nil, fmt.Errorf("create nats subscriber: %w", err)
	}
	return pub, sub, nil
}

// Topic returns the aggregation topic.
func (b *Bus) Topic() string {
	return b.cfg.Topic
}

// Subscriber returns the underlying subscriber for router handlers.
func (b *Bus) Subscriber() message.Subscriber {
	return b.subscriber
}

// WatermillLogger returns the logger adapter shared by the bus and its router.
func (b *Bus) WatermillLogger() watermill.LoggerAdapter {
	return b.wmLogger
}

// PublishRecorded announces a committed interaction.
func (b *Bus) PublishRecorded(ctx context.Context, r Recorded) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	msg, err := NewMessage(ctx, r)
	if err != nil {
		return err
	}
	if b.cfg.Transport == TransportNATS {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}
	if err := b.publisher.Publish(b.cfg.Topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", b.cfg.Topic, err)
	}
	return nil
}

// Close shuts down the publisher and subscriber.
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
	// gochannel is its own subscriber.
	if b.cfg.Transport == TransportNATS {
		if err := b.subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

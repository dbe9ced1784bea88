/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus bridges the in-process event bus onto NATS so external
// consumers (player clients, dashboards) can follow engine events without
// polling the API.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/Andrewske/music-minion-radio/internal/events"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Token         string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns connection defaults suitable for a local server.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// forwardedEvents are the bus events mirrored onto NATS subjects.
var forwardedEvents = []events.EventType{
	events.EventNowPlaying,
	events.EventScheduleRebuilt,
	events.EventTrackSkipped,
	events.EventTrackUnskipped,
	events.EventStationActivated,
	events.EventStationUpdated,
	events.EventStationDeleted,
}

// Publisher forwards in-process bus events to NATS subjects of the form
// "minionradio.events.<event_type>".
type Publisher struct {
	conn   *nats.Conn
	bus    *events.Bus
	logger zerolog.Logger
	nodeID string

	mu   sync.Mutex
	subs map[events.EventType]events.Subscriber
	done chan struct{}
	wg   sync.WaitGroup
}

// envelope is the wire format for published events.
type envelope struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

// NewPublisher connects to NATS and starts forwarding bus events. The caller
// owns the bus; Close detaches the forwarder without closing the bus.
func NewPublisher(cfg NATSConfig, bus *events.Bus, logger zerolog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("minionradio"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", cfg.URL, err)
	}

	p := &Publisher{
		conn:   conn,
		bus:    bus,
		logger: logger,
		nodeID: nodeID(),
		subs:   make(map[events.EventType]events.Subscriber),
		done:   make(chan struct{}),
	}
	for _, et := range forwardedEvents {
		sub := bus.Subscribe(et)
		p.subs[et] = sub
		p.wg.Add(1)
		go p.forward(et, sub)
	}
	logger.Info().Str("url", cfg.URL).Msg("nats event publisher started")
	return p, nil
}

func (p *Publisher) forward(et events.EventType, sub events.Subscriber) {
	defer p.wg.Done()
	subject := "minionradio.events." + string(et)
	for {
		select {
		case <-p.done:
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(envelope{
				EventType: et,
				Payload:   payload,
				Timestamp: time.Now().UTC(),
				NodeID:    p.nodeID,
				MessageID: uuid.NewString(),
			})
			if err != nil {
				p.logger.Error().Err(err).Str("event", string(et)).Msg("failed to marshal event envelope")
				continue
			}
			if err := p.conn.Publish(subject, data); err != nil {
				p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event to nats")
			}
		}
	}
}

// Close stops forwarding and drains the NATS connection.
func (p *Publisher) Close() error {
	close(p.done)
	p.mu.Lock()
	for et, sub := range p.subs {
		p.bus.Unsubscribe(et, sub)
	}
	p.subs = nil
	p.mu.Unlock()
	p.wg.Wait()

	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}

func nodeID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return host + "-" + uuid.NewString()[:8]
}

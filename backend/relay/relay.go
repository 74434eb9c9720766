package relay

import (
	"context"
	"strings"

	"github.com/adwski/pairchat/backend/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type (
	Storage interface {
		AppendMessage(ctx context.Context, sessionID, sender, body string) error
	}

	// Lookup resolves a connection's current partner and session.
	Lookup interface {
		PartnerOf(connID string) (string, bool)
		SessionOf(connID string) (string, bool)
	}

	Deliverer interface {
		Deliver(ctx context.Context, connID string, ev model.Event) bool
	}

	// Relay validates and forwards messages inside an active session:
	// persist, copy to the partner, echo to the sender. Invalid input is
	// dropped silently, only logged.
	Relay struct {
		storage Storage
		reg     Lookup
		sw      Deliverer
		metrics *Metrics
		logger  zerolog.Logger
	}

	Config struct {
		Storage  Storage
		Registry Lookup
		Switch   Deliverer
		Metrics  *Metrics
		Logger   *zerolog.Logger
	}
)

func New(cfg Config) *Relay {
	return &Relay{
		storage: cfg.Storage,
		reg:     cfg.Registry,
		sw:      cfg.Switch,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With().Str("component", "relay").Logger(),
	}
}

func (rl *Relay) Send(ctx context.Context, connID string, sender *model.Identity, body string) {
	logger := rl.logger.With().Str("connID", connID).Logger()

	body = strings.TrimSpace(body)
	if body == "" {
		logger.Debug().Msg("empty message dropped")
		return
	}
	partner, ok := rl.reg.PartnerOf(connID)
	if !ok {
		logger.Debug().Msg("message without active partner dropped")
		return
	}
	sessionID, ok := rl.reg.SessionOf(connID)
	if !ok {
		logger.Debug().Msg("message without session dropped")
		return
	}

	// Persist first: a message that cannot be logged is not delivered.
	if err := rl.storage.AppendMessage(ctx, sessionID, sender.Fingerprint, body); err != nil {
		logger.Error().Err(err).Str("sessionID", sessionID).Msg("failed to persist message")
		return
	}

	rl.sw.Deliver(ctx, partner, model.Event{
		Type: model.EventNewMessage,
		Payload: model.NewMessagePayload{
			Sender: sender.DisplayName,
			Body:   body,
			IsMe:   false,
		},
	})
	rl.sw.Deliver(ctx, connID, model.Event{
		Type: model.EventNewMessage,
		Payload: model.NewMessagePayload{
			Sender: sender.DisplayName,
			Body:   body,
			IsMe:   true,
		},
	})
	rl.metrics.RecordRelayed()
}

// Metrics counts relayed messages.
type Metrics struct {
	relayed prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairchat_messages_relayed_total",
			Help: "Messages validated, persisted and forwarded to both participants.",
		}),
	}
	reg.MustRegister(m.relayed)
	return m
}

func (m *Metrics) RecordRelayed() {
	if m == nil {
		return
	}
	m.relayed.Inc()
}

package _switch

import (
	"context"
	"sync"
	"time"

	"github.com/adwski/pairchat/backend/model"
	"github.com/rs/zerolog"
)

const (
	defaultFwdTimout = time.Second
)

type endpoint struct {
	wire   model.Wire
	cancel context.CancelFunc
}

// Switch owns the connection-id to wire lookup. The core hands it
// connection ids only and never touches a transport directly.
type Switch struct {
	logger zerolog.Logger
	mx     *sync.RWMutex
	fwd    map[string]endpoint
}

func NewSwitch(logger *zerolog.Logger) *Switch {
	return &Switch{
		logger: logger.With().Str("component", "switch").Logger(),
		mx:     &sync.RWMutex{},
		fwd:    make(map[string]endpoint),
	}
}

// Connect registers a connection's wire together with the cancel func that
// tears its transport down.
func (sw *Switch) Connect(connID string, wire model.Wire, cancel context.CancelFunc) {
	sw.mx.Lock()
	sw.fwd[connID] = endpoint{wire: wire, cancel: cancel}
	sw.mx.Unlock()
	sw.logger.Debug().Str("connID", connID).Msg("endpoint connected")
}

func (sw *Switch) Disconnect(connID string) {
	sw.mx.Lock()
	delete(sw.fwd, connID)
	sw.mx.Unlock()
	sw.logger.Debug().Str("connID", connID).Msg("endpoint disconnected")
}

// Drop disconnects an endpoint and cancels its transport. Used when a newer
// registration under the same fingerprint displaces an older connection.
func (sw *Switch) Drop(connID string) {
	sw.mx.Lock()
	ep, ok := sw.fwd[connID]
	delete(sw.fwd, connID)
	sw.mx.Unlock()

	if !ok {
		return
	}
	ep.cancel()
	sw.logger.Debug().Str("connID", connID).Msg("endpoint dropped")
}

// Deliver forwards an event to a connection's outbound wire. Reports false
// if the connection is unknown or its sender did not pick the event up in
// time.
func (sw *Switch) Deliver(ctx context.Context, connID string, ev model.Event) bool {
	logger := sw.logger.With().
		Str("connID", connID).
		Str("type", ev.Type).Logger()

	sw.mx.RLock()
	ep, ok := sw.fwd[connID]
	sw.mx.RUnlock()

	if !ok {
		logger.Debug().Msg("cannot deliver, connection not found")
		return false
	}

	var sent bool
	tCh := time.NewTimer(defaultFwdTimout)
	select {
	case <-ctx.Done():
	case <-tCh.C:
		logger.Error().Msg("dead endpoint")
	case ep.wire.TX <- ev:
		logger.Debug().Msg("event delivered")
		sent = true
	}
	tCh.Stop()
	return sent
}

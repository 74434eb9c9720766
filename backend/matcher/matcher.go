package matcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adwski/pairchat/backend/identity"
	"github.com/adwski/pairchat/backend/model"
	"github.com/adwski/pairchat/backend/pool"
	"github.com/adwski/pairchat/backend/registry"
	"github.com/rs/zerolog"
)

const (
	defaultWaitingTimeout = 5 * time.Minute
)

var (
	ErrBan = errors.New("unable to ban identity")
)

type connState int

const (
	stateUnregistered connState = iota
	stateWaiting
	statePaired
)

type conn struct {
	id    string
	ident *model.Identity
	state connState
}

type (
	Storage interface {
		SetOnline(ctx context.Context, fingerprint string, online bool) error
		SetBanned(ctx context.Context, fingerprint string, banned bool) error
		CreateSession(ctx context.Context, fingerprintA, fingerprintB string) (string, error)
		CloseSession(ctx context.Context, sessionID string) error
	}

	Resolver interface {
		Resolve(ctx context.Context, fingerprint string, role model.Role) (*model.Identity, error)
	}

	Switch interface {
		Connect(connID string, wire model.Wire, cancel context.CancelFunc)
		Disconnect(connID string)
		Drop(connID string)
		Deliver(ctx context.Context, connID string, ev model.Event) bool
	}

	Sender interface {
		Send(ctx context.Context, connID string, sender *model.Identity, body string)
	}

	// Matcher drives each connection through
	// unregistered -> waiting -> paired and back. All waiting-pool and
	// session-registry mutations funnel through it; mx serializes every
	// compound scan-then-pair and teardown sequence, including the storage
	// round trips inside them, so no two pairings can consume the same
	// waiting entry.
	Matcher struct {
		mx          sync.Mutex
		pool        *pool.Pool
		reg         *registry.Registry
		storage     Storage
		resolver    Resolver
		sw          Switch
		relay       Sender
		metrics     *Metrics
		waitTimeout time.Duration
		conns       map[string]*conn
		online      map[string]string // fingerprint -> live connID
		logger      zerolog.Logger
	}

	Config struct {
		Pool           *pool.Pool
		Registry       *registry.Registry
		Storage        Storage
		Resolver       Resolver
		Switch         Switch
		Relay          Sender
		Metrics        *Metrics
		WaitingTimeout time.Duration
		Logger         *zerolog.Logger
	}
)

func New(cfg Config) *Matcher {
	waitTimeout := cfg.WaitingTimeout
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitingTimeout
	}
	return &Matcher{
		pool:        cfg.Pool,
		reg:         cfg.Registry,
		storage:     cfg.Storage,
		resolver:    cfg.Resolver,
		sw:          cfg.Switch,
		relay:       cfg.Relay,
		metrics:     cfg.Metrics,
		waitTimeout: waitTimeout,
		conns:       make(map[string]*conn),
		online:      make(map[string]string),
		logger:      cfg.Logger.With().Str("component", "matcher").Logger(),
	}
}

// Connect hands a freshly established transport's wire to the switch. No
// matcher state exists for the connection until it registers.
func (m *Matcher) Connect(connID string, wire model.Wire, cancel context.CancelFunc) {
	m.sw.Connect(connID, wire, cancel)
}

// Register resolves the identity and either pairs the connection with a
// waiting partner or parks it in the waiting pool.
func (m *Matcher) Register(ctx context.Context, connID, fingerprint string, role model.Role) {
	m.mx.Lock()
	defer m.mx.Unlock()

	logger := m.logger.With().Str("connID", connID).Logger()

	prior, ok := m.conns[connID]
	if ok && prior.state != stateUnregistered {
		logger.Warn().Msg("register ignored, connection is already waiting or paired")
		return
	}

	ident, err := m.resolver.Resolve(ctx, fingerprint, role)
	if err != nil {
		if errors.Is(err, identity.ErrBanned) {
			logger.Info().Str("fingerprint", fingerprint).Msg("banned identity rejected")
			m.sw.Deliver(ctx, connID, model.Event{
				Type:    model.EventBanned,
				Payload: model.ErrorPayload{Message: "you are banned from this service"},
			})
			// full teardown now: the dropped transport's close callback
			// will find no state left
			m.disconnectLocked(ctx, connID)
			m.sw.Drop(connID)
			return
		}
		logger.Error().Err(err).Msg("identity resolution failed")
		m.sw.Deliver(ctx, connID, model.Event{
			Type:    model.EventRegistrationError,
			Payload: model.ErrorPayload{Message: "registration failed"},
		})
		return
	}

	// re-registration may resolve to a different identity; the previous
	// one is no longer bound to any live connection
	if prior != nil && prior.ident.Fingerprint != ident.Fingerprint &&
		m.online[prior.ident.Fingerprint] == connID {
		delete(m.online, prior.ident.Fingerprint)
		if err = m.storage.SetOnline(ctx, prior.ident.Fingerprint, false); err != nil {
			logger.Error().Err(err).
				Str("fingerprint", prior.ident.Fingerprint).
				Msg("failed to mark displaced identity offline")
		}
	}

	// Reconnect under a fingerprint whose previous connection is still
	// nominally live: the last registration wins, the old connection is
	// cleaned up and its transport dropped.
	if old, ok := m.online[ident.Fingerprint]; ok && old != connID {
		logger.Info().Str("oldConnID", old).Msg("displacing previous connection")
		m.orphanLocked(ctx, old)
		m.sw.Drop(old)
	}

	c := &conn{id: connID, ident: ident}
	m.conns[connID] = c
	m.online[ident.Fingerprint] = connID
	m.metrics.RecordRegistration()

	m.sw.Deliver(ctx, connID, model.Event{
		Type: model.EventRegistrationComplete,
		Payload: model.RegistrationCompletePayload{
			Fingerprint: ident.Fingerprint,
			DisplayName: ident.DisplayName,
			Role:        ident.Role,
		},
	})

	m.pairOrWaitLocked(ctx, c)
}

func (m *Matcher) pairOrWaitLocked(ctx context.Context, c *conn) {
	match, found := m.pool.FindMatch(c.ident.Fingerprint)
	if !found {
		err := m.pool.Enqueue(model.WaitingEntry{
			ConnID:     c.id,
			Identity:   c.ident,
			EnqueuedAt: time.Now(),
		}, m.waitTimeout, m.expire)
		if err != nil {
			m.logger.Warn().Err(err).Str("connID", c.id).Msg("enqueue failed")
			return
		}
		c.state = stateWaiting
		m.metrics.SetWaiting(m.pool.Len())
		m.sw.Deliver(ctx, c.id, model.Event{Type: model.EventWaitingForPartner})
		return
	}

	m.pool.Remove(match.ConnID)

	sessionID, err := m.storage.CreateSession(ctx, match.Identity.Fingerprint, c.ident.Fingerprint)
	if err != nil {
		// roll back: the consumed entry returns to the pool, the
		// registrant learns nothing happened
		m.logger.Error().Err(err).Msg("session creation failed")
		_ = m.pool.Enqueue(match, m.waitTimeout, m.expire)
		m.sw.Deliver(ctx, c.id, model.Event{
			Type:    model.EventRegistrationError,
			Payload: model.ErrorPayload{Message: "unable to start chat"},
		})
		return
	}

	partner := m.conns[match.ConnID]
	m.reg.Pair(c.id, partner.id, sessionID)
	c.ident.SessionID = sessionID
	partner.ident.SessionID = sessionID
	c.state = statePaired
	partner.state = statePaired

	m.metrics.RecordPairing()
	m.metrics.SetWaiting(m.pool.Len())
	m.metrics.SetSessions(m.reg.Len())
	m.logger.Debug().
		Str("connID", c.id).
		Str("partnerConnID", partner.id).
		Str("sessionID", sessionID).
		Msg("chat started")

	m.sw.Deliver(ctx, c.id, model.Event{
		Type: model.EventChatStarted,
		Payload: model.ChatStartedPayload{
			PartnerName: partner.ident.DisplayName,
			SessionID:   sessionID,
		},
	})
	m.sw.Deliver(ctx, partner.id, model.Event{
		Type: model.EventChatStarted,
		Payload: model.ChatStartedPayload{
			PartnerName: c.ident.DisplayName,
			SessionID:   sessionID,
		},
	})
}

// expire fires when a waiting entry outlives the waiting timeout. Firing
// after the connection matched or disconnected is a no-op.
func (m *Matcher) expire(connID string) {
	m.mx.Lock()
	defer m.mx.Unlock()

	if !m.pool.Remove(connID) {
		return
	}
	if c, ok := m.conns[connID]; ok {
		c.state = stateUnregistered
	}
	m.metrics.RecordTimeout()
	m.metrics.SetWaiting(m.pool.Len())
	m.logger.Debug().Str("connID", connID).Msg("waiting timed out")
	m.sw.Deliver(context.Background(), connID, model.Event{Type: model.EventWaitingTimeout})
}

// Send relays a message to the connection's active session. Messages from
// unregistered connections are dropped.
func (m *Matcher) Send(ctx context.Context, connID, body string) {
	m.mx.Lock()
	c, ok := m.conns[connID]
	var ident *model.Identity
	if ok {
		ident = c.ident
	}
	m.mx.Unlock()

	if ident == nil {
		m.logger.Debug().Str("connID", connID).Msg("message from unregistered connection dropped")
		return
	}
	m.relay.Send(ctx, connID, ident, body)
}

// Leave closes the connection's session (notifying the partner) or cancels
// its wait. The identity stays online and may re-register.
func (m *Matcher) Leave(ctx context.Context, connID string) {
	m.mx.Lock()
	defer m.mx.Unlock()

	c, ok := m.conns[connID]
	if !ok {
		return
	}
	switch c.state {
	case stateWaiting:
		m.pool.Remove(connID)
		m.metrics.SetWaiting(m.pool.Len())
	case statePaired:
		m.closeSessionLocked(ctx, connID)
	}
	c.state = stateUnregistered
	m.sw.Deliver(ctx, connID, model.Event{Type: model.EventDisconnectedOK})
}

// Disconnect runs the transport-close cleanup. It is idempotent: state for
// the connection is removed on first call, later calls are no-ops. Failures
// inside are logged and never propagate.
func (m *Matcher) Disconnect(ctx context.Context, connID string) {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.disconnectLocked(ctx, connID)
}

func (m *Matcher) disconnectLocked(ctx context.Context, connID string) {
	m.sw.Disconnect(connID)

	c, ok := m.conns[connID]
	if !ok {
		return
	}
	delete(m.conns, connID)

	switch c.state {
	case stateWaiting:
		m.pool.Remove(connID)
		m.metrics.SetWaiting(m.pool.Len())
	case statePaired:
		m.closeSessionLocked(ctx, connID)
	}

	if m.online[c.ident.Fingerprint] == connID {
		delete(m.online, c.ident.Fingerprint)
		if err := m.storage.SetOnline(ctx, c.ident.Fingerprint, false); err != nil {
			m.logger.Error().Err(err).
				Str("fingerprint", c.ident.Fingerprint).
				Msg("failed to mark identity offline")
		}
	}
	m.logger.Debug().Str("connID", connID).Msg("connection cleaned up")
}

// Ban marks an identity banned and, if it is currently connected, tears the
// connection down.
func (m *Matcher) Ban(ctx context.Context, fingerprint string) error {
	m.mx.Lock()
	defer m.mx.Unlock()

	if err := m.storage.SetBanned(ctx, fingerprint, true); err != nil {
		return errors.Join(ErrBan, err)
	}
	if connID, ok := m.online[fingerprint]; ok {
		m.sw.Deliver(ctx, connID, model.Event{
			Type:    model.EventBanned,
			Payload: model.ErrorPayload{Message: "you are banned from this service"},
		})
		m.orphanLocked(ctx, connID)
		delete(m.online, fingerprint)
		m.sw.Drop(connID)
		// the dropped transport's close callback finds no state left, so
		// the identity goes offline here
		if err := m.storage.SetOnline(ctx, fingerprint, false); err != nil {
			m.logger.Error().Err(err).
				Str("fingerprint", fingerprint).
				Msg("failed to mark banned identity offline")
		}
	}
	m.logger.Info().Str("fingerprint", fingerprint).Msg("identity banned")
	return nil
}

// Stats reports current waiting-pool size and open session count.
func (m *Matcher) Stats() (waiting, sessions int) {
	return m.pool.Len(), m.reg.Len()
}

// orphanLocked removes a connection's matcher state without marking its
// identity offline. The transport drop is up to the caller.
func (m *Matcher) orphanLocked(ctx context.Context, connID string) {
	c, ok := m.conns[connID]
	if !ok {
		m.pool.Remove(connID)
		return
	}
	delete(m.conns, connID)
	switch c.state {
	case stateWaiting:
		m.pool.Remove(connID)
		m.metrics.SetWaiting(m.pool.Len())
	case statePaired:
		m.closeSessionLocked(ctx, connID)
	}
}

// closeSessionLocked tears an open session down: unpair, purge persisted
// messages, clear both identities' session linkage, notify the partner.
func (m *Matcher) closeSessionLocked(ctx context.Context, connID string) {
	partner, sessionID, ok := m.reg.Unpair(connID)
	if !ok {
		return
	}
	if err := m.storage.CloseSession(ctx, sessionID); err != nil {
		m.logger.Error().Err(err).Str("sessionID", sessionID).Msg("failed to close session")
	}
	if c, ok := m.conns[connID]; ok {
		c.ident.SessionID = ""
	}
	if p, ok := m.conns[partner]; ok {
		p.ident.SessionID = ""
		p.state = stateUnregistered
	}
	m.metrics.SetSessions(m.reg.Len())
	m.logger.Debug().
		Str("connID", connID).
		Str("partnerConnID", partner).
		Str("sessionID", sessionID).
		Msg("session closed")
	m.sw.Deliver(ctx, partner, model.Event{Type: model.EventPartnerDisconnected})
}

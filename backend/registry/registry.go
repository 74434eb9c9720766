package registry

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry holds the bidirectional mapping of paired connections and their
// session id. It is a pure mapping structure: compound pair/close sequences
// are serialized by the lifecycle controller, which is the only mutator.
type Registry struct {
	logger   zerolog.Logger
	mx       *sync.RWMutex
	partners map[string]string // connID -> partner connID
	sessions map[string]string // connID -> session id
}

func New(logger *zerolog.Logger) *Registry {
	return &Registry{
		logger:   logger.With().Str("component", "session-registry").Logger(),
		mx:       &sync.RWMutex{},
		partners: make(map[string]string),
		sessions: make(map[string]string),
	}
}

// Pair records the symmetric mapping for two connections.
func (r *Registry) Pair(connA, connB, sessionID string) {
	r.mx.Lock()
	defer r.mx.Unlock()

	r.partners[connA] = connB
	r.partners[connB] = connA
	r.sessions[connA] = sessionID
	r.sessions[connB] = sessionID
	r.logger.Debug().
		Str("connA", connA).
		Str("connB", connB).
		Str("sessionID", sessionID).
		Msg("connections paired")
}

func (r *Registry) PartnerOf(connID string) (string, bool) {
	r.mx.RLock()
	defer r.mx.RUnlock()
	partner, ok := r.partners[connID]
	return partner, ok
}

func (r *Registry) SessionOf(connID string) (string, bool) {
	r.mx.RLock()
	defer r.mx.RUnlock()
	sessionID, ok := r.sessions[connID]
	return sessionID, ok
}

// Unpair removes both sides of the mapping and returns the former partner
// and session id. Unpairing an unpaired connection is a no-op.
func (r *Registry) Unpair(connID string) (partner, sessionID string, ok bool) {
	r.mx.Lock()
	defer r.mx.Unlock()

	partner, ok = r.partners[connID]
	if !ok {
		return "", "", false
	}
	sessionID = r.sessions[connID]
	delete(r.partners, connID)
	delete(r.partners, partner)
	delete(r.sessions, connID)
	delete(r.sessions, partner)
	return partner, sessionID, true
}

// Len reports the number of open sessions.
func (r *Registry) Len() int {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return len(r.partners) / 2
}

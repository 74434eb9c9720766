package pool

import (
	"errors"
	"sync"
	"time"

	"github.com/adwski/pairchat/backend/model"
	"github.com/rs/zerolog"
)

var (
	ErrAlreadyWaiting = errors.New("connection is already waiting")
)

type waiting struct {
	entry model.WaitingEntry
	timer *time.Timer
}

// Pool holds connections seeking a partner. Matching picks an arbitrary
// structurally eligible entry, there is deliberately no oldest-first
// ordering.
type Pool struct {
	logger  zerolog.Logger
	mx      *sync.Mutex
	entries map[string]*waiting
}

func New(logger *zerolog.Logger) *Pool {
	return &Pool{
		logger:  logger.With().Str("component", "waiting-pool").Logger(),
		mx:      &sync.Mutex{},
		entries: make(map[string]*waiting),
	}
}

// Enqueue parks an entry. After maxAge, if the entry is still present,
// onExpire is invoked with its connection id; matching or removal before
// that stops the timer.
func (p *Pool) Enqueue(entry model.WaitingEntry, maxAge time.Duration, onExpire func(connID string)) error {
	p.mx.Lock()
	defer p.mx.Unlock()

	if _, ok := p.entries[entry.ConnID]; ok {
		return ErrAlreadyWaiting
	}
	connID := entry.ConnID
	p.entries[connID] = &waiting{
		entry: entry,
		timer: time.AfterFunc(maxAge, func() { onExpire(connID) }),
	}
	p.logger.Debug().
		Str("connID", connID).
		Str("fingerprint", entry.Identity.Fingerprint).
		Msg("entry enqueued")
	return nil
}

// FindMatch returns some entry whose fingerprint differs from
// excludeFingerprint. Self-pairing is forbidden even across reconnects.
func (p *Pool) FindMatch(excludeFingerprint string) (model.WaitingEntry, bool) {
	p.mx.Lock()
	defer p.mx.Unlock()

	for _, w := range p.entries {
		if w.entry.Identity.Fingerprint != excludeFingerprint {
			return w.entry, true
		}
	}
	return model.WaitingEntry{}, false
}

// Remove drops an entry and stops its expiry timer. Removing an absent
// entry is a no-op and reports false.
func (p *Pool) Remove(connID string) bool {
	p.mx.Lock()
	defer p.mx.Unlock()

	w, ok := p.entries[connID]
	if !ok {
		return false
	}
	w.timer.Stop()
	delete(p.entries, connID)
	return true
}

func (p *Pool) Len() int {
	p.mx.Lock()
	defer p.mx.Unlock()
	return len(p.entries)
}

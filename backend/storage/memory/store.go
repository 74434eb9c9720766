package memory

import (
	"context"
	"sync"
	"time"

	"github.com/adwski/pairchat/backend/model"
	"github.com/adwski/pairchat/backend/storage"
	"github.com/google/uuid"
)

// Store is an in-memory persistence gateway. It keeps the same surface as
// the postgres gateway and backs tests and single-node dev runs.
type Store struct {
	mx         *sync.Mutex
	identities map[string]*model.Identity
	sessions   map[string]*model.Session
	messages   map[string][]model.Message // keyed by session id
}

func NewStore() *Store {
	return &Store{
		mx:         &sync.Mutex{},
		identities: make(map[string]*model.Identity),
		sessions:   make(map[string]*model.Session),
		messages:   make(map[string][]model.Message),
	}
}

func (s *Store) FindIdentity(_ context.Context, fingerprint string) (*model.Identity, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	ident, ok := s.identities[fingerprint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *ident
	return &cp, nil
}

func (s *Store) CreateIdentity(_ context.Context, ident *model.Identity) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	cp := *ident
	cp.CreatedAt = time.Now()
	s.identities[ident.Fingerprint] = &cp
	return nil
}

func (s *Store) SetOnline(_ context.Context, fingerprint string, online bool) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	ident, ok := s.identities[fingerprint]
	if !ok {
		return storage.ErrNotFound
	}
	ident.Online = online
	return nil
}

func (s *Store) SetBanned(_ context.Context, fingerprint string, banned bool) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	ident, ok := s.identities[fingerprint]
	if !ok {
		return storage.ErrNotFound
	}
	ident.Banned = banned
	return nil
}

func (s *Store) CreateSession(_ context.Context, fingerprintA, fingerprintB string) (string, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	sess := &model.Session{
		ID:           uuid.NewString(),
		FingerprintA: fingerprintA,
		FingerprintB: fingerprintB,
		CreatedAt:    time.Now(),
	}
	s.sessions[sess.ID] = sess
	if ident, ok := s.identities[fingerprintA]; ok {
		ident.SessionID = sess.ID
	}
	if ident, ok := s.identities[fingerprintB]; ok {
		ident.SessionID = sess.ID
	}
	return sess.ID, nil
}

// CloseSession clears the participants' active linkage and drops the
// session's messages. Closing an unknown session is a no-op.
func (s *Store) CloseSession(_ context.Context, sessionID string) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	now := time.Now()
	sess.ClosedAt = &now
	for _, fp := range []string{sess.FingerprintA, sess.FingerprintB} {
		if ident, ok := s.identities[fp]; ok && ident.SessionID == sessionID {
			ident.SessionID = ""
		}
	}
	delete(s.messages, sessionID)
	return nil
}

func (s *Store) AppendMessage(_ context.Context, sessionID, sender, body string) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return storage.ErrNotFound
	}
	s.messages[sessionID] = append(s.messages[sessionID], model.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Sender:    sender,
		Body:      body,
		SentAt:    time.Now(),
	})
	return nil
}

// Messages returns a copy of the stored messages for a session.
func (s *Store) Messages(sessionID string) []model.Message {
	s.mx.Lock()
	defer s.mx.Unlock()

	msgs := s.messages[sessionID]
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out
}

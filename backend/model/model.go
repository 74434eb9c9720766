package model

import "time"

// Role is the self-declared conversation attribute a client registers with.
// It does not affect matching.
type Role string

const (
	RoleTalker   Role = "talker"
	RoleListener Role = "listener"
)

// Identity is the durable record behind a fingerprint. It survives
// reconnects; Online and SessionID are soft state flipped on
// connect/pair/disconnect.
type Identity struct {
	Fingerprint string    `bun:",pk"`
	DisplayName string    `bun:",notnull"`
	Role        Role      `bun:",notnull"`
	Online      bool      `bun:",notnull,default:false"`
	Banned      bool      `bun:",notnull,default:false"`
	SessionID   string    `bun:",nullzero"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// Session records one two-party pairing. Participants are unordered.
type Session struct {
	ID           string     `bun:",pk"`
	FingerprintA string     `bun:",notnull"`
	FingerprintB string     `bun:",notnull"`
	CreatedAt    time.Time  `bun:",nullzero,notnull,default:current_timestamp"`
	ClosedAt     *time.Time `bun:",nullzero"`
}

type Message struct {
	ID        string    `bun:",pk"`
	SessionID string    `bun:",notnull"`
	Sender    string    `bun:",notnull"` // sender fingerprint
	Body      string    `bun:",notnull"`
	SentAt    time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// WaitingEntry is a connection parked in the waiting pool until a partner
// shows up or the wait times out.
type WaitingEntry struct {
	ConnID     string
	Identity   *Identity
	EnqueuedAt time.Time
}

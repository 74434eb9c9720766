package model

import "encoding/json"

// Client event types.
const (
	EventRegister     = "register"
	EventSendMessage  = "send-message"
	EventLeaveSession = "leave-session"
)

// Server event types.
const (
	EventRegistrationComplete = "registration-complete"
	EventRegistrationError    = "registration-error"
	EventBanned               = "banned"
	EventWaitingForPartner    = "waiting-for-partner"
	EventWaitingTimeout       = "waiting-timeout"
	EventChatStarted          = "chat-started"
	EventNewMessage           = "new-message"
	EventPartnerDisconnected  = "partner-disconnected"
	EventDisconnectedOK       = "disconnected-successfully"
)

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// RawEvent defers payload decoding until the type is known.
type RawEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type RegisterPayload struct {
	Fingerprint string `json:"fingerprint,omitempty"`
	Role        Role   `json:"role"`
}

type SendMessagePayload struct {
	SessionID string `json:"sessionId"`
	Body      string `json:"body"`
}

type RegistrationCompletePayload struct {
	Fingerprint string `json:"fingerprint"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

type ChatStartedPayload struct {
	PartnerName string `json:"partnerName"`
	SessionID   string `json:"sessionId"`
}

type NewMessagePayload struct {
	Sender string `json:"sender"`
	Body   string `json:"body"`
	IsMe   bool   `json:"isMe"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Wire is the per-connection event pipe between the transport layer and the
// core: RX carries client events inbound, TX carries server events outbound.
type Wire struct {
	RX chan RawEvent
	TX chan Event
}

func NewWire() Wire {
	return Wire{
		RX: make(chan RawEvent),
		TX: make(chan Event),
	}
}

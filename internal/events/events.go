// Package events defines the outbound lifecycle events published when staged
// actions are released. From downstream systems' point of view these are
// idempotent observations; re-emitting one on redelivery is tolerable.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

type Type string

const (
	TypeMessageRead   Type = "agent.message.read"
	TypeTypingStarted Type = "agent.typing.started"
	TypeTypingStopped Type = "agent.typing.stopped"
	TypeReplyCreated  Type = "agent.reply.created"
)

// Envelope wraps one outbound event for the bus.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  Type            `json:"event_type"`
	TenantID   string          `json:"tenant_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func (e Envelope) DecodePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEnvelope marshals payload and wraps it.
func NewEnvelope(eventID string, eventType Type, tenantID string, occurredAt time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:    eventID,
		EventType:  eventType,
		TenantID:   tenantID,
		OccurredAt: occurredAt,
		Payload:    raw,
	}, nil
}

type Timestamps struct {
	At time.Time `json:"at"`
}

// MessageReadPayload is emitted when the agent "sees" the contact's message.
type MessageReadPayload struct {
	TenantID       string     `json:"tenantId"`
	ContactPK      string     `json:"contact_pk"`
	Channel        string     `json:"channel"`
	ConversationID string     `json:"conversation_id,omitempty"`
	MessageID      string     `json:"message_id"`
	Timestamps     Timestamps `json:"timestamps"`
}

// TypingPayload is shared by typing.started and typing.stopped.
type TypingPayload struct {
	TenantID       string     `json:"tenantId"`
	ContactPK      string     `json:"contact_pk"`
	Channel        string     `json:"channel"`
	ConversationID string     `json:"conversation_id,omitempty"`
	MessageID      string     `json:"message_id"`
	Persona        string     `json:"persona,omitempty"`
	Timestamps     Timestamps `json:"timestamps"`
}

// ReplyCreatedPayload carries the reply text plus empty routing/metadata
// envelopes for downstream delivery adapters to fill in.
type ReplyCreatedPayload struct {
	TenantID         string         `json:"tenantId"`
	ContactPK        string         `json:"contact_pk"`
	PreferredChannel string         `json:"preferredChannel"`
	Text             string         `json:"text"`
	Routing          map[string]any `json:"routing"`
	ConversationID   string         `json:"conversation_id,omitempty"`
	Metadata         map[string]any `json:"metadata"`
}

// Package stage defines the staged-action wire type shared by the scheduler
// and the release consumer.
package stage

import "fmt"

type Kind string

const (
	KindRead      Kind = "READ"
	KindTypingOn  Kind = "TYPING_ON"
	KindTypingOff Kind = "TYPING_OFF"
	KindFinal     Kind = "FINAL"
)

type Channel string

const (
	ChannelChat  Channel = "chat"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelAPI   Channel = "api"
)

func ParseChannel(raw string) (Channel, error) {
	switch Channel(raw) {
	case ChannelChat, ChannelSMS, ChannelEmail, ChannelAPI:
		return Channel(raw), nil
	default:
		return "", fmt.Errorf("unknown channel %q", raw)
	}
}

// KindsFor returns the delivery stages a channel emits, in release order.
// Only chat gets the full read/typing choreography; everything else delivers
// the final reply alone.
func KindsFor(channel Channel) []Kind {
	if channel == ChannelChat {
		return []Kind{KindRead, KindTypingOn, KindTypingOff, KindFinal}
	}
	return []Kind{KindFinal}
}

// Action is one delivery-stage event scheduled for future release. It is
// created by the scheduler, serialized onto the release queue, consumed once
// by the release consumer, and then discarded.
type Action struct {
	ReleaseEventID string  `json:"releaseEventId"`
	TenantID       string  `json:"tenantId"`
	ContactPK      string  `json:"contact_pk"`
	ConversationID string  `json:"conversation_id,omitempty"`
	ThreadKey      string  `json:"threadKey"`
	Channel        Channel `json:"channel"`
	Kind           Kind    `json:"kind"`
	Persona        string  `json:"persona,omitempty"`
	ReplyText      string  `json:"replyText,omitempty"`
	MessageID      string  `json:"message_id"`
	DueAtMS        int64   `json:"dueAtMs"`
}

// DedupKey suppresses duplicate queue deliveries of the same logical stage
// when a caller retries the whole enqueue.
func (a Action) DedupKey() string {
	return a.ReleaseEventID + ":" + string(a.Kind)
}

// GroupKey is the ordering partition: all stages for one conversation thread
// are delivered in enqueue order.
func (a Action) GroupKey() string {
	return a.TenantID + "#" + a.ThreadKey
}

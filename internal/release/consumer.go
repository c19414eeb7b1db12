// Package release turns due staged actions into outbound lifecycle events.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ToldYaOnce/kx-reply-pacer/internal/events"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/queue"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/stage"
)

// Publisher is the outbound event bus contract.
type Publisher interface {
	Publish(ctx context.Context, envelope events.Envelope) error
}

// Consumer is a batch handler over the release queue. Each record is handled
// independently: a malformed body or a publish failure marks that record as
// failed and never aborts its siblings.
type Consumer struct {
	publisher Publisher
	logger    *log.Logger

	now   func() time.Time
	newID func() string
}

func NewConsumer(publisher Publisher, logger *log.Logger) *Consumer {
	if publisher == nil {
		panic("release: publisher is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Consumer{
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// HandleBatch implements queue.Handler. The returned IDs are the only control
// signal back to the queue runtime; an empty slice means full batch success.
func (c *Consumer) HandleBatch(ctx context.Context, records []queue.Record) []string {
	var failed []string
	for _, rec := range records {
		if err := c.handleRecord(ctx, rec); err != nil {
			c.logger.Printf("release record failed id=%s err=%v", rec.ID, err)
			failed = append(failed, rec.ID)
		}
	}
	return failed
}

func (c *Consumer) handleRecord(ctx context.Context, rec queue.Record) error {
	var action stage.Action
	if err := json.Unmarshal(rec.Body, &action); err != nil {
		return fmt.Errorf("decode staged action: %w", err)
	}

	envelope, ok, err := c.buildEvent(action)
	if err != nil {
		return err
	}
	if !ok {
		// Unknown stage kinds are a forward-compatible no-op, not a failure.
		c.logger.Printf("skipping unknown stage kind=%q release_event=%s", action.Kind, action.ReleaseEventID)
		return nil
	}

	if err := c.publisher.Publish(ctx, envelope); err != nil {
		return fmt.Errorf("publish %s: %w", envelope.EventType, err)
	}
	return nil
}

func (c *Consumer) buildEvent(action stage.Action) (events.Envelope, bool, error) {
	now := c.now()
	stamps := events.Timestamps{At: now}

	var (
		eventType events.Type
		payload   any
	)
	switch action.Kind {
	case stage.KindRead:
		eventType = events.TypeMessageRead
		payload = events.MessageReadPayload{
			TenantID:       action.TenantID,
			ContactPK:      action.ContactPK,
			Channel:        string(action.Channel),
			ConversationID: action.ConversationID,
			MessageID:      action.MessageID,
			Timestamps:     stamps,
		}
	case stage.KindTypingOn, stage.KindTypingOff:
		eventType = events.TypeTypingStarted
		if action.Kind == stage.KindTypingOff {
			eventType = events.TypeTypingStopped
		}
		payload = events.TypingPayload{
			TenantID:       action.TenantID,
			ContactPK:      action.ContactPK,
			Channel:        string(action.Channel),
			ConversationID: action.ConversationID,
			MessageID:      action.MessageID,
			Persona:        action.Persona,
			Timestamps:     stamps,
		}
	case stage.KindFinal:
		eventType = events.TypeReplyCreated
		payload = events.ReplyCreatedPayload{
			TenantID:         action.TenantID,
			ContactPK:        action.ContactPK,
			PreferredChannel: string(action.Channel),
			Text:             action.ReplyText,
			Routing:          map[string]any{},
			ConversationID:   action.ConversationID,
			Metadata:         map[string]any{},
		}
	default:
		return events.Envelope{}, false, nil
	}

	envelope, err := events.NewEnvelope(c.newID(), eventType, action.TenantID, now, payload)
	if err != nil {
		return events.Envelope{}, false, err
	}
	return envelope, true, nil
}

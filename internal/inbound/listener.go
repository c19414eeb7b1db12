// Package inbound consumes contact messages from a Redis Stream, asks the
// external responder for reply text, and hands the reply to the scheduler.
package inbound

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ToldYaOnce/kx-reply-pacer/internal/respond"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/schedule"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/stage"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/timing"
)

const (
	defaultStream  = "pacer:inbound"
	consumerGroup  = "pacer-inbound"
	readBlock      = 5 * time.Second
	readBatchCount = 10

	busyGroupErrMessage = "BUSYGROUP Consumer Group name already exists"
)

// Envelope is one inbound contact message on the stream.
type Envelope struct {
	MessageID      string    `json:"message_id"`
	TenantID       string    `json:"tenant_id"`
	ContactPK      string    `json:"contact_pk"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Channel        string    `json:"channel"`
	Text           string    `json:"text"`
	ReceivedAt     time.Time `json:"received_at"`
}

// ReplyScheduler is the slice of the scheduler the listener needs.
type ReplyScheduler interface {
	Schedule(ctx context.Context, req schedule.Request) (timing.Timing, error)
}

type Listener struct {
	rdb            *redis.Client
	responder      respond.Responder
	scheduler      ReplyScheduler
	logger         *log.Logger
	stream         string
	consumer       string
	defaultPersona string
}

func NewListener(rdb *redis.Client, responder respond.Responder, scheduler ReplyScheduler, consumer, defaultPersona string, logger *log.Logger) *Listener {
	if rdb == nil {
		panic("inbound: redis client is required")
	}
	if responder == nil {
		panic("inbound: responder is required")
	}
	if scheduler == nil {
		panic("inbound: scheduler is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if strings.TrimSpace(consumer) == "" {
		consumer = "pacer-1"
	}
	return &Listener{
		rdb:            rdb,
		responder:      responder,
		scheduler:      scheduler,
		logger:         logger,
		stream:         defaultStream,
		consumer:       consumer,
		defaultPersona: defaultPersona,
	}
}

func (l *Listener) EnsureConsumerGroup(ctx context.Context) error {
	err := l.rdb.XGroupCreateMkStream(ctx, l.stream, consumerGroup, "0").Err()
	if err != nil && err.Error() != busyGroupErrMessage {
		return fmt.Errorf("create inbound consumer group: %w", err)
	}
	return nil
}

// Run consumes until ctx is cancelled. Messages are acknowledged even when
// handling fails; a reply that could not be scheduled is logged and dropped
// rather than poisoning the stream.
func (l *Listener) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := l.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: l.consumer,
			Streams:  []string{l.stream, ">"},
			Count:    readBatchCount,
			Block:    readBlock,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Printf("inbound read error: %v", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				if err := l.handleMessage(ctx, msg); err != nil {
					l.logger.Printf("inbound message %s failed: %v", msg.ID, err)
				}
				l.rdb.XAck(ctx, l.stream, consumerGroup, msg.ID)
			}
		}
	}
}

func (l *Listener) handleMessage(ctx context.Context, msg redis.XMessage) error {
	raw, ok := msg.Values["envelope"].(string)
	if !ok {
		return fmt.Errorf("missing envelope field")
	}
	var envelope Envelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return fmt.Errorf("decode inbound envelope: %w", err)
	}
	return l.handleEnvelope(ctx, envelope)
}

func (l *Listener) handleEnvelope(ctx context.Context, envelope Envelope) error {
	reply, err := l.responder.Respond(ctx, respond.Request{
		TenantID:       envelope.TenantID,
		ContactKey:     envelope.ContactPK,
		ConversationID: envelope.ConversationID,
		Channel:        envelope.Channel,
		MessageID:      envelope.MessageID,
		Text:           envelope.Text,
	})
	if err != nil {
		return fmt.Errorf("responder: %w", err)
	}

	conversationID := envelope.ConversationID
	if conversationID == "" {
		conversationID = reply.ConversationID
	}
	personaName := reply.Persona
	if personaName == "" {
		personaName = l.defaultPersona
	}

	_, err = l.scheduler.Schedule(ctx, schedule.Request{
		TenantID:        envelope.TenantID,
		ContactKey:      envelope.ContactPK,
		ConversationID:  conversationID,
		Channel:         stage.Channel(envelope.Channel),
		Persona:         personaName,
		SourceMessageID: envelope.MessageID,
		ReplyText:       reply.Text,
		InputChars:      len(envelope.Text),
		InputTokens:     estimateTokens(envelope.Text),
	})
	if err != nil {
		return fmt.Errorf("schedule reply: %w", err)
	}
	return nil
}

// estimateTokens approximates the responder's token count with a whitespace
// split; the timing model only needs the right order of magnitude.
func estimateTokens(text string) int {
	return len(strings.Fields(text))
}

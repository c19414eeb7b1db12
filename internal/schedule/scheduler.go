// Package schedule builds the staged delivery plan for one reply and places
// it on the release queue.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ToldYaOnce/kx-reply-pacer/internal/persona"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/queue"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/stage"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/timing"
)

const (
	// typingOnDelayMS separates the read receipt from the typing indicator.
	typingOnDelayMS int64 = 300
	// typingOffLeadMS stops the indicator just before the reply lands.
	typingOffLeadMS int64 = 250
)

// ErrInvalidRequest marks requests rejected before any work happened.
var ErrInvalidRequest = errors.New("invalid schedule request")

// Request describes one reply to pace and deliver.
type Request struct {
	TenantID        string
	ContactKey      string
	ConversationID  string
	Channel         stage.Channel
	Persona         string
	SourceMessageID string
	ReplyText       string
	InputChars      int
	InputTokens     int
}

func (r Request) validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.ContactKey) == "" {
		return fmt.Errorf("%w: contact key is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.SourceMessageID) == "" {
		return fmt.Errorf("%w: source message id is required", ErrInvalidRequest)
	}
	if _, err := stage.ParseChannel(string(r.Channel)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// ThreadKey is the ordering partition for the request's conversation.
func (r Request) ThreadKey() string {
	if r.ConversationID != "" {
		return r.ConversationID
	}
	return r.ContactKey
}

// Scheduler computes a Timing for each reply and enqueues its staged actions.
// Stage enqueues are sequential and are not rolled back on failure: a reply
// can end up partially scheduled. Stage event IDs derive from the seed key,
// so a full caller retry regenerates the same dedup keys and the queue drops
// the stages that already made it in.
type Scheduler struct {
	queue    queue.Enqueuer
	personas persona.Store
	logger   *log.Logger

	now   func() time.Time
	newID func(seedKey string, kind stage.Kind) string
}

func New(enqueuer queue.Enqueuer, personas persona.Store, logger *log.Logger) *Scheduler {
	if enqueuer == nil {
		panic("schedule: enqueuer is required")
	}
	if personas == nil {
		panic("schedule: persona store is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Scheduler{
		queue:    enqueuer,
		personas: personas,
		logger:   logger,
		now:      time.Now,
		newID:    stageEventID,
	}
}

// stageEventID is a name-based UUID over the seed key and stage kind. The
// same reply always yields the same four IDs, which keeps dedup keys stable
// across caller retries while staying unique per staged action.
func stageEventID(seedKey string, kind stage.Kind) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seedKey+":"+string(kind))).String()
}

// Schedule enqueues 1-4 staged actions for the reply and returns the computed
// Timing for telemetry. An unknown persona fails synchronously before
// anything is enqueued.
func (s *Scheduler) Schedule(ctx context.Context, req Request) (timing.Timing, error) {
	if err := req.validate(); err != nil {
		return timing.Timing{}, err
	}

	profile, err := s.personas.Get(ctx, req.Persona)
	if err != nil {
		return timing.Timing{}, fmt.Errorf("resolve persona %q: %w", req.Persona, err)
	}

	seedKey := req.TenantID + ":" + req.ThreadKey() + ":" + req.SourceMessageID
	computed := timing.Compute(seedKey, profile, req.InputChars, req.InputTokens, len(req.ReplyText))

	now := s.now()
	actions := s.buildActions(req, seedKey, computed, now.UnixMilli())

	for _, action := range actions {
		body, err := json.Marshal(action)
		if err != nil {
			return computed, fmt.Errorf("encode stage %s: %w", action.Kind, err)
		}
		msg := queue.Message{
			Body:     body,
			Delay:    clampDelay(time.Duration(action.DueAtMS-s.now().UnixMilli()) * time.Millisecond),
			GroupKey: action.GroupKey(),
			DedupKey: action.DedupKey(),
		}
		if err := s.queue.Enqueue(ctx, msg); err != nil {
			return computed, fmt.Errorf("enqueue stage %s: %w", action.Kind, err)
		}
	}

	s.logger.Printf("scheduled reply tenant=%s thread=%s message=%s stages=%d total_ms=%d",
		req.TenantID, req.ThreadKey(), req.SourceMessageID, len(actions), computed.TotalMS)
	return computed, nil
}

func (s *Scheduler) buildActions(req Request, seedKey string, computed timing.Timing, nowMS int64) []stage.Action {
	threadKey := req.ThreadKey()
	base := stage.Action{
		TenantID:       req.TenantID,
		ContactPK:      req.ContactKey,
		ConversationID: req.ConversationID,
		ThreadKey:      threadKey,
		Channel:        req.Channel,
		Persona:        req.Persona,
		MessageID:      req.SourceMessageID,
	}

	// The cap on TotalMS can pull the final stage ahead of the raw read and
	// typing offsets, so each due time is clamped to keep
	// READ <= TYPING_ON <= TYPING_OFF <= FINAL.
	finalDue := nowMS + computed.TotalMS
	readDue := minMS(nowMS+computed.ReadMS, finalDue)
	typingOnDue := minMS(readDue+typingOnDelayMS, finalDue)
	typingOffDue := maxMS(finalDue-typingOffLeadMS, typingOnDue)

	var actions []stage.Action
	for _, kind := range stage.KindsFor(req.Channel) {
		action := base
		action.ReleaseEventID = s.newID(seedKey, kind)
		action.Kind = kind
		switch kind {
		case stage.KindRead:
			action.DueAtMS = readDue
		case stage.KindTypingOn:
			action.DueAtMS = typingOnDue
		case stage.KindTypingOff:
			action.DueAtMS = typingOffDue
		case stage.KindFinal:
			action.DueAtMS = finalDue
			action.ReplyText = req.ReplyText
		}
		actions = append(actions, action)
	}
	return actions
}

func minMS(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxMS(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func clampDelay(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > queue.MaxDelay {
		return queue.MaxDelay
	}
	return d
}

// Package logging provides a subscriber that writes one line per outbound
// event, mostly useful in development and as a liveness signal in prod logs.
package logging

import (
	"context"
	"io"
	"log"

	"github.com/ToldYaOnce/kx-reply-pacer/internal/events"
)

type Subscriber struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Subscriber {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Subscriber{logger: logger}
}

func (s *Subscriber) Name() string { return "logging" }

func (s *Subscriber) Handle(_ context.Context, envelope events.Envelope) error {
	s.logger.Printf("event type=%s tenant=%s event_id=%s", envelope.EventType, envelope.TenantID, envelope.EventID)
	return nil
}

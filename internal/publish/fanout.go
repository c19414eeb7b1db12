// Package publish implements the outbound event bus contracts: a synchronous
// fan-out over subscribers and a Redis Stream publisher.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/ToldYaOnce/kx-reply-pacer/internal/events"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/subscribers"
)

// Fanout delivers each event to every subscriber in order. Delivery is
// synchronous on purpose: a failed delivery must surface to the release
// consumer as a batch item failure, so the queue redelivers the record.
type Fanout struct {
	logger *log.Logger
	subs   []subscribers.Subscriber
}

func NewFanout(logger *log.Logger, subs []subscribers.Subscriber) *Fanout {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Fanout{logger: logger, subs: subs}
}

func (f *Fanout) Publish(ctx context.Context, envelope events.Envelope) error {
	var errs []error
	for _, sub := range f.subs {
		if err := sub.Handle(ctx, envelope); err != nil {
			f.logger.Printf("subscriber=%s event_id=%s err=%v", sub.Name(), envelope.EventID, err)
			errs = append(errs, fmt.Errorf("%s: %w", sub.Name(), err))
		}
	}
	return errors.Join(errs...)
}

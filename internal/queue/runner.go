package queue

import (
	"context"
	"io"
	"log"
	"time"
)

const (
	defaultBatchSize    = 10
	defaultIdleInterval = 250 * time.Millisecond
)

// Runner drives a Handler from a Source: receive a batch, hand it to the
// handler, acknowledge everything the handler did not report as failed.
// Failed records are left unacked for the source to redeliver.
type Runner struct {
	source  Source
	handler Handler
	logger  *log.Logger

	batchSize    int
	idleInterval time.Duration
}

func NewRunner(source Source, handler Handler, logger *log.Logger) *Runner {
	if source == nil {
		panic("queue: source is required")
	}
	if handler == nil {
		panic("queue: handler is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Runner{
		source:       source,
		handler:      handler,
		logger:       logger,
		batchSize:    defaultBatchSize,
		idleInterval: defaultIdleInterval,
	}
}

// Run consumes until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !r.RunOnce(ctx) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.idleInterval):
			}
		}
	}
}

// RunOnce processes at most one batch and reports whether any records were
// received.
func (r *Runner) RunOnce(ctx context.Context) bool {
	records, err := r.source.Receive(ctx, r.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Printf("queue receive error: %v", err)
		}
		return false
	}
	if len(records) == 0 {
		return false
	}

	failed := r.handler.HandleBatch(ctx, records)
	failedSet := make(map[string]bool, len(failed))
	for _, id := range failed {
		failedSet[id] = true
	}

	acked := make([]string, 0, len(records))
	for _, rec := range records {
		if !failedSet[rec.ID] {
			acked = append(acked, rec.ID)
		}
	}
	if len(failed) > 0 {
		r.logger.Printf("batch item failures count=%d of=%d", len(failed), len(records))
	}
	if err := r.source.Ack(ctx, acked); err != nil {
		r.logger.Printf("queue ack error: %v", err)
	}
	return true
}

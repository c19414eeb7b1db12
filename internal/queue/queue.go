// Package queue defines the delayed, deduplicated, group-ordered message
// channel the pacing pipeline is built on, plus in-memory and Redis-backed
// implementations. Delivery is at-least-once; ordering is guaranteed only
// within a group key.
package queue

import (
	"context"
	"time"
)

// MaxDelay is the longest visibility delay the queue contract supports.
// Callers must clamp; Enqueue rejects anything beyond it.
const MaxDelay = 15 * time.Minute

// Message is one enqueue request.
type Message struct {
	Body     []byte
	Delay    time.Duration
	GroupKey string
	DedupKey string
}

// Enqueuer accepts delayed messages. A message whose DedupKey was seen within
// the dedup window is silently dropped.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg Message) error
}

// Record is one received message with its queue-assigned identifier, used to
// report per-record failures.
type Record struct {
	ID       string
	Body     []byte
	GroupKey string
}

// Handler processes a batch of due records and returns the IDs of records
// that failed. An empty slice means the whole batch succeeded. A failed
// record stays on the queue for redelivery; its siblings are acknowledged.
type Handler interface {
	HandleBatch(ctx context.Context, records []Record) []string
}

// Source is the receive side of the queue contract.
type Source interface {
	// Receive returns up to max due records, blocking up to the
	// implementation's batching window when none are ready.
	Receive(ctx context.Context, max int) ([]Record, error)
	// Ack removes successfully processed records.
	Ack(ctx context.Context, ids []string) error
}

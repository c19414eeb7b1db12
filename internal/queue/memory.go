package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultDedupWindow = 5 * time.Minute
	defaultVisibility  = 30 * time.Second
)

type memRecord struct {
	seq      int64
	id       string
	body     []byte
	groupKey string
	readyAt  time.Time
	// claimedUntil is zero while the record sits in the pending queue.
	claimedUntil time.Time
}

// MemoryQueue is an in-process implementation of the queue contract used in
// tests and single-node deployments. It honors delayed visibility, dedup
// windows, per-group FIFO delivery, and visibility-timeout redelivery.
type MemoryQueue struct {
	mu      sync.Mutex
	seq     int64
	records []*memRecord
	dedup   map[string]time.Time

	dedupWindow time.Duration
	visibility  time.Duration
	now         func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		dedup:       make(map[string]time.Time),
		dedupWindow: defaultDedupWindow,
		visibility:  defaultVisibility,
		now:         time.Now,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.Delay < 0 {
		msg.Delay = 0
	}
	if msg.Delay > MaxDelay {
		return fmt.Errorf("delay %s exceeds queue maximum %s", msg.Delay, MaxDelay)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if msg.DedupKey != "" {
		if seen, ok := q.dedup[msg.DedupKey]; ok && now.Sub(seen) < q.dedupWindow {
			return nil
		}
		q.dedup[msg.DedupKey] = now
	}

	q.seq++
	body := make([]byte, len(msg.Body))
	copy(body, msg.Body)
	q.records = append(q.records, &memRecord{
		seq:      q.seq,
		id:       uuid.NewString(),
		body:     body,
		groupKey: msg.GroupKey,
		readyAt:  now.Add(msg.Delay),
	})
	return nil
}

// Receive returns up to max due records in enqueue order. A group with an
// earlier undelivered or unacked record is blocked so per-group FIFO holds
// even when due times are reordered.
func (q *MemoryQueue) Receive(ctx context.Context, max int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if max <= 0 {
		max = 1
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	blocked := make(map[string]bool)
	var out []Record
	for _, rec := range q.records {
		if len(out) >= max {
			break
		}
		if blocked[rec.groupKey] {
			continue
		}
		claimed := !rec.claimedUntil.IsZero() && now.Before(rec.claimedUntil)
		if claimed || now.Before(rec.readyAt) {
			blocked[rec.groupKey] = true
			continue
		}
		rec.claimedUntil = now.Add(q.visibility)
		blocked[rec.groupKey] = true
		out = append(out, Record{ID: rec.id, Body: rec.body, GroupKey: rec.groupKey})
	}
	return out, nil
}

func (q *MemoryQueue) Ack(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	acked := make(map[string]bool, len(ids))
	for _, id := range ids {
		acked[id] = true
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.records[:0]
	for _, rec := range q.records {
		if !acked[rec.id] {
			kept = append(kept, rec)
		}
	}
	q.records = kept
	return nil
}

// Len reports how many records are pending or unacked.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

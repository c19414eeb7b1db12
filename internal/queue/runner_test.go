package queue

import (
	"context"
	"io"
	"log"
	"testing"
)

type scriptedHandler struct {
	failIDs map[string]bool
	batches [][]Record
}

func (h *scriptedHandler) HandleBatch(_ context.Context, records []Record) []string {
	h.batches = append(h.batches, records)
	var failed []string
	for _, rec := range records {
		if h.failIDs[rec.ID] {
			failed = append(failed, rec.ID)
		}
	}
	return failed
}

func TestRunnerAcksOnlyNonFailedRecords(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(clock)
	ctx := context.Background()

	mustEnqueue(t, q, Message{Body: []byte("ok"), GroupKey: "g1", DedupKey: "a"})
	mustEnqueue(t, q, Message{Body: []byte("bad"), GroupKey: "g2", DedupKey: "b"})

	records, err := q.Receive(ctx, 10)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected two records, got %d", len(records))
	}

	var badID string
	for _, rec := range records {
		if string(rec.Body) == "bad" {
			badID = rec.ID
		}
	}

	// Release the claim so the runner can receive the batch itself.
	clock.Advance(defaultVisibility + 1)

	handler := &scriptedHandler{failIDs: map[string]bool{badID: true}}
	runner := NewRunner(q, handler, log.New(io.Discard, "", 0))

	if !runner.RunOnce(ctx) {
		t.Fatal("expected runner to process a batch")
	}
	if len(handler.batches) != 1 || len(handler.batches[0]) != 2 {
		t.Fatalf("unexpected batches: %+v", handler.batches)
	}

	// Only the failed record survives for redelivery.
	if got := q.Len(); got != 1 {
		t.Fatalf("expected one unacked record, got %d", got)
	}

	clock.Advance(defaultVisibility + 1)
	records, err = q.Receive(ctx, 10)
	if err != nil {
		t.Fatalf("receive redelivery: %v", err)
	}
	if len(records) != 1 || records[0].ID != badID {
		t.Fatalf("expected redelivery of failed record, got %+v", records)
	}
}

func TestRunnerIdlesOnEmptyQueue(t *testing.T) {
	q := newTestQueue(newFakeClock())
	handler := &scriptedHandler{}
	runner := NewRunner(q, handler, log.New(io.Discard, "", 0))

	if runner.RunOnce(context.Background()) {
		t.Fatal("expected no batch on empty queue")
	}
	if len(handler.batches) != 0 {
		t.Fatalf("handler should not run on empty queue, got %+v", handler.batches)
	}
}

package publish

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/ToldYaOnce/kx-reply-pacer/internal/events"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/subscribers"
)

type fakeSubscriber struct {
	name    string
	err     error
	handled []events.Envelope
}

func (f *fakeSubscriber) Name() string { return f.name }

func (f *fakeSubscriber) Handle(_ context.Context, envelope events.Envelope) error {
	if f.err != nil {
		return f.err
	}
	f.handled = append(f.handled, envelope)
	return nil
}

func TestFanoutDeliversToAllSubscribers(t *testing.T) {
	a := &fakeSubscriber{name: "a"}
	b := &fakeSubscriber{name: "b"}
	f := NewFanout(log.New(io.Discard, "", 0), []subscribers.Subscriber{a, b})

	envelope := events.Envelope{EventID: "evt-1", EventType: events.TypeReplyCreated}
	if err := f.Publish(context.Background(), envelope); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(a.handled) != 1 || len(b.handled) != 1 {
		t.Fatalf("expected both subscribers handled, got a=%d b=%d", len(a.handled), len(b.handled))
	}
}

func TestFanoutFailureStillReachesOthers(t *testing.T) {
	bad := &fakeSubscriber{name: "bad", err: errors.New("down")}
	good := &fakeSubscriber{name: "good"}
	f := NewFanout(log.New(io.Discard, "", 0), []subscribers.Subscriber{bad, good})

	err := f.Publish(context.Background(), events.Envelope{EventID: "evt-2"})
	if err == nil {
		t.Fatal("expected error from failing subscriber")
	}
	if len(good.handled) != 1 {
		t.Fatalf("healthy subscriber must still receive the event, got %d", len(good.handled))
	}
}

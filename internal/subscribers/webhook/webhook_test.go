package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ToldYaOnce/kx-reply-pacer/internal/events"
)

func TestWebhookPostsEnvelope(t *testing.T) {
	var received events.Envelope
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method got=%s want=POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type got=%q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sub := New("hook", server.URL)
	envelope := events.Envelope{EventID: "evt-1", EventType: events.TypeReplyCreated, TenantID: "t1"}
	if err := sub.Handle(context.Background(), envelope); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if received.EventID != "evt-1" || received.EventType != events.TypeReplyCreated {
		t.Fatalf("unexpected received envelope: %+v", received)
	}
}

func TestWebhookNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	sub := New("hook", server.URL)
	if err := sub.Handle(context.Background(), events.Envelope{EventID: "evt-1"}); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestWebhookFilterSkipsWithoutRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("filtered event must not reach the endpoint")
	}))
	defer server.Close()

	sub := New("hook", server.URL, WithEventFilter(func(eventType events.Type) bool {
		return eventType == events.TypeReplyCreated
	}))
	err := sub.Handle(context.Background(), events.Envelope{EventID: "evt-1", EventType: events.TypeTypingStarted})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
}

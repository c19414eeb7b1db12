package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ToldYaOnce/kx-reply-pacer/internal/persona"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/queue"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/schedule"
)

func newTestServer(t *testing.T) (*Server, *queue.MemoryQueue) {
	t.Helper()
	q := queue.NewMemoryQueue()
	scheduler := schedule.New(q, persona.NewMemoryStoreWithDefaults(), nil)
	return NewServer(":0", scheduler, nil, log.New(io.Discard, "", 0)), q
}

func postReply(t *testing.T, handler http.Handler, body ScheduleRequest) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/replies", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func validRequest() ScheduleRequest {
	return ScheduleRequest{
		TenantID:    "t1",
		ContactPK:   "contact-9",
		Channel:     "chat",
		Persona:     "carlos",
		MessageID:   "m1",
		ReplyText:   "Hey! We open at nine.",
		InputChars:  120,
		InputTokens: 40,
	}
}

func TestScheduleReplyAccepted(t *testing.T) {
	server, q := newTestServer(t)

	rec := postReply(t, server.Handler(), validRequest())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status got=%d want=%d body=%s", rec.Code, http.StatusAccepted, rec.Body.String())
	}

	var resp ScheduleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Accepted {
		t.Fatal("expected accepted=true")
	}
	if resp.Timing.TotalMS <= 0 {
		t.Fatalf("total_ms got=%d", resp.Timing.TotalMS)
	}
	if q.Len() != 4 {
		t.Fatalf("enqueued records got=%d want=4 for a chat reply", q.Len())
	}
}

func TestScheduleReplyUnknownPersonaIs404(t *testing.T) {
	server, q := newTestServer(t)

	body := validRequest()
	body.Persona = "nobody"
	rec := postReply(t, server.Handler(), body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status got=%d want=%d body=%s", rec.Code, http.StatusNotFound, rec.Body.String())
	}
	if q.Len() != 0 {
		t.Fatalf("nothing should be enqueued, got %d", q.Len())
	}
}

func TestScheduleReplyInvalidRequestIs400(t *testing.T) {
	server, _ := newTestServer(t)

	cases := map[string]func(*ScheduleRequest){
		"missing tenant":  func(r *ScheduleRequest) { r.TenantID = "" },
		"missing contact": func(r *ScheduleRequest) { r.ContactPK = "" },
		"missing message": func(r *ScheduleRequest) { r.MessageID = "" },
		"bad channel":     func(r *ScheduleRequest) { r.Channel = "carrier-pigeon" },
	}
	for name, mutate := range cases {
		body := validRequest()
		mutate(&body)
		if rec := postReply(t, server.Handler(), body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status got=%d want=%d", name, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestScheduleReplyMalformedBodyIs400(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/replies", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status got=%d want=%d", rec.Code, http.StatusBadRequest)
	}
}

func TestScheduleReplyGetIs405(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/replies", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status got=%d want=%d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status got=%d", rec.Code)
	}
}

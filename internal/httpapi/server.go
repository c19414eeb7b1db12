// Package httpapi exposes the scheduling API: clients POST a generated reply
// and the server places its staged actions on the release queue.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/ToldYaOnce/kx-reply-pacer/internal/persona"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/schedule"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/stage"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/timing"
)

const (
	readHeaderTimeout = 5 * time.Second
	maxBodyBytes      = 1 << 20
)

// ReplyScheduler is the slice of the scheduler the API needs.
type ReplyScheduler interface {
	Schedule(ctx context.Context, req schedule.Request) (timing.Timing, error)
}

// ScheduleRequest is the POST /v1/replies body.
type ScheduleRequest struct {
	TenantID       string `json:"tenant_id"`
	ContactPK      string `json:"contact_pk"`
	ConversationID string `json:"conversation_id,omitempty"`
	Channel        string `json:"channel"`
	Persona        string `json:"persona"`
	MessageID      string `json:"message_id"`
	ReplyText      string `json:"reply_text"`
	InputChars     int    `json:"input_chars"`
	InputTokens    int    `json:"input_tokens"`
}

// ScheduleResponse reports the computed pacing for an accepted reply.
type ScheduleResponse struct {
	Accepted bool          `json:"accepted"`
	Timing   timing.Timing `json:"timing"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	scheduler ReplyScheduler
	logger    *log.Logger
	server    *http.Server
}

// NewServer wires the API routes. ws may be nil when no websocket hub is
// configured.
func NewServer(addr string, scheduler ReplyScheduler, ws http.Handler, logger *log.Logger) *Server {
	if scheduler == nil {
		panic("httpapi: scheduler is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &Server{scheduler: scheduler, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/replies", s.handleScheduleReply)
	if ws != nil {
		mux.Handle("/ws", ws)
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler exposes the routed mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called. It blocks, so callers run it in a
// goroutine.
func (s *Server) Start() error {
	s.logger.Printf("http api listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http api: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleScheduleReply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body ScheduleRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}

	computed, err := s.scheduler.Schedule(r.Context(), schedule.Request{
		TenantID:        body.TenantID,
		ContactKey:      body.ContactPK,
		ConversationID:  body.ConversationID,
		Channel:         stage.Channel(body.Channel),
		Persona:         body.Persona,
		SourceMessageID: body.MessageID,
		ReplyText:       body.ReplyText,
		InputChars:      body.InputChars,
		InputTokens:     body.InputTokens,
	})
	if err != nil {
		switch {
		case errors.Is(err, persona.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, schedule.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Printf("schedule reply failed tenant=%s message=%s: %v", body.TenantID, body.MessageID, err)
			writeError(w, http.StatusInternalServerError, "scheduling failed")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(ScheduleResponse{Accepted: true, Timing: computed})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

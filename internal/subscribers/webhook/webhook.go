// Package webhook forwards outbound lifecycle events to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ToldYaOnce/kx-reply-pacer/internal/events"
)

const (
	defaultTimeout    = 10 * time.Second
	maxErrorBodyBytes = 64 << 10
)

type Option func(*Subscriber)

func WithHTTPClient(client *http.Client) Option {
	return func(s *Subscriber) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithEventFilter restricts which event types are forwarded.
func WithEventFilter(filter func(events.Type) bool) Option {
	return func(s *Subscriber) {
		s.filter = filter
	}
}

type Subscriber struct {
	name       string
	url        string
	httpClient *http.Client
	filter     func(events.Type) bool
}

func New(name, url string, opts ...Option) *Subscriber {
	sub := &Subscriber{
		name:       strings.TrimSpace(name),
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	if sub.name == "" {
		sub.name = "webhook"
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sub)
		}
	}
	return sub
}

func (s *Subscriber) Name() string { return s.name }

func (s *Subscriber) Handle(ctx context.Context, envelope events.Envelope) error {
	if s.filter != nil && !s.filter(envelope.EventType) {
		return nil
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return fmt.Errorf("webhook %s status=%d body=%q", s.url, resp.StatusCode, strings.TrimSpace(string(errorBody)))
}

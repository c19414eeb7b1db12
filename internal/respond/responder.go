// Package respond defines the contract with the external reply-generation
// service. Reply text is always produced elsewhere; this package only carries
// the request/response shapes and an HTTP client.
package respond

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const postTimeout = 60 * time.Second

// Request identifies the inbound message a reply is wanted for.
type Request struct {
	TenantID       string `json:"tenant_id"`
	ContactKey     string `json:"contact_pk"`
	ConversationID string `json:"conversation_id,omitempty"`
	Channel        string `json:"channel"`
	MessageID      string `json:"message_id"`
	Text           string `json:"text"`
}

// Reply is what the responder produced.
type Reply struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id,omitempty"`
	Persona        string `json:"persona,omitempty"`
}

type Responder interface {
	Respond(ctx context.Context, req Request) (Reply, error)
}

// HTTPResponder calls an external responder service over HTTP.
type HTTPResponder struct {
	httpClient *http.Client
	respondURL string
}

func NewHTTPResponder(baseURL string, httpClient *http.Client) *HTTPResponder {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: postTimeout}
	}
	return &HTTPResponder{
		httpClient: httpClient,
		respondURL: respondEndpoint(baseURL),
	}
}

func (r *HTTPResponder) Respond(ctx context.Context, req Request) (Reply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Reply{}, fmt.Errorf("marshal respond request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.respondURL, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("build respond request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return Reply{}, fmt.Errorf("call responder: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Reply{}, fmt.Errorf("read responder body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Reply{}, fmt.Errorf("responder returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	var reply Reply
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return Reply{}, fmt.Errorf("decode responder reply: %w", err)
	}
	return reply, nil
}

func respondEndpoint(baseURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/v1/respond"
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	path := strings.TrimRight(strings.TrimSpace(parsed.Path), "/")
	if path == "" {
		parsed.Path = "/v1/respond"
	} else {
		parsed.Path = path + "/v1/respond"
	}
	return parsed.String()
}

// Package chatws pushes released lifecycle events (read receipt, typing
// on/off, final reply) to websocket-connected chat clients. Delivery here is
// best effort: an absent or broken client never fails the release pipeline.
package chatws

import (
	"context"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ToldYaOnce/kx-reply-pacer/internal/events"
)

type Hub struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]bool
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[string]map[*websocket.Conn]bool),
	}
}

// ServeHTTP upgrades a client connection subscribed to one conversation
// thread, identified by tenant_id and thread_key query parameters.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	threadKey := r.URL.Query().Get("thread_key")
	if tenantID == "" || threadKey == "" {
		http.Error(w, "tenant_id and thread_key are required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	key := tenantID + "#" + threadKey
	h.register(key, conn)
	defer h.unregister(key, conn)

	// Drain client frames; the hub is push-only.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Printf("websocket closed unexpectedly key=%s: %v", key, err)
			}
			return
		}
	}
}

func (h *Hub) Name() string { return "chatws" }

// Handle implements subscribers.Subscriber. Events route to the connections
// subscribed to the event's conversation thread.
func (h *Hub) Handle(_ context.Context, envelope events.Envelope) error {
	var ids struct {
		ContactPK      string `json:"contact_pk"`
		ConversationID string `json:"conversation_id"`
	}
	if err := envelope.DecodePayload(&ids); err != nil {
		h.logger.Printf("chatws: undecodable payload event_id=%s: %v", envelope.EventID, err)
		return nil
	}
	threadKey := ids.ConversationID
	if threadKey == "" {
		threadKey = ids.ContactPK
	}
	key := envelope.TenantID + "#" + threadKey

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns[key]))
	for conn := range h.conns[key] {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(envelope); err != nil {
			h.logger.Printf("chatws: write failed key=%s: %v", key, err)
			h.unregister(key, conn)
			_ = conn.Close()
		}
	}
	return nil
}

// ClientCount reports connections for one thread key.
func (h *Hub) ClientCount(tenantID, threadKey string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[tenantID+"#"+threadKey])
}

func (h *Hub) register(key string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[key] == nil {
		h.conns[key] = make(map[*websocket.Conn]bool)
	}
	h.conns[key][conn] = true
}

func (h *Hub) unregister(key string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[key], conn)
	if len(h.conns[key]) == 0 {
		delete(h.conns, key)
	}
}

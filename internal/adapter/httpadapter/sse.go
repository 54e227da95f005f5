package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/infrawatch-feed-service/internal/domain"
)

const (
	// sseKeepaliveInterval is how often keepalive comments are sent to
	// prevent idle proxies from closing the stream.
	sseKeepaliveInterval = 15 * time.Second

	sseClientBuffer = 64
)

// sseEvent is a single encoded feed event.
type sseEvent struct {
	ID   uint64
	Kind string
	Data []byte
}

// sseClient is a single connected stream consumer.
type sseClient struct {
	ch chan *sseEvent
}

// Hub fans feed events out to connected /api/feed/stream clients.
// It implements monitor.Publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*sseClient]struct{}
	nextID  atomic.Uint64
	dropped atomic.Uint64

	closeOnce sync.Once
	closed    chan struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*sseClient]struct{}),
		closed:  make(chan struct{}),
	}
}

// Publish broadcasts each event, in order, to every connected client.
func (h *Hub) Publish(_ context.Context, events []domain.Event) error {
	for i := range events {
		payload, err := json.Marshal(events[i])
		if err != nil {
			return fmt.Errorf("marshal event for stream: %w", err)
		}
		h.broadcast(events[i].Kind.String(), payload)
	}
	return nil
}

// Close ends every open stream. It is safe to call more than once.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() { close(h.closed) })
	return nil
}

// Clients reports the number of connected stream consumers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped reports how many deliveries were skipped for slow clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) broadcast(kind string, payload []byte) {
	evt := &sseEvent{
		ID:   h.nextID.Add(1),
		Kind: kind,
		Data: payload,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.ch <- evt:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) subscribe() *sseClient {
	c := &sseClient{ch: make(chan *sseEvent, sseClientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// handleFeedStream handles GET /api/feed/stream (SSE endpoint).
func (s *Server) handleFeedStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	// Streams outlive the server's write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("clear stream write deadline", "error", err)
	}

	client := s.hub.subscribe()
	defer s.hub.unsubscribe(client)
	s.logger.Debug("feed stream opened", "remote", r.RemoteAddr)
	defer s.logger.Debug("feed stream closed", "remote", r.RemoteAddr)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.hub.closed:
			return
		case evt := <-client.ch:
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single SSE event to the writer.
func writeSSEEvent(w http.ResponseWriter, evt *sseEvent) {
	fmt.Fprintf(w, "id:%d\n", evt.ID)
	fmt.Fprintf(w, "event:%s\n", evt.Kind)
	fmt.Fprintf(w, "data:%s\n\n", evt.Data)
}

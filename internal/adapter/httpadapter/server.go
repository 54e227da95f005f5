package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/infrawatch-feed-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FeedReader is the read side of the event feed.
type FeedReader interface {
	Latest(n int) []domain.Event
	Cap() int
}

// ConnectionChecker reports whether the snapshot source is connected.
type ConnectionChecker interface {
	Connected() bool
}

// Server exposes health, readiness, metrics, and feed HTTP endpoints.
type Server struct {
	httpServer *http.Server
	feed       FeedReader
	source     ConnectionChecker
	hub        *Hub
	logger     *slog.Logger
}

type feedResponse struct {
	Events          []domain.Event `json:"events"`
	Capacity        int            `json:"capacity"`
	SourceConnected bool           `json:"source_connected"`
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /api/feed, and /api/feed/stream routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, feed FeedReader, source ConnectionChecker, hub *Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		feed:   feed,
		source: source,
		hub:    hub,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/feed", s.handleFeed)
	mux.HandleFunc("GET /api/feed/stream", s.handleFeedStream)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown ends open feed streams and gracefully drains connections within
// the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	_ = s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleFeed handles GET /api/feed?limit=n. The newest event comes first.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, feedResponse{
		Events:          s.feed.Latest(limit),
		Capacity:        s.feed.Cap(),
		SourceConnected: s.source.Connected(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

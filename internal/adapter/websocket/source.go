package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// Source receives snapshots pushed over a WebSocket, one text or binary
// message per snapshot. It implements monitor.Source.
type Source struct {
	url            string
	dialer         *gorillaws.Dialer
	reconnectDelay time.Duration
	clock          clockwork.Clock
	logger         *slog.Logger

	mu        sync.Mutex
	conn      *gorillaws.Conn
	connected atomic.Bool
}

// NewSource creates a Source for url. Dials are bounded by handshakeTimeout;
// after a failed dial or a dropped connection it waits reconnectDelay before
// redialing.
func NewSource(url string, reconnectDelay, handshakeTimeout time.Duration, logger *slog.Logger) *Source {
	return &Source{
		url: url,
		dialer: &gorillaws.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		reconnectDelay: reconnectDelay,
		clock:          clockwork.NewRealClock(),
		logger:         logger,
	}
}

// SetClock replaces the clock used for reconnect delays.
func (s *Source) SetClock(c clockwork.Clock) {
	s.clock = c
}

// Connected reports whether a WebSocket connection is currently open.
func (s *Source) Connected() bool {
	return s.connected.Load()
}

// Next blocks until the next snapshot arrives. Connection failures are
// handled internally; the only error returned is the context's.
func (s *Source) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		conn, err := s.ensureConn(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("snapshot stream dial failed", "url", s.url, "error", err, "retry_in", s.reconnectDelay)
			if err := s.wait(ctx); err != nil {
				return nil, err
			}
			continue
		}

		msgType, data, err := s.read(ctx, conn)
		if err != nil {
			s.drop(conn)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("snapshot stream lost", "url", s.url, "error", err, "retry_in", s.reconnectDelay)
			if err := s.wait(ctx); err != nil {
				return nil, err
			}
			continue
		}
		if msgType != gorillaws.TextMessage && msgType != gorillaws.BinaryMessage {
			continue
		}
		return data, nil
	}
}

// Close closes the current connection, if any.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected.Store(false)
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Source) ensureConn(ctx context.Context) (*gorillaws.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", s.url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", s.url, err)
	}

	s.conn = conn
	s.connected.Store(true)
	s.logger.Info("snapshot stream connected", "url", s.url)
	return conn, nil
}

// read returns the next message, closing the connection if ctx ends first.
func (s *Source) read(ctx context.Context, conn *gorillaws.Conn) (int, []byte, error) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	return conn.ReadMessage()
}

func (s *Source) drop(conn *gorillaws.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.connected.Store(false)
}

func (s *Source) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(s.reconnectDelay):
		return nil
	}
}

package poll

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
)

const (
	retryCount   = 2
	retryWait    = 200 * time.Millisecond
	retryMaxWait = time.Second
)

// Source fetches the dashboard snapshot over HTTP every interval.
// It implements monitor.Source.
type Source struct {
	client   *resty.Client
	url      string
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger

	fetched   bool
	connected atomic.Bool
}

// NewSource creates a polling Source. Each request is bounded by timeout and
// retried on transport errors and 5xx responses.
func NewSource(url string, interval, timeout time.Duration, logger *slog.Logger) *Source {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(retryMaxWait).
		AddRetryCondition(func(r *resty.Response, _ error) bool {
			return r != nil && r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept", "application/json")

	return &Source{
		client:   client,
		url:      url,
		interval: interval,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
	}
}

// SetClock replaces the clock used to pace polls.
func (s *Source) SetClock(c clockwork.Clock) {
	s.clock = c
}

// Connected reports whether the last poll succeeded.
func (s *Source) Connected() bool {
	return s.connected.Load()
}

// Next waits for the poll interval (except on the first call) and returns
// the fetched payload.
func (s *Source) Next(ctx context.Context) ([]byte, error) {
	if s.fetched {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.clock.After(s.interval):
		}
	}
	s.fetched = true

	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		s.connected.Store(false)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("poll %s: %w", s.url, err)
	}
	if !resp.IsSuccess() {
		s.connected.Store(false)
		return nil, fmt.Errorf("poll %s: unexpected status %d", s.url, resp.StatusCode())
	}

	if !s.connected.Swap(true) {
		s.logger.Info("snapshot endpoint reachable", "url", s.url)
	}
	return resp.Body(), nil
}

// Close releases idle HTTP connections.
func (s *Source) Close() error {
	s.client.GetClient().CloseIdleConnections()
	return nil
}

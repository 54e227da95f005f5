package poll

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_FirstPollIsImmediate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":{}}`))
	}))
	t.Cleanup(srv.Close)

	src := NewSource(srv.URL, time.Hour, time.Second, slog.Default())
	src.SetClock(clockwork.NewFakeClock())
	t.Cleanup(func() { _ = src.Close() })
	assert.False(t, src.Connected())

	data, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":{}}`, string(data))
	assert.True(t, src.Connected())
}

func TestSource_WaitsForInterval(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	clock := clockwork.NewFakeClock()
	src := NewSource(srv.URL, 4*time.Second, time.Second, slog.Default())
	src.SetClock(clock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := src.Next(ctx)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := src.Next(ctx)
		errCh <- err
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, int32(1), hits.Load(), "second poll must wait for the interval")
	clock.Advance(4 * time.Second)

	require.NoError(t, <-errCh)
	assert.Equal(t, int32(2), hits.Load())
}

func TestSource_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	src := NewSource(srv.URL, time.Second, time.Second, slog.Default())
	_, err := src.Next(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.False(t, src.Connected())
}

func TestSource_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	t.Cleanup(srv.Close)

	src := NewSource(srv.URL, time.Second, time.Second, slog.Default())
	data, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(data))
	assert.Equal(t, int32(2), hits.Load())
}

func TestSource_ContextCancelledWhileWaiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	src := NewSource(srv.URL, time.Hour, time.Second, slog.Default())
	src.SetClock(clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	_, err := src.Next(ctx)
	require.NoError(t, err)

	cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

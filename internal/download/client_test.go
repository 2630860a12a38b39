package download

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/printforge/timelapse-exporter/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// noWaits makes retries immediate.
func noWaits(c *Client) {
	c.waits = make([]time.Duration, c.retries)
}

func TestRetrySchedule(t *testing.T) {
	schedule := retrySchedule(5)
	require.Len(t, schedule, 4)
	assert.Equal(t, backoffMin, schedule[0])
	for i := 1; i < len(schedule); i++ {
		assert.GreaterOrEqual(t, schedule[i], schedule[i-1], "backoff must be non-decreasing")
		assert.LessOrEqual(t, schedule[i], backoffMax, "backoff must be capped")
	}
}

func TestRetryScheduleCapped(t *testing.T) {
	schedule := retrySchedule(20)
	assert.Equal(t, backoffMax, schedule[len(schedule)-1])
}

func TestExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/here.mp4" {
			_, _ = io.WriteString(w, "data")
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(1, testLogger())
	assert.True(t, c.Exists(context.Background(), srv.URL+"/here.mp4", ProbeTimeout))
	assert.False(t, c.Exists(context.Background(), srv.URL+"/gone.mp4", ProbeTimeout))
	assert.False(t, c.Exists(context.Background(), "http://127.0.0.1:1/x.mp4", ProbeTimeout))
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			http.Error(w, "not ready", http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, "timelapse bytes")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "B.mp4")
	c := NewClient(5, testLogger())
	noWaits(c)

	require.NoError(t, c.Fetch(context.Background(), srv.URL+"/B.mp4", dest))
	assert.Equal(t, int32(3), hits.Load())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "timelapse bytes", string(data))
}

func TestFetchExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "still not ready", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "B.mp4")
	c := NewClient(3, testLogger())
	noWaits(c)

	err := c.Fetch(context.Background(), srv.URL+"/B.mp4", dest)
	require.Error(t, err)
	assert.Equal(t, int32(3), hits.Load(), "attempt budget must be honored")
	assert.Equal(t, apperrors.KindDownload, apperrors.KindOf(err))
	// The final failure carries the last underlying cause.
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestFetchOverwritesExistingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "fresh")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "B.mp4")
	require.NoError(t, os.WriteFile(dest, []byte("stale leftover content"), 0o644))

	c := NewClient(1, testLogger())
	noWaits(c)
	require.NoError(t, c.Fetch(context.Background(), srv.URL+"/B.mp4", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestFetchCreatesDestinationDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "x")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested", "dir", "B.mp4")
	c := NewClient(1, testLogger())
	noWaits(c)
	require.NoError(t, c.Fetch(context.Background(), srv.URL+"/B.mp4", dest))
	assert.FileExists(t, dest)
}

func TestFetchStopsOnCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(5, testLogger())
	err := c.Fetch(ctx, srv.URL+"/B.mp4", filepath.Join(t.TempDir(), "B.mp4"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindDownload, apperrors.KindOf(err))
}

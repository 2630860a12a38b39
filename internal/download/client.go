// Package download probes for and retrieves artifacts over HTTP.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jpillora/backoff"

	"github.com/printforge/timelapse-exporter/internal/errors"
)

const (
	// ProbeTimeout bounds one existence probe during polling.
	ProbeTimeout = 3 * time.Second
	// CheckTimeout bounds the single post-hoc probe after a push
	// confirmation.
	CheckTimeout = 5 * time.Second

	// DefaultRetries is the download attempt budget.
	DefaultRetries = 5

	headerTimeout = 30 * time.Second
	chunkSize     = 64 * 1024

	backoffMin    = time.Second
	backoffMax    = 8 * time.Second
	backoffFactor = 1.5
)

// Client probes for artifact availability and downloads artifacts with a
// bounded retry budget.
type Client struct {
	http    *http.Client
	retries int
	log     *slog.Logger

	// waits overrides the computed retry schedule; tests use it.
	waits []time.Duration
}

func NewClient(retries int, log *slog.Logger) *Client {
	if retries <= 0 {
		retries = DefaultRetries
	}
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: headerTimeout},
		},
		retries: retries,
		log:     log,
	}
}

// Exists reports whether url is downloadable right now. Any 2xx status means
// yes; everything else, timeouts included, means "not yet".
func (c *Client) Exists(ctx context.Context, url string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Fetch streams url to destPath, overwriting any existing file. Failed
// attempts are retried from scratch after a growing, capped delay; the final
// failure carries the last underlying cause.
func (c *Client) Fetch(ctx context.Context, url, destPath string) error {
	waits := c.waits
	if waits == nil {
		waits = retrySchedule(c.retries)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		c.log.Debug("download.attempt",
			slog.Int("attempt", attempt),
			slog.String("url", url),
			slog.String("dest", destPath),
		)
		lastErr = c.fetchOnce(ctx, url, destPath)
		if lastErr == nil {
			c.log.Debug("download.success", slog.String("dest", destPath))
			return nil
		}
		c.log.Debug("download.attempt_failed",
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		if attempt == c.retries {
			break
		}
		select {
		case <-time.After(waits[attempt-1]):
		case <-ctx.Done():
			return errors.Download(url, ctx.Err())
		}
	}
	return errors.Download(url, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.CopyBuffer(out, resp.Body, make([]byte, chunkSize)); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// retrySchedule precomputes the waits between attempts: multiplicative growth
// from backoffMin, capped at backoffMax.
func retrySchedule(attempts int) []time.Duration {
	b := &backoff.Backoff{Min: backoffMin, Max: backoffMax, Factor: backoffFactor}
	out := make([]time.Duration, 0, attempts-1)
	for i := 0; i < attempts-1; i++ {
		out = append(out, b.Duration())
	}
	return out
}

// Package watch decides when a requested artifact has become downloadable by
// racing a push notification against active polling of the file endpoint.
package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/jpillora/backoff"

	"github.com/printforge/timelapse-exporter/internal/download"
	"github.com/printforge/timelapse-exporter/internal/errors"
	"github.com/printforge/timelapse-exporter/internal/sdcp"
)

// State is the outcome of one watch. Transitions are forward-only: a watch
// starts Pending and ends in exactly one terminal state.
type State int

const (
	Pending State = iota
	ConfirmedByPush
	ConfirmedByPoll
	TimedOut
)

func (s State) String() string {
	switch s {
	case ConfirmedByPush:
		return "confirmed_by_push"
	case ConfirmedByPoll:
		return "confirmed_by_poll"
	case TimedOut:
		return "timed_out"
	default:
		return "pending"
	}
}

// Backoff between existence probes.
const (
	pollInitial = 1500 * time.Millisecond
	pollMax     = 5 * time.Second
	pollFactor  = 1.5
)

// Result is what one watch produced. Verified is set when a positive
// existence probe backs the outcome: always for ConfirmedByPoll, for
// ConfirmedByPush only when the post-hoc check ran and passed.
type Result struct {
	State    State
	Verified bool
}

// Prober is the poll watcher's view of the HTTP endpoint.
type Prober interface {
	Exists(ctx context.Context, url string, timeout time.Duration) bool
}

// Receiver is the push watcher's and keepalive's view of the persistent
// connection.
type Receiver interface {
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
	Ping() error
}

type Watcher struct {
	sess    Receiver
	probe   Prober
	target  string // artifact path the export was requested for
	url     string // HTTP locator derived from the target
	timeout time.Duration
	check   bool
	log     *slog.Logger
}

func New(sess Receiver, probe Prober, target, url string, timeout time.Duration, check bool, log *slog.Logger) *Watcher {
	return &Watcher{
		sess:    sess,
		probe:   probe,
		target:  target,
		url:     url,
		timeout: timeout,
		check:   check,
		log:     log,
	}
}

// Wait blocks until a completion signal arrives or the deadline elapses. The
// keepalive runs for the lifetime of the watch as a third, non-winning race
// participant, so it is cancelled and joined together with the watchers.
func (w *Watcher) Wait(ctx context.Context) Result {
	switch Race(ctx, w.timeout, w.waitPush, w.waitPoll, w.keepalive) {
	case 0:
		res := Result{State: ConfirmedByPush}
		if w.check {
			res.Verified = w.probe.Exists(ctx, w.url, download.CheckTimeout)
			if !res.Verified {
				w.log.Warn("watch.push_confirmed_not_yet_downloadable", slog.String("url", w.url))
			}
		}
		return res
	case 1:
		return Result{State: ConfirmedByPoll, Verified: true}
	default:
		return Result{State: TimedOut}
	}
}

// waitPush consumes inbound frames until one confirms the requested target. A
// quiet connection is normal; a dead one ends this watcher only, the poll
// watcher keeps going.
func (w *Watcher) waitPush(ctx context.Context) bool {
	for {
		raw, err := w.sess.Receive(ctx, sdcp.ReceiveTimeout)
		if err != nil {
			if errors.Is(err, sdcp.ErrNoTraffic) {
				continue
			}
			if ctx.Err() != nil {
				return false
			}
			w.log.Debug("watch.push_receive_failed", slog.String("error", err.Error()))
			return false
		}
		env, ok := sdcp.Decode(raw)
		if !ok || env.Data.Cmd != sdcp.CmdExportTimelapse {
			continue
		}
		got := env.FirstURL()
		if got == w.target {
			w.log.Debug("watch.push_confirmed", slog.String("path", got))
			return true
		}
		if got != "" {
			w.log.Debug("watch.push_other_export", slog.String("path", got))
		}
	}
}

// waitPoll probes the HTTP locator with multiplicative backoff until it
// exists or the watch ends.
func (w *Watcher) waitPoll(ctx context.Context) bool {
	delay := &backoff.Backoff{Min: pollInitial, Max: pollMax, Factor: pollFactor}
	for {
		if ctx.Err() != nil {
			return false
		}
		if w.probe.Exists(ctx, w.url, download.ProbeTimeout) {
			w.log.Debug("watch.poll_confirmed", slog.String("url", w.url))
			return true
		}
		select {
		case <-time.After(delay.Duration()):
		case <-ctx.Done():
			return false
		}
	}
}

// keepalive holds the connection open under the remote side's idle timeout.
// It never wins the race; the first failed send ends it silently.
func (w *Watcher) keepalive(ctx context.Context) bool {
	ticker := time.NewTicker(sdcp.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := w.sess.Ping(); err != nil {
				return false
			}
		case <-ctx.Done():
			return false
		}
	}
}

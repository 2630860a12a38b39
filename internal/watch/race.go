package watch

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

// Op is one competing way to observe an event. It returns true when the event
// was observed, false when the op gave up or was cancelled. Failures are an
// op-local concern: an op that can no longer observe simply returns false and
// leaves its rivals running.
type Op func(ctx context.Context) bool

// errWon cancels the losing ops once a winner is in.
var errWon = errors.New("race won")

// Race runs ops concurrently until one observes the event or timeout elapses,
// and returns the index of the winner, -1 when there is none. Every op is
// joined before Race returns: losers are cancelled through their context and
// waited for, so no op keeps running in the background.
func Race(ctx context.Context, timeout time.Duration, ops ...Op) int {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	winners := make(chan int, len(ops))
	g, gctx := errgroup.WithContext(ctx)
	for i, op := range ops {
		i, op := i, op
		g.Go(func() error {
			if op(gctx) {
				winners <- i
				return errWon
			}
			return nil
		})
	}
	_ = g.Wait()

	select {
	case i := <-winners:
		return i
	default:
		return -1
	}
}

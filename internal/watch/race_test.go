package watch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRaceReturnsWinner(t *testing.T) {
	var loserCancelled atomic.Bool
	winner := Race(context.Background(), 5*time.Second,
		func(ctx context.Context) bool {
			time.Sleep(10 * time.Millisecond)
			return true
		},
		func(ctx context.Context) bool {
			<-ctx.Done()
			loserCancelled.Store(true)
			return false
		},
	)
	assert.Equal(t, 0, winner)
	// Race joins every op before returning, so the loser has already
	// observed its cancellation.
	assert.True(t, loserCancelled.Load())
}

func TestRaceTimesOut(t *testing.T) {
	start := time.Now()
	winner := Race(context.Background(), 100*time.Millisecond,
		func(ctx context.Context) bool {
			<-ctx.Done()
			return false
		},
	)
	assert.Equal(t, -1, winner)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestRaceFailedOpLeavesRivalsRunning(t *testing.T) {
	winner := Race(context.Background(), 5*time.Second,
		func(ctx context.Context) bool {
			// Gives up right away; must not take the others down.
			return false
		},
		func(ctx context.Context) bool {
			select {
			case <-time.After(30 * time.Millisecond):
				return true
			case <-ctx.Done():
				return false
			}
		},
	)
	assert.Equal(t, 1, winner)
}

func TestRaceHonorsParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	winner := Race(ctx, time.Minute,
		func(ctx context.Context) bool {
			<-ctx.Done()
			return false
		},
	)
	assert.Equal(t, -1, winner)
}

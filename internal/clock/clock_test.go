package clock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/herohde/shogiserver/internal/clock"
	"github.com/herohde/shogiserver/internal/shogi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockTimesOutAfterByoyomiExhausted(t *testing.T) {
	var mu sync.Mutex
	var timedOutSide shogi.Color
	done := make(chan struct{})

	c := clock.New(clock.Settings{InitialSeconds: 1, ByoyomiSeconds: 1}, nil, func(ctx context.Context, side shogi.Color) {
		mu.Lock()
		timedOutSide = side
		mu.Unlock()
		close(done)
	})

	c.Start(context.Background(), shogi.Sente)

	select {
	case <-done:
	case <-time.After(6 * time.Second):
		t.Fatal("clock did not time out")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, shogi.Sente, timedOutSide)
}

func TestClockStopCommitsElapsedTime(t *testing.T) {
	c := clock.New(clock.Settings{InitialSeconds: 600, ByoyomiSeconds: 30}, nil, nil)
	c.Start(context.Background(), shogi.Sente)

	time.Sleep(1100 * time.Millisecond)
	c.Stop(context.Background(), true)

	total := c.TotalConsumedMs(shogi.Sente)
	require.GreaterOrEqual(t, total, int64(1000))

	snap := c.Snapshot()
	assert.LessOrEqual(t, snap[shogi.Sente].RemainingSeconds, 599)
}

func TestTotalConsumedTimeIsMonotone(t *testing.T) {
	c := clock.New(clock.Settings{InitialSeconds: 600, ByoyomiSeconds: 30}, nil, nil)

	var last int64
	for i := 0; i < 3; i++ {
		c.Start(context.Background(), shogi.Sente)
		time.Sleep(200 * time.Millisecond)
		c.Stop(context.Background(), true)

		cur := c.TotalConsumedMs(shogi.Sente)
		assert.GreaterOrEqual(t, cur, last)
		last = cur
	}
}

func TestResetTurnRefreshesByoyomi(t *testing.T) {
	c := clock.New(clock.Settings{InitialSeconds: 0, ByoyomiSeconds: 30}, nil, nil)
	c.Start(context.Background(), shogi.Sente)
	time.Sleep(1100 * time.Millisecond)
	c.Stop(context.Background(), true)

	c.ResetTurn(shogi.Sente)
	snap := c.Snapshot()
	assert.Equal(t, 30, snap[shogi.Sente].Byoyomi)
}

// Package clock implements the per-room wall-clock countdown with main
// time plus byoyomi. Grounded on pkg/engine/engine.go's mutex-guarded,
// context-threaded struct style.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/herohde/shogiserver/internal/shogi"
	"github.com/seekerror/logw"
	"go.uber.org/atomic"
)

// Settings are the per-game time controls.
type Settings struct {
	InitialSeconds int
	ByoyomiSeconds int
}

// Snapshot is the clock's displayed state for one side, used both for the
// time_update outbound event and for persistence.
type Snapshot struct {
	RemainingSeconds int
	Byoyomi          int
}

// TimeoutFunc is invoked, at most once, when a side's time is exhausted.
// It runs on the Clock's own goroutine; callers must not block in it for
// long since it holds no lock itself but is expected to hand off to a
// room's single-writer mailbox immediately.
type TimeoutFunc func(ctx context.Context, side shogi.Color)

// TickFunc is invoked once per second while running, carrying the
// currently displayed remaining time for both sides.
type TickFunc func(ctx context.Context, times [shogi.NumColors]Snapshot)

// Clock is a per-room countdown timer. Not safe for concurrent external
// calls from multiple goroutines without the caller's own serialization —
// in this server, all calls happen from the owning Room's single-writer
// mailbox, so Clock itself only needs to protect against its own
// background tick goroutine racing a concurrent stop/start.
type Clock struct {
	settings Settings

	mu                sync.Mutex
	times             [shogi.NumColors]int // main time remaining, seconds
	currentByoyomi    [shogi.NumColors]int
	totalConsumedMs   [shogi.NumColors]int64
	lastMoveTimestamp time.Time
	running           bool
	side              shogi.Color

	generation atomic.Uint64 // bumped on every start/stop; stale ticks self-cancel
	cancel     context.CancelFunc

	onTick    TickFunc
	onTimeout TimeoutFunc
}

// New creates a Clock with main time and byoyomi set from settings for
// both sides.
func New(settings Settings, onTick TickFunc, onTimeout TimeoutFunc) *Clock {
	c := &Clock{
		settings:  settings,
		onTick:    onTick,
		onTimeout: onTimeout,
	}
	for s := shogi.Color(0); s < shogi.NumColors; s++ {
		c.times[s] = settings.InitialSeconds
		c.currentByoyomi[s] = settings.ByoyomiSeconds
	}
	return c
}

// Start begins the countdown for side, recording lastMoveTimestamp=now and
// scheduling a 1-second tick. Missed or late ticks never drift the
// displayed time: every tick recomputes from now-lastMoveTimestamp rather
// than counting down from the previous tick.
func (c *Clock) Start(ctx context.Context, side shogi.Color) {
	c.mu.Lock()
	c.side = side
	c.lastMoveTimestamp = time.Now()
	c.running = true
	gen := c.generation.Add(1)
	tickCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	logw.Infof(ctx, "Clock start: side=%v, times=%v, byoyomi=%v", side, c.times, c.currentByoyomi)

	go c.run(tickCtx, gen)
}

func (c *Clock) run(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.generation.Load() != gen {
				return // superseded by a later start/stop
			}
			if done := c.tick(ctx); done {
				return
			}
		}
	}
}

// tick recomputes displayed remaining time from wall-clock elapsed time and
// returns true iff the active side has run out of byoyomi, ending the game.
func (c *Clock) tick(ctx context.Context) bool {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return false
	}
	side := c.side
	elapsed := int(time.Since(c.lastMoveTimestamp) / time.Second)

	remaining := c.times[side] - elapsed
	byoyomi := c.currentByoyomi[side]
	if remaining < 0 {
		overElapsed := elapsed - c.times[side]
		byoyomi = c.settings.ByoyomiSeconds - overElapsed
		remaining = 0
	}

	timedOut := byoyomi < 0
	if timedOut {
		c.running = false
	}
	snap := c.snapshotLocked(side, remaining, byoyomi)
	c.mu.Unlock()

	if c.onTick != nil {
		c.onTick(ctx, snap)
	}
	if timedOut {
		logw.Infof(ctx, "Clock timeout: side=%v", side)
		if c.onTimeout != nil {
			c.onTimeout(ctx, side)
		}
	}
	return timedOut
}

func (c *Clock) snapshotLocked(active shogi.Color, activeRemaining, activeByoyomi int) [shogi.NumColors]Snapshot {
	var ret [shogi.NumColors]Snapshot
	for s := shogi.Color(0); s < shogi.NumColors; s++ {
		if s == active {
			ret[s] = Snapshot{RemainingSeconds: activeRemaining, Byoyomi: activeByoyomi}
		} else {
			ret[s] = Snapshot{RemainingSeconds: c.times[s], Byoyomi: c.currentByoyomi[s]}
		}
	}
	return ret
}

// Stop cancels the pending tick. If commit is true and the clock was
// running, the elapsed time since the last start is committed into the
// side's remaining time and total consumed time before stopping.
func (c *Clock) Stop(ctx context.Context, commit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation.Add(1)
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if !c.running {
		return
	}
	c.running = false

	if commit {
		elapsedMs := time.Since(c.lastMoveTimestamp).Milliseconds()
		elapsed := int(elapsedMs / 1000)

		side := c.side
		remaining := c.times[side] - elapsed
		if remaining < 0 {
			overElapsed := elapsed - c.times[side]
			c.currentByoyomi[side] -= overElapsed
			c.times[side] = 0
		} else {
			c.times[side] = remaining
		}
		c.totalConsumedMs[side] += elapsedMs
	}
}

// ResetTurn refreshes side's byoyomi back to the settings value, called
// after a completed move so the mover's byoyomi allowance resets rather
// than carrying over a partially-consumed period.
func (c *Clock) ResetTurn(side shogi.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentByoyomi[side] = c.settings.ByoyomiSeconds
}

// Snapshot returns the displayed remaining time for both sides without
// advancing anything, based on elapsed time if running.
func (c *Clock) Snapshot() [shogi.NumColors]Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return c.snapshotLocked(c.side, c.times[c.side], c.currentByoyomi[c.side])
	}

	elapsed := int(time.Since(c.lastMoveTimestamp) / time.Second)
	remaining := c.times[c.side] - elapsed
	byoyomi := c.currentByoyomi[c.side]
	if remaining < 0 {
		byoyomi = c.settings.ByoyomiSeconds - (elapsed - c.times[c.side])
		remaining = 0
	}
	return c.snapshotLocked(c.side, remaining, byoyomi)
}

// TotalConsumedMs returns the cumulative committed time spent by side, in
// milliseconds. Monotonically non-decreasing for the lifetime of a game.
func (c *Clock) TotalConsumedMs(side shogi.Color) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.totalConsumedMs[side]
}

// Restore rehydrates a Clock's committed state after loading a persisted
// Room, leaving it stopped: the caller decides whether and when to Start
// it again.
func Restore(settings Settings, times, byoyomi [shogi.NumColors]int, totalConsumedMs [shogi.NumColors]int64, onTick TickFunc, onTimeout TimeoutFunc) *Clock {
	c := New(settings, onTick, onTimeout)
	c.times = times
	c.currentByoyomi = byoyomi
	c.totalConsumedMs = totalConsumedMs
	return c
}

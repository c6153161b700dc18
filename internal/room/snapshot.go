package room

import (
	"time"

	"github.com/herohde/shogiserver/internal/clock"
	"github.com/herohde/shogiserver/internal/shogi"
)

// Snapshot is the persisted record of a room, minus the runtime-only timer
// handle. Board, hands and sfen history are not stored directly: they are
// deterministic replays of History from the initial position, so storing
// them would only create a second source of truth to keep in sync.
type Snapshot struct {
	Status   Status
	History  []AnnotatedMove
	Seats    [shogi.NumColors]SeatInfo
	Settings Settings

	Times           [shogi.NumColors]int
	CurrentByoyomi  [shogi.NumColors]int
	TotalConsumedMs [shogi.NumColors]int64

	GameStartTime time.Time
	GameCount     int

	Winner    shogi.Color
	HasWinner bool

	UpdatedAt time.Time
}

// Restore rebuilds a Room from a persisted Snapshot, replaying History to
// recover the board and hands and constructing a stopped Clock from the
// committed time fields. The room's timer is never started here: the
// persisted Online flags describe who was connected before the crash, not
// who is connected now, so only a live Join after restart (once it
// observes both seats actually online again) may resume the Clock.
func Restore(id string, snap Snapshot, broadcaster Broadcaster, store Persister) *Room {
	r := &Room{
		ID:          id,
		mailbox:     make(chan func(), 16),
		done:        make(chan struct{}),
		broadcaster: broadcaster,
		store:       store,
	}

	pos, ok := replay(snap.History)
	if !ok {
		pos = shogi.Initial()
	}

	// No session outlives a restart, so every seat starts back offline;
	// the next Join for that user id is what marks it online again and,
	// if appropriate, resumes the Clock.
	seats := snap.Seats
	for s := range seats {
		seats[s].SessionID = ""
		seats[s].Online = false
	}

	r.st = state{
		status:        snap.Status,
		pos:           pos,
		history:       append([]AnnotatedMove(nil), snap.History...),
		sfenHistory:   rebuildSfenHistory(snap.History),
		seats:         seats,
		settings:      snap.Settings,
		gameStartTime: snap.GameStartTime,
		gameCount:     snap.GameCount,
		winner:        snap.Winner,
		hasWinner:     snap.HasWinner,
	}

	r.clk = clock.Restore(
		clock.Settings{InitialSeconds: snap.Settings.InitialSeconds, ByoyomiSeconds: snap.Settings.ByoyomiSeconds},
		snap.Times, snap.CurrentByoyomi, snap.TotalConsumedMs,
		r.onTick, r.onTimeout,
	)

	go r.loop()

	return r
}

// Package room implements the per-room game lifecycle state machine:
// seating, readiness, play, resignation, rematch and analysis branching.
// Each Room is a single-writer actor: every mutation, whether triggered by
// an inbound transport event or by the Clock's timeout callback, is
// serialized through one mailbox goroutine. Grounded on
// pkg/engine/console/console.go's process(ctx, in <-chan string) driver
// loop, generalized from a channel of text lines to a channel of closures
// since a Room has many distinct operations rather than one text protocol.
package room

import (
	"context"
	"math/rand"
	"time"

	"github.com/herohde/shogiserver/internal/clock"
	"github.com/herohde/shogiserver/internal/shogi"
	"github.com/herohde/shogiserver/internal/terminal"
	"github.com/seekerror/logw"
)

// Status is a Room's lifecycle state.
type Status int

const (
	Waiting Status = iota
	Playing
	Finished
	Analysis
)

func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Playing:
		return "playing"
	case Finished:
		return "finished"
	case Analysis:
		return "analysis"
	default:
		return "?"
	}
}

// Seat is Sente's or Gote's chair at the board.
type Seat = shogi.Color

// Settings are the room's configurable game parameters.
type Settings struct {
	InitialSeconds int
	ByoyomiSeconds int
	RandomTurn     bool
	FixTurn        bool
}

// AnnotatedMove is one move in history together with the side that played
// it, whether it delivered check, and the per-move/cumulative time spent.
type AnnotatedMove struct {
	Move        shogi.Move
	Side        shogi.Color
	IsCheck     bool
	TimeNow     int // seconds spent on this move
	TimeTotal   int // cumulative seconds spent by the mover, at this point
}

// SeatInfo is the per-seat occupancy the Session Router maintains.
type SeatInfo struct {
	SessionID string
	UserID    string
	Name      string
	Online    bool
	Ready     bool
	Rematch   bool
}

// Broadcaster is the outbound half of the transport collaborator. Room
// only depends on this small interface, satisfied concretely by
// internal/transport/ws.
type Broadcaster interface {
	BroadcastRoom(ctx context.Context, roomID string, event string, payload any)
	SendSession(ctx context.Context, sessionID string, event string, payload any)
}

// Persister is the persistence collaborator (concretely internal/storage).
type Persister interface {
	Save(ctx context.Context, roomID string, snapshot Snapshot) error
}

// Room is the authoritative state machine for one match.
type Room struct {
	ID string

	mailbox chan func()
	done    chan struct{}

	broadcaster Broadcaster
	store       Persister

	clk *clock.Clock
	st  state
}

type state struct {
	status Status

	pos         shogi.Position
	history     []AnnotatedMove
	sfenHistory map[string][]int // fingerprint -> history indices (0-based; -1 = initial)

	seats    [shogi.NumColors]SeatInfo
	settings Settings

	gameStartTime time.Time
	gameCount     int

	winner    shogi.Color
	hasWinner bool

	analysisSaved *state // non-nil while status==Analysis, holds the pre-branch state to restore on exit
}

// New creates a waiting Room with the given default settings.
func New(id string, defaults Settings, broadcaster Broadcaster, store Persister) *Room {
	r := &Room{
		ID:          id,
		mailbox:     make(chan func(), 16),
		done:        make(chan struct{}),
		broadcaster: broadcaster,
		store:       store,
	}
	r.st = freshState(defaults)
	go r.loop()
	return r
}

func freshState(settings Settings) state {
	return state{
		status:      Waiting,
		pos:         shogi.Initial(),
		sfenHistory: map[string][]int{shogi.Fingerprint(shogi.Initial()): {-1}},
		settings:    settings,
	}
}

func (r *Room) loop() {
	for {
		select {
		case fn := <-r.mailbox:
			fn()
		case <-r.done:
			return
		}
	}
}

// do posts fn to the mailbox and blocks until it has run, giving callers
// synchronous request/response semantics over the single-writer actor.
func (r *Room) do(fn func()) {
	ret := make(chan struct{})
	r.mailbox <- func() {
		fn()
		close(ret)
	}
	<-ret
}

// Close stops the room's actor loop and any running clock. Does not
// delete the persisted snapshot; that is the GC's job.
func (r *Room) Close() {
	r.do(func() {
		if r.clk != nil {
			r.clk.Stop(context.Background(), false)
		}
	})
	close(r.done)
}

// Status returns the room's current lifecycle state.
func (r *Room) Status() Status {
	var s Status
	r.do(func() { s = r.st.status })
	return s
}

// Join seats sessionID/userID: a returning user id reclaims its seat and
// marks it back online (resuming the Clock if the game is in progress and
// both seats are now online); otherwise the first empty seat is filled,
// preferring Sente; otherwise the session joins as a spectator (seat
// ok=false). join_room is the only wire event a client sends to attach to
// a room, so this path covers both a fresh join and a reconnect after a
// dropped socket.
func (r *Room) Join(ctx context.Context, sessionID, userID, userName string) (seat Seat, ok bool) {
	var resume bool
	var online map[string]bool
	r.do(func() {
		wasOffline := false
		for s := shogi.Color(0); s < shogi.NumColors; s++ {
			if r.st.seats[s].UserID == userID && userID != "" {
				seat, ok = s, true
				wasOffline = !r.st.seats[s].Online
				r.st.seats[s].SessionID = sessionID
				r.st.seats[s].Online = true
				r.st.seats[s].Name = userName
				break
			}
		}
		if !ok {
			for s := shogi.Color(0); s < shogi.NumColors; s++ {
				if r.st.seats[s].UserID == "" {
					seat, ok, wasOffline = s, true, true
					r.st.seats[s] = SeatInfo{SessionID: sessionID, UserID: userID, Name: userName, Online: true}
					break
				}
			}
		}
		// Otherwise: spectator.

		if ok && wasOffline && r.st.status == Playing && r.st.seats[shogi.Sente].Online && r.st.seats[shogi.Gote].Online && r.clk != nil {
			r.clk.Start(ctx, r.st.pos.Turn)
			resume = true
		}
		online = r.onlineSnapshot()
	})
	if ok {
		r.persist(ctx)
		logw.Infof(ctx, "Room %v: %v joined as %v", r.ID, userName, seat)
		r.broadcaster.BroadcastRoom(ctx, r.ID, "connection_status_update", online)
		if resume {
			logw.Infof(ctx, "Room %v: clock resumed on reconnect", r.ID)
		}
	}
	return seat, ok
}

// UpdateSettings applies new settings, only while the room is waiting to
// start.
func (r *Room) UpdateSettings(ctx context.Context, settings Settings) bool {
	var applied bool
	r.do(func() {
		if r.st.status != Waiting {
			return
		}
		r.st.settings = settings
		applied = true
	})
	if applied {
		r.persist(ctx)
		r.broadcaster.BroadcastRoom(ctx, r.ID, "settings_updated", settings)
	}
	return applied
}

// ToggleReady flips seat's ready flag; if both seats become ready, the
// game starts (side-swap, reset, Clock.start).
func (r *Room) ToggleReady(ctx context.Context, seat Seat) {
	var started, changed bool
	var ready map[string]bool
	r.do(func() {
		if r.st.status != Waiting {
			return
		}
		r.st.seats[seat].Ready = !r.st.seats[seat].Ready
		changed = true

		if r.st.seats[shogi.Sente].Ready && r.st.seats[shogi.Gote].Ready {
			r.startGameLocked(ctx)
			started = true
		}
		ready = r.readySnapshot()
	})
	if !changed {
		return
	}
	r.persist(ctx)
	r.broadcaster.BroadcastRoom(ctx, r.ID, "ready_status", ready)
	if started {
		r.broadcaster.BroadcastRoom(ctx, r.ID, "game_started", nil)
	}
}

func (r *Room) readySnapshot() map[string]bool {
	return map[string]bool{
		"sente": r.st.seats[shogi.Sente].Ready,
		"gote":  r.st.seats[shogi.Gote].Ready,
	}
}

// startGameLocked must only be called from within the mailbox goroutine.
func (r *Room) startGameLocked(ctx context.Context) {
	if r.st.settings.RandomTurn && !(r.st.gameCount > 0 && r.st.settings.FixTurn) {
		if randomBool() {
			r.st.seats[shogi.Sente], r.st.seats[shogi.Gote] = r.st.seats[shogi.Gote], r.st.seats[shogi.Sente]
			r.broadcaster.BroadcastRoom(ctx, r.ID, "player_names_updated", r.namesSnapshot())
		}
	}

	r.st.pos = shogi.Initial()
	r.st.history = nil
	r.st.sfenHistory = map[string][]int{shogi.Fingerprint(r.st.pos): {-1}}
	r.st.gameCount++
	r.st.gameStartTime = time.Now()
	r.st.winner = 0
	r.st.hasWinner = false
	r.st.status = Playing

	cs := clock.Settings{InitialSeconds: r.st.settings.InitialSeconds, ByoyomiSeconds: r.st.settings.ByoyomiSeconds}
	r.clk = clock.New(cs, r.onTick, r.onTimeout)
	r.clk.Start(ctx, r.st.pos.Turn)
}

func (r *Room) namesSnapshot() map[string]string {
	return map[string]string{
		"sente": r.st.seats[shogi.Sente].Name,
		"gote":  r.st.seats[shogi.Gote].Name,
	}
}

func (r *Room) onTick(ctx context.Context, times [shogi.NumColors]clock.Snapshot) {
	r.broadcaster.BroadcastRoom(ctx, r.ID, "time_update", map[string]any{
		"times":          map[string]int{"sente": times[shogi.Sente].RemainingSeconds, "gote": times[shogi.Gote].RemainingSeconds},
		"currentByoyomi": map[string]int{"sente": times[shogi.Sente].Byoyomi, "gote": times[shogi.Gote].Byoyomi},
	})
}

// onTimeout is invoked by the Clock's own goroutine; it posts the
// transition onto the room's mailbox so it is serialized against any
// concurrently arriving move rather than racing it.
func (r *Room) onTimeout(ctx context.Context, side shogi.Color) {
	var finished bool
	r.do(func() {
		if r.st.status != Playing {
			return // a concurrent move already ended the turn
		}
		r.st.status = Finished
		r.st.winner, r.st.hasWinner = side.Opponent(), true
		finished = true
	})
	if finished {
		r.persist(ctx)
		r.broadcaster.BroadcastRoom(ctx, r.ID, "game_finished", map[string]any{
			"reason": terminal.Timeout.String(),
			"winner": side.Opponent().String(),
		})
	}
}

// Move validates and applies a move from seat while playing, or appends a
// branch while in analysis. Illegal or out-of-status moves are silently
// ignored (return false) rather than surfaced as an error: the caller is
// an untrusted client and a rejected move requires no further reaction
// beyond the state the client already has.
func (r *Room) Move(ctx context.Context, seat Seat, mv shogi.Move, branchIndex int, hasBranchIndex bool) bool {
	var (
		accepted    bool
		finished    bool
		finishEvent map[string]any
		moveEvent   map[string]any
	)

	r.do(func() {
		switch r.st.status {
		case Playing:
			if r.st.pos.Turn != seat {
				return
			}
			if !shogi.IsLegal(r.st.pos, seat, mv, true) {
				return
			}

			r.clk.Stop(ctx, true)

			next, _, ok := shogi.Apply(r.st.pos, mv)
			if !ok {
				return
			}
			isCheck := shogi.IsKingInCheck(next.Board, seat.Opponent())

			total := int(r.clk.TotalConsumedMs(seat) / 1000)
			prevTotal := 0
			for i := len(r.st.history) - 1; i >= 0; i-- {
				if r.st.history[i].Side == seat {
					prevTotal = r.st.history[i].TimeTotal
					break
				}
			}
			annotated := AnnotatedMove{Move: mv, Side: seat, IsCheck: isCheck, TimeNow: total - prevTotal, TimeTotal: total}

			r.st.pos = next
			r.st.history = append(r.st.history, annotated)
			r.clk.ResetTurn(seat)

			fp := shogi.Fingerprint(next)
			idx := len(r.st.history) - 1
			r.st.sfenHistory[fp] = append(r.st.sfenHistory[fp], idx)
			count := len(r.st.sfenHistory[fp])

			accepted = true
			moveEvent = map[string]any{"move": mv.String(), "isCheck": isCheck, "time": map[string]int{"now": annotated.TimeNow, "total": annotated.TimeTotal}}

			if isCheck && terminal.DetectCheckmate(next, seat) {
				r.st.status = Finished
				r.st.winner, r.st.hasWinner = seat, true
				finished = true
				finishEvent = map[string]any{"reason": terminal.Checkmate.String(), "winner": seat.String()}
				return
			}

			out := terminal.DetectRepetition(count, r.st.sfenHistory[fp], historyMoves(r.st.history))
			if out.Reason != terminal.None {
				r.st.status = Finished
				r.st.hasWinner = out.HasWinner
				if out.HasWinner {
					r.st.winner = out.Winner
				}
				finished = true
				finishEvent = map[string]any{"reason": out.Reason.String()}
				if out.HasWinner {
					finishEvent["winner"] = out.Winner.String()
				} else {
					finishEvent["winner"] = nil
				}
				return
			}

			r.clk.Start(ctx, r.st.pos.Turn)

		case Analysis:
			base := r.st.history
			if hasBranchIndex && branchIndex >= 0 && branchIndex < len(base) {
				base = base[:branchIndex]
			}
			pos, ok := replay(base)
			if !ok || !shogi.IsLegal(pos, seat, mv, true) {
				return
			}
			next, _, ok := shogi.Apply(pos, mv)
			if !ok {
				return
			}
			annotated := AnnotatedMove{Move: mv, Side: seat, IsCheck: shogi.IsKingInCheck(next.Board, seat.Opponent())}
			// Copy before appending: base may share its backing array with
			// analysisSaved.history, which ExitAnalysis restores.
			r.st.history = append(append([]AnnotatedMove(nil), base...), annotated)
			r.st.pos = next
			accepted = true

		default:
			return
		}
	})

	if accepted {
		r.persist(ctx)
		if moveEvent != nil {
			r.broadcaster.BroadcastRoom(ctx, r.ID, "move", moveEvent)
		}
		if r.Status() == Analysis {
			r.broadcaster.BroadcastRoom(ctx, r.ID, "sync", r.Sync())
		}
	}
	if finished {
		r.broadcaster.BroadcastRoom(ctx, r.ID, "game_finished", finishEvent)
	}
	return accepted
}

func historyMoves(history []AnnotatedMove) []terminal.HistoryMove {
	ret := make([]terminal.HistoryMove, len(history))
	for i, m := range history {
		ret[i] = terminal.HistoryMove{Side: m.Side, IsCheck: m.IsCheck}
	}
	return ret
}

// replay reconstructs the position reached after applying history from
// the initial position. Undo, analysis branching and Restore rebuild the
// position this way; a persisted Snapshot stores only history, never the
// board or hands.
func replay(history []AnnotatedMove) (shogi.Position, bool) {
	pos := shogi.Initial()
	for _, m := range history {
		next, _, ok := shogi.Apply(pos, m.Move)
		if !ok {
			return pos, false
		}
		pos = next
	}
	return pos, true
}

// Resign transitions the room to finished with the opposite side winning.
func (r *Room) Resign(ctx context.Context, loser Seat) bool {
	var ok bool
	r.do(func() {
		if r.st.status != Playing {
			return
		}
		if r.clk != nil {
			r.clk.Stop(ctx, true)
		}
		r.st.status = Finished
		r.st.winner, r.st.hasWinner = loser.Opponent(), true
		ok = true
	})
	if ok {
		r.persist(ctx)
		r.broadcaster.BroadcastRoom(ctx, r.ID, "game_finished", map[string]any{
			"reason": terminal.Resign.String(),
			"winner": loser.Opponent().String(),
		})
	}
	return ok
}

// Undo pops one move and replays history back to the prior position. Only
// allowed when the game is not in progress, to avoid rewriting a position
// the clock is actively timing.
func (r *Room) Undo(ctx context.Context) bool {
	var ok bool
	r.do(func() {
		if r.st.status == Playing || len(r.st.history) == 0 {
			return
		}
		r.st.history = r.st.history[:len(r.st.history)-1]
		pos, replayOK := replay(r.st.history)
		if !replayOK {
			return
		}
		r.st.pos = pos
		r.st.sfenHistory = rebuildSfenHistory(r.st.history)
		ok = true
	})
	if ok {
		r.persist(ctx)
		r.broadcaster.BroadcastRoom(ctx, r.ID, "sync", r.Sync())
	}
	return ok
}

func rebuildSfenHistory(history []AnnotatedMove) map[string][]int {
	ret := map[string][]int{shogi.Fingerprint(shogi.Initial()): {-1}}
	pos := shogi.Initial()
	for i, m := range history {
		next, _, ok := shogi.Apply(pos, m.Move)
		if !ok {
			break
		}
		pos = next
		fp := shogi.Fingerprint(pos)
		ret[fp] = append(ret[fp], i)
	}
	return ret
}

// Reset clears history and returns to the starting state. Only allowed
// when the game is not in progress, same rule as Undo.
func (r *Room) Reset(ctx context.Context) bool {
	var ok bool
	r.do(func() {
		if r.st.status == Playing {
			return
		}
		r.st = freshState(r.st.settings)
		ok = true
	})
	if ok {
		r.persist(ctx)
		r.broadcaster.BroadcastRoom(ctx, r.ID, "sync", r.Sync())
	}
	return ok
}

// Rematch records seat's rematch request; when both seats have requested,
// the room resets and returns to Waiting (requiring fresh ready flags).
func (r *Room) Rematch(ctx context.Context, seat Seat) {
	var bothRequested, changed bool
	var rematch map[string]bool
	r.do(func() {
		if r.st.status != Finished {
			return
		}
		r.st.seats[seat].Rematch = true
		changed = true
		if r.st.seats[shogi.Sente].Rematch && r.st.seats[shogi.Gote].Rematch {
			settings := r.st.settings
			gameCount := r.st.gameCount
			seats := r.st.seats
			r.st = freshState(settings)
			r.st.gameCount = gameCount
			r.st.seats = seats
			for s := range r.st.seats {
				r.st.seats[s].Ready = false
				r.st.seats[s].Rematch = false
			}
			bothRequested = true
		}
		rematch = r.rematchSnapshot()
	})
	if !changed {
		return
	}
	r.persist(ctx)
	r.broadcaster.BroadcastRoom(ctx, r.ID, "rematch_status", rematch)
	if bothRequested {
		r.broadcaster.BroadcastRoom(ctx, r.ID, "sync", r.Sync())
	}
}

func (r *Room) rematchSnapshot() map[string]bool {
	return map[string]bool{
		"sente": r.st.seats[shogi.Sente].Rematch,
		"gote":  r.st.seats[shogi.Gote].Rematch,
	}
}

// EnterAnalysis switches a finished room into the non-authoritative
// analysis branch mode, saving state so ExitAnalysis can restore it.
func (r *Room) EnterAnalysis(ctx context.Context) bool {
	var ok bool
	r.do(func() {
		if r.st.status != Finished {
			return
		}
		saved := r.st
		r.st.analysisSaved = &saved
		r.st.status = Analysis
		ok = true
	})
	if ok {
		r.broadcaster.BroadcastRoom(ctx, r.ID, "sync", r.Sync())
	}
	return ok
}

// ExitAnalysis returns to Finished with the pre-branch state restored:
// entering analysis is a spectating action, not a rematch decision, so it
// must not leave the authoritative finished game mutated.
func (r *Room) ExitAnalysis(ctx context.Context) bool {
	var ok bool
	r.do(func() {
		if r.st.status != Analysis || r.st.analysisSaved == nil {
			return
		}
		saved := *r.st.analysisSaved
		saved.analysisSaved = nil
		r.st = saved
		ok = true
	})
	if ok {
		r.broadcaster.BroadcastRoom(ctx, r.ID, "sync", r.Sync())
	}
	return ok
}

// Disconnect marks seat offline; if the game is in progress, the Clock is
// paused (stopped with commit) since a seated player can't be timed while
// gone.
func (r *Room) Disconnect(ctx context.Context, sessionID string) {
	var pause bool
	var online map[string]bool
	r.do(func() {
		for s := range r.st.seats {
			if r.st.seats[s].SessionID == sessionID {
				r.st.seats[s].Online = false
				if r.st.status == Playing {
					pause = true
				}
			}
		}
		if pause && r.clk != nil {
			r.clk.Stop(ctx, true)
		}
		online = r.onlineSnapshot()
	})
	r.persist(ctx)
	r.broadcaster.BroadcastRoom(ctx, r.ID, "connection_status_update", online)
}

func (r *Room) onlineSnapshot() map[string]bool {
	return map[string]bool{
		"sente": r.st.seats[shogi.Sente].Online,
		"gote":  r.st.seats[shogi.Gote].Online,
	}
}

// Sync returns the full authoritative view sent on join and after any
// structural change (branch replay, undo, reset, rematch).
func (r *Room) Sync() map[string]any {
	var ret map[string]any
	r.do(func() {
		moveStrs := make([]string, len(r.st.history))
		for i, m := range r.st.history {
			moveStrs[i] = m.Move.String()
		}
		winner := "none"
		if r.st.hasWinner {
			winner = r.st.winner.String()
		}
		ret = map[string]any{
			"history":         moveStrs,
			"status":          r.st.status.String(),
			"winner":          winner,
			"ready":           r.readySnapshot(),
			"settings":        r.st.settings,
			"rematchRequests": r.rematchSnapshot(),
			"playerNames":     r.namesSnapshot(),
		}
		if r.clk != nil {
			snap := r.clk.Snapshot()
			ret["times"] = map[string]int{"sente": snap[shogi.Sente].RemainingSeconds, "gote": snap[shogi.Gote].RemainingSeconds}
			ret["currentByoyomi"] = map[string]int{"sente": snap[shogi.Sente].Byoyomi, "gote": snap[shogi.Gote].Byoyomi}
		}
	})
	return ret
}

func (r *Room) persist(ctx context.Context) {
	if r.store == nil {
		return
	}
	snap := r.buildSnapshot()
	if err := r.store.Save(ctx, r.ID, snap); err != nil {
		logw.Errorf(ctx, "Room %v: snapshot save failed: %v", r.ID, err)
	}
}

// buildSnapshot reads current state through the mailbox and returns a
// Snapshot suitable for persistence.
func (r *Room) buildSnapshot() Snapshot {
	var snap Snapshot
	r.do(func() {
		snap = Snapshot{
			Status:        r.st.status,
			History:       append([]AnnotatedMove(nil), r.st.history...),
			Seats:         r.st.seats,
			Settings:      r.st.settings,
			GameStartTime: r.st.gameStartTime,
			GameCount:     r.st.gameCount,
			Winner:        r.st.winner,
			HasWinner:     r.st.hasWinner,
			UpdatedAt:     time.Now(),
		}
		if r.clk != nil {
			times := r.clk.Snapshot()
			for s := shogi.Color(0); s < shogi.NumColors; s++ {
				snap.Times[s] = times[s].RemainingSeconds
				snap.CurrentByoyomi[s] = times[s].Byoyomi
				snap.TotalConsumedMs[s] = r.clk.TotalConsumedMs(s)
			}
		}
	})
	return snap
}

func randomBool() bool {
	return rand.Intn(2) == 0
}

// Package session maps transport-level events onto Room operations, tracks
// connection presence, and fans out chat messages. Grounded on
// pkg/engine/console/console.go's cmd-switch dispatch loop, generalized
// from a single engine's text protocol to per-session routing across many
// concurrent rooms.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/herohde/shogiserver/internal/room"
	"github.com/seekerror/logw"
)

// Broadcaster is the outbound transport collaborator the router depends
// on; it is a superset of room.Broadcaster so the same concrete
// transport (internal/transport/ws) can be handed to both the Manager and
// the Router.
type Broadcaster interface {
	room.Broadcaster
	BroadcastGlobal(ctx context.Context, event string, payload any)
}

type sessionInfo struct {
	RoomID   string
	UserID   string
	UserName string
	Seat     room.Seat
	HasSeat  bool
}

// Router is the single shared dispatcher for every connected session.
type Router struct {
	manager *room.Manager
	bc      Broadcaster

	mu           sync.Mutex
	sessions     map[string]*sessionInfo
	roomSessions map[string]map[string]struct{}
}

// NewRouter creates a Router over manager, broadcasting through bc. bc
// may be nil and supplied later via SetBroadcaster, since the transport
// is itself constructed from this Router.
func NewRouter(manager *room.Manager, bc Broadcaster) *Router {
	return &Router{
		manager:      manager,
		bc:           bc,
		sessions:     map[string]*sessionInfo{},
		roomSessions: map[string]map[string]struct{}{},
	}
}

// SetBroadcaster wires the outbound broadcaster, used once at startup
// after the transport has been constructed from this same Router.
func (r *Router) SetBroadcaster(bc Broadcaster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bc = bc
}

// Dispatch decodes payload according to event and invokes the matching
// handler for sessionID. Unknown or malformed events are logged and
// ignored rather than dropping the connection.
func (r *Router) Dispatch(ctx context.Context, sessionID string, event string, payload json.RawMessage) {
	switch event {
	case EventJoinRoom:
		var p JoinRoomPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			logw.Errorf(ctx, "session %v: bad join_room payload: %v", sessionID, err)
			return
		}
		r.HandleJoinRoom(ctx, sessionID, p)

	case EventSendMessage:
		var p SendMessagePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			logw.Errorf(ctx, "session %v: bad send_message payload: %v", sessionID, err)
			return
		}
		r.HandleSendMessage(ctx, sessionID, p)

	case EventUpdateSettings:
		var p UpdateSettingsPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			logw.Errorf(ctx, "session %v: bad update_settings payload: %v", sessionID, err)
			return
		}
		r.HandleUpdateSettings(ctx, sessionID, p)

	case EventToggleReady:
		var p ToggleReadyPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			logw.Errorf(ctx, "session %v: bad toggle_ready payload: %v", sessionID, err)
			return
		}
		r.HandleToggleReady(ctx, sessionID, p)

	case EventMove:
		var p MovePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			logw.Errorf(ctx, "session %v: bad move payload: %v", sessionID, err)
			return
		}
		r.HandleMove(ctx, sessionID, p)

	case EventGameResign:
		var p GameResignPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			logw.Errorf(ctx, "session %v: bad game_resign payload: %v", sessionID, err)
			return
		}
		r.HandleGameResign(ctx, sessionID, p)

	case EventUndo:
		var p RoomOnlyPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			logw.Errorf(ctx, "session %v: bad undo payload: %v", sessionID, err)
			return
		}
		r.HandleUndo(ctx, sessionID, p)

	case EventReset:
		var p RoomOnlyPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			logw.Errorf(ctx, "session %v: bad reset payload: %v", sessionID, err)
			return
		}
		r.HandleReset(ctx, sessionID, p)

	case EventRematch:
		var p RematchPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			logw.Errorf(ctx, "session %v: bad rematch payload: %v", sessionID, err)
			return
		}
		r.HandleRematch(ctx, sessionID, p)

	case EventEnterAnalysis:
		var p RoomOnlyPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			logw.Errorf(ctx, "session %v: bad enter_analysis payload: %v", sessionID, err)
			return
		}
		r.HandleEnterAnalysis(ctx, sessionID, p)

	case EventExitAnalysis:
		var p RoomOnlyPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			logw.Errorf(ctx, "session %v: bad exit_analysis payload: %v", sessionID, err)
			return
		}
		r.HandleExitAnalysis(ctx, sessionID, p)

	case EventPingLatency:
		// Opaque client hint with no effect on any room. touchLastSeen only
		// adds the session to the router's table if it is not tracked yet;
		// no timestamp is recorded and neither GC sweep consults it.
		r.touchLastSeen(sessionID)

	case EventDisconnect:
		r.HandleDisconnect(ctx, sessionID)

	default:
		logw.Infof(ctx, "session %v: ignoring unknown event %q", sessionID, event)
	}
}

// SessionIDsInRoom returns the ids of every session currently tracked
// against roomID, for the transport's per-room fan-out.
func (r *Router) SessionIDsInRoom(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.roomSessions[roomID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

func (r *Router) touchLastSeen(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		r.sessions[sessionID] = &sessionInfo{}
	}
}

func (r *Router) get(sessionID string) (*sessionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

func (r *Router) track(sessionID string, info *sessionInfo) {
	r.mu.Lock()
	r.sessions[sessionID] = info
	if _, ok := r.roomSessions[info.RoomID]; !ok {
		r.roomSessions[info.RoomID] = map[string]struct{}{}
	}
	r.roomSessions[info.RoomID][sessionID] = struct{}{}
	globalCount := len(r.sessions)
	roomCount := len(r.roomSessions[info.RoomID])
	r.mu.Unlock()

	ctx := context.Background()
	r.bc.BroadcastGlobal(ctx, OutUpdateGlobalCount, globalCount)
	r.bc.BroadcastRoom(ctx, info.RoomID, OutUpdateRoomCount, roomCount)
}

// HandleJoinRoom seats or spectates sessionID into p.RoomID, replying with
// a full sync and broadcasting presence.
func (r *Router) HandleJoinRoom(ctx context.Context, sessionID string, p JoinRoomPayload) {
	rm := r.manager.GetOrCreate(p.RoomID)
	seat, hasSeat := rm.Join(ctx, sessionID, p.UserID, p.UserName)

	r.track(sessionID, &sessionInfo{RoomID: p.RoomID, UserID: p.UserID, UserName: p.UserName, Seat: seat, HasSeat: hasSeat})

	sync := rm.Sync()
	if hasSeat {
		sync["yourRole"] = seat.String()
	} else {
		sync["yourRole"] = "spectator"
	}
	r.bc.SendSession(ctx, sessionID, OutSync, sync)
	r.bc.BroadcastRoom(ctx, p.RoomID, OutPlayerNamesUpdated, nil)
}

// HandleSendMessage fans a chat message out to every session in the room.
func (r *Router) HandleSendMessage(ctx context.Context, sessionID string, p SendMessagePayload) {
	info, ok := r.get(sessionID)
	if !ok {
		return
	}
	r.bc.BroadcastRoom(ctx, p.RoomID, OutReceiveMessage, map[string]any{
		"text":     p.Text,
		"role":     p.Role,
		"userName": info.UserName,
		"userId":   info.UserID,
	})
}

// HandleUpdateSettings applies settings, only while the room is waiting.
func (r *Router) HandleUpdateSettings(ctx context.Context, sessionID string, p UpdateSettingsPayload) {
	rm, ok := r.manager.Get(p.RoomID)
	if !ok {
		return
	}
	rm.UpdateSettings(ctx, room.Settings{
		InitialSeconds: p.InitialSeconds,
		ByoyomiSeconds: p.ByoyomiSeconds,
		RandomTurn:     p.RandomTurn,
		FixTurn:        p.FixTurn,
	})
}

// HandleToggleReady flips the caller's seat readiness.
func (r *Router) HandleToggleReady(ctx context.Context, sessionID string, p ToggleReadyPayload) {
	info, ok := r.get(sessionID)
	if !ok || !info.HasSeat {
		return
	}
	rm, ok := r.manager.Get(p.RoomID)
	if !ok {
		return
	}
	rm.ToggleReady(ctx, info.Seat)
}

// HandleMove dispatches a move or analysis branch from the caller's seat.
func (r *Router) HandleMove(ctx context.Context, sessionID string, p MovePayload) {
	info, ok := r.get(sessionID)
	if !ok || !info.HasSeat {
		return
	}
	rm, ok := r.manager.Get(p.RoomID)
	if !ok {
		return
	}
	mv, ok := p.ToMove()
	if !ok {
		logw.Infof(ctx, "session %v: rejecting move with unparseable drop kind %q", sessionID, p.DropKind)
		return
	}
	rm.Move(ctx, info.Seat, mv, p.BranchIndex, p.HasBranchIndex)
}

// HandleGameResign resigns the caller's seat.
func (r *Router) HandleGameResign(ctx context.Context, sessionID string, p GameResignPayload) {
	info, ok := r.get(sessionID)
	if !ok || !info.HasSeat {
		return
	}
	rm, ok := r.manager.Get(p.RoomID)
	if !ok {
		return
	}
	rm.Resign(ctx, info.Seat)
}

// HandleUndo requests popping the last move.
func (r *Router) HandleUndo(ctx context.Context, sessionID string, p RoomOnlyPayload) {
	rm, ok := r.manager.Get(p.RoomID)
	if !ok {
		return
	}
	rm.Undo(ctx)
}

// HandleReset requests clearing history back to the starting position.
func (r *Router) HandleReset(ctx context.Context, sessionID string, p RoomOnlyPayload) {
	rm, ok := r.manager.Get(p.RoomID)
	if !ok {
		return
	}
	rm.Reset(ctx)
}

// HandleRematch records the caller's rematch request.
func (r *Router) HandleRematch(ctx context.Context, sessionID string, p RematchPayload) {
	info, ok := r.get(sessionID)
	if !ok || !info.HasSeat {
		return
	}
	rm, ok := r.manager.Get(p.RoomID)
	if !ok {
		return
	}
	rm.Rematch(ctx, info.Seat)
}

// HandleEnterAnalysis switches a finished room into analysis mode.
func (r *Router) HandleEnterAnalysis(ctx context.Context, sessionID string, p RoomOnlyPayload) {
	rm, ok := r.manager.Get(p.RoomID)
	if !ok {
		return
	}
	rm.EnterAnalysis(ctx)
}

// HandleExitAnalysis returns an analysis room to its finished state.
func (r *Router) HandleExitAnalysis(ctx context.Context, sessionID string, p RoomOnlyPayload) {
	rm, ok := r.manager.Get(p.RoomID)
	if !ok {
		return
	}
	rm.ExitAnalysis(ctx)
}

// HandleDisconnect removes sessionID, pausing its room's Clock if a
// seated player left mid-game, and rebroadcasts presence counts.
func (r *Router) HandleDisconnect(ctx context.Context, sessionID string) {
	r.mu.Lock()
	info, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
		if set, ok := r.roomSessions[info.RoomID]; ok {
			delete(set, sessionID)
			if len(set) == 0 {
				delete(r.roomSessions, info.RoomID)
			}
		}
	}
	globalCount := len(r.sessions)
	var roomCount int
	if ok {
		roomCount = len(r.roomSessions[info.RoomID])
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	if rm, found := r.manager.Get(info.RoomID); found && info.HasSeat {
		rm.Disconnect(ctx, sessionID)
	}

	r.bc.BroadcastGlobal(ctx, OutUpdateGlobalCount, globalCount)
	r.bc.BroadcastRoom(ctx, info.RoomID, OutUpdateRoomCount, roomCount)
}

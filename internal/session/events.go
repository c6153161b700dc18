package session

import "github.com/herohde/shogiserver/internal/shogi"

// Inbound event names, the wire vocabulary clients send over the socket.
const (
	EventJoinRoom        = "join_room"
	EventSendMessage     = "send_message"
	EventUpdateSettings  = "update_settings"
	EventToggleReady     = "toggle_ready"
	EventMove            = "move"
	EventGameResign      = "game_resign"
	EventUndo            = "undo"
	EventReset           = "reset"
	EventRematch         = "rematch"
	EventPingLatency     = "ping_latency"
	EventDisconnect      = "disconnect"
	EventEnterAnalysis   = "enter_analysis"
	EventExitAnalysis    = "exit_analysis"
)

// Outbound event names, the wire vocabulary the server sends over the socket.
const (
	OutSync                   = "sync"
	OutMove                   = "move"
	OutTimeUpdate             = "time_update"
	OutGameStarted            = "game_started"
	OutGameFinished           = "game_finished"
	OutSettingsUpdated        = "settings_updated"
	OutReadyStatus            = "ready_status"
	OutRematchStatus          = "rematch_status"
	OutPlayerNamesUpdated     = "player_names_updated"
	OutConnectionStatusUpdate = "connection_status_update"
	OutUpdateGlobalCount      = "update_global_count"
	OutUpdateRoomCount        = "update_room_count"
	OutReceiveMessage         = "receive_message"
)

// JoinRoomPayload is the inbound payload for EventJoinRoom.
type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Mode     string `json:"mode"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// SendMessagePayload is the inbound payload for EventSendMessage.
type SendMessagePayload struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
	Role   string `json:"role"`
}

// UpdateSettingsPayload is the inbound payload for EventUpdateSettings.
type UpdateSettingsPayload struct {
	RoomID         string `json:"roomId"`
	InitialSeconds int    `json:"initialSeconds"`
	ByoyomiSeconds int    `json:"byoyomiSeconds"`
	RandomTurn     bool   `json:"randomTurn"`
	FixTurn        bool   `json:"fixTurn"`
}

// ToggleReadyPayload is the inbound payload for EventToggleReady.
type ToggleReadyPayload struct {
	RoomID string `json:"roomId"`
}

// MovePayload is the inbound payload for EventMove. Board moves carry
// FromX/FromY, ToX/ToY and Promote; drops set IsDrop and carry ToX/ToY and
// DropKind. ToMove picks the move shape from IsDrop and ignores the fields
// of the other shape.
type MovePayload struct {
	RoomID string `json:"roomId"`

	IsDrop bool `json:"isDrop"`

	FromX, FromY int  `json:"fromX,omitempty"`
	ToX, ToY     int  `json:"toX"`
	Promote      bool `json:"promote,omitempty"`

	DropKind string `json:"dropKind,omitempty"`

	HasBranchIndex bool `json:"hasBranchIndex,omitempty"`
	BranchIndex    int  `json:"branchIndex,omitempty"`
}

// ToMove converts the wire payload into a shogi.Move. ok is false if the
// payload names an unrecognized drop kind; downstream legality checking
// rejects anything else malformed.
func (p MovePayload) ToMove() (shogi.Move, bool) {
	if p.IsDrop {
		k, ok := parseKind(p.DropKind)
		if !ok {
			return shogi.Move{}, false
		}
		return shogi.NewDrop(shogi.NewSquare(p.ToX, p.ToY), k), true
	}
	return shogi.NewBoardMove(shogi.NewSquare(p.FromX, p.FromY), shogi.NewSquare(p.ToX, p.ToY), p.Promote), true
}

func parseKind(s string) (shogi.Kind, bool) {
	switch s {
	case "P":
		return shogi.Pawn, true
	case "L":
		return shogi.Lance, true
	case "N":
		return shogi.Knight, true
	case "S":
		return shogi.Silver, true
	case "G":
		return shogi.Gold, true
	case "B":
		return shogi.Bishop, true
	case "R":
		return shogi.Rook, true
	default:
		return shogi.NoKind, false
	}
}

// GameResignPayload is the inbound payload for EventGameResign.
type GameResignPayload struct {
	RoomID string `json:"roomId"`
}

// RoomOnlyPayload covers undo/reset, whose only field is the room id.
type RoomOnlyPayload struct {
	RoomID string `json:"roomId"`
}

// RematchPayload is the inbound payload for EventRematch.
type RematchPayload struct {
	RoomID string `json:"roomId"`
}

// PingLatencyPayload is the inbound payload for EventPingLatency.
type PingLatencyPayload struct {
	ClientTimeMillis int64 `json:"clientTimeMillis"`
}

// Package terminal implements checkmate and repetition/perpetual-check
// detection run after each move. Grounded on pkg/board/board.go's
// repetition bookkeeping (b.repetitions[hash], identicalPositionCount),
// with classification logic that has no chess analogue (chess has no
// perpetual-check illegality rule).
package terminal

import "github.com/herohde/shogiserver/internal/shogi"

// Reason is the cause of a terminal game outcome.
type Reason int

const (
	None Reason = iota
	Checkmate
	Timeout
	Resign
	Sennichite
	IllegalSennichite
)

func (r Reason) String() string {
	switch r {
	case Checkmate:
		return "checkmate"
	case Timeout:
		return "timeout"
	case Resign:
		return "resign"
	case Sennichite:
		return "sennichite"
	case IllegalSennichite:
		return "illegal_sennichite"
	default:
		return "none"
	}
}

// Outcome is the result of running the detector after a move.
type Outcome struct {
	Reason Reason
	Winner shogi.Color
	HasWinner bool
}

// HistoryMove is the minimal per-move annotation the detector needs to
// classify a perpetual-check block: which side moved and whether that
// move gave check.
type HistoryMove struct {
	Side    shogi.Color
	IsCheck bool
}

// DetectCheckmate reports whether mover (the side that just moved) has
// delivered checkmate: the opponent is in check and has no legal response.
// Candidate responses are tested with checkUchiFuMate disabled to avoid
// infinite regress through the drop-pawn-mate rule.
func DetectCheckmate(pos shogi.Position, mover shogi.Color) bool {
	opp := mover.Opponent()
	if !shogi.IsKingInCheck(pos.Board, opp) {
		return false
	}
	return !shogi.HasAnyLegalMove(pos, opp)
}

// DetectRepetition inspects the fingerprint occurrence count for the
// current position (after incrementing it for this visit) and, if it has
// reached 4, classifies the repetition using the move history between the
// two most recent occurrences.
//
// occurrenceIndices lists, in increasing order, every history index
// (0-based, -1 meaning the initial position before any move) at which
// this exact fingerprint was reached, including the current one (the
// last element). moves is the full move history (index i is the move
// that produced history position i).
func DetectRepetition(count int, occurrenceIndices []int, moves []HistoryMove) Outcome {
	if count < 4 {
		return Outcome{Reason: None}
	}

	n := len(occurrenceIndices)
	last := occurrenceIndices[n-1]
	prev := occurrenceIndices[n-2]

	block := moves[prev+1 : last+1]

	hasSenteMove, allSenteChecks := false, true
	hasGoteMove, allGoteChecks := false, true

	for _, m := range block {
		switch m.Side {
		case shogi.Sente:
			hasSenteMove = true
			if !m.IsCheck {
				allSenteChecks = false
			}
		case shogi.Gote:
			hasGoteMove = true
			if !m.IsCheck {
				allGoteChecks = false
			}
		}
	}

	switch {
	case hasSenteMove && allSenteChecks:
		return Outcome{Reason: IllegalSennichite, Winner: shogi.Gote, HasWinner: true}
	case hasGoteMove && allGoteChecks:
		return Outcome{Reason: IllegalSennichite, Winner: shogi.Sente, HasWinner: true}
	default:
		return Outcome{Reason: Sennichite}
	}
}

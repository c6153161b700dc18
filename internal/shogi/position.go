package shogi

// Position is a full game-equivalence-relevant snapshot: board, both
// hands and the side to move. It carries no history; repetition and
// check-annotation bookkeeping live one level up, in the room package,
// matching the split between pkg/board/position.go (pure position) and
// pkg/board/board.go (history-aware wrapper).
type Position struct {
	Board Board
	Hands [NumColors]Hand
	Turn  Color
}

// Initial returns the standard starting position with empty hands and
// Sente to move.
func Initial() Position {
	return Position{
		Board: InitialBoard(),
		Hands: [NumColors]Hand{NewHand(), NewHand()},
		Turn:  Sente,
	}
}

// IsKingInCheck reports whether side's king is attacked by any opposing
// piece. Returns false if the king is absent (defensive: should not occur
// in a well-formed game, mirrors pkg/board/position.go's IsChecked via
// IsAttacked, generalized from one attack-board lookup per piece type to a
// canReach scan since this package has no bitboards).
func IsKingInCheck(b Board, side Color) bool {
	king, ok := b.King(side)
	if !ok {
		return false
	}
	opp := side.Opponent()
	for _, sq := range AllSquares() {
		p, ok := b.At(sq)
		if !ok || p.Owner != opp {
			continue
		}
		if canReach(b, sq, king, p) {
			return true
		}
	}
	return false
}

// IsLegal validates move for side against pos: turn order, piece presence
// and ownership, reachability, drop restrictions (nifu, last-rank
// immobility, uchi-fu-zume), and the mover's own king never ending in
// check. checkUchiFuMate gates the drop-pawn-mate prohibition off when
// recursing into candidate responses, to avoid infinite regress.
func IsLegal(pos Position, side Color, move Move, checkUchiFuMate bool) bool {
	if pos.Turn != side {
		return false
	}

	to := move.Destination()
	if !to.IsValid() {
		return false
	}
	if existing, ok := pos.Board.At(to); ok && existing.Owner == side {
		return false
	}

	switch move.Kind {
	case DropKind:
		if !isLegalDrop(pos, side, move, checkUchiFuMate) {
			return false
		}

	case BoardMoveKind:
		if !move.From.IsValid() {
			return false
		}
		mover, ok := pos.Board.At(move.From)
		if !ok || mover.Owner != side {
			return false
		}
		if !canReach(pos.Board, move.From, move.To, mover) {
			return false
		}

		if move.Promote {
			if !mover.Kind.CanPromote() || !inPromotionZone(side, move.From, move.To) {
				return false
			}
		} else if isDeadSquare(side, mover.Kind, move.To) {
			return false
		}
	}

	// Self-check: simulate and verify the mover's own king is safe.
	next, _, ok := Apply(pos, move)
	if !ok {
		return false
	}
	if IsKingInCheck(next.Board, side) {
		return false
	}

	if checkUchiFuMate && move.Kind == DropKind && move.DropKind == Pawn {
		if IsKingInCheck(next.Board, side.Opponent()) && !HasAnyLegalMove(next, side.Opponent()) {
			return false
		}
	}

	return true
}

func isLegalDrop(pos Position, side Color, move Move, checkUchiFuMate bool) bool {
	if !pos.Board.IsEmpty(move.DropTo) {
		return false
	}
	if pos.Hands[side].Count(move.DropKind) <= 0 {
		return false
	}
	if isDeadSquare(side, move.DropKind, move.DropTo) {
		return false
	}
	if move.DropKind == Pawn {
		for y := 0; y < BoardSize; y++ {
			if p, ok := pos.Board.At(NewSquare(move.DropTo.X, y)); ok && p.Owner == side && p.Kind == Pawn {
				return false
			}
		}
	}
	return true
}

// inPromotionZone returns true iff a board move from/to for side crosses
// into or within the last three ranks for that side, where promotion is
// offered.
func inPromotionZone(side Color, from, to Square) bool {
	return inZone(side, from) || inZone(side, to)
}

func inZone(side Color, sq Square) bool {
	if side == Sente {
		return sq.Y <= 2
	}
	return sq.Y >= BoardSize-3
}

// Apply produces the position after move, without legality checking
// (callers must call IsLegal first; Apply is also used internally by
// IsLegal to simulate candidates). captured is the kind of piece taken, if
// any, as it enters the mover's hand: already demoted to its unpromoted
// kind.
func Apply(pos Position, move Move) (next Position, captured Kind, ok bool) {
	next = pos
	next.Hands = pos.Hands // struct copy of the array; elements are copy-on-write

	switch move.Kind {
	case DropKind:
		hand, removed := pos.Hands[pos.Turn].Remove(move.DropKind)
		if !removed {
			return pos, NoKind, false
		}
		next.Hands[pos.Turn] = hand
		next.Board = pos.Board.With(move.DropTo, Piece{Kind: move.DropKind, Owner: pos.Turn})

	case BoardMoveKind:
		mover, ok := pos.Board.At(move.From)
		if !ok {
			return pos, NoKind, false
		}
		b := pos.Board.Cleared(move.From)

		if target, occupied := b.At(move.To); occupied {
			captured = target.Kind
			if d, ok := captured.Demote(); ok {
				captured = d
			}
			next.Hands[pos.Turn] = pos.Hands[pos.Turn].Add(captured)
		}

		resultKind := mover.Kind
		if move.Promote {
			if p, ok := mover.Kind.Promote(); ok {
				resultKind = p
			}
		}
		b = b.With(move.To, Piece{Kind: resultKind, Owner: pos.Turn})
		next.Board = b
	}

	next.Turn = pos.Turn.Opponent()
	return next, captured, true
}

// CandidateMoves enumerates every pseudo-legal move and drop available to
// side: every board move a piece could geometrically make plus every
// legal-destination drop, without filtering for self-check. Used by the
// terminal detector and by uchi-fu-zume's recursive legality check.
func CandidateMoves(pos Position, side Color) []Move {
	var ret []Move

	for _, from := range AllSquares() {
		p, ok := pos.Board.At(from)
		if !ok || p.Owner != side {
			continue
		}
		for _, to := range AllSquares() {
			if from == to {
				continue
			}
			if existing, occupied := pos.Board.At(to); occupied && existing.Owner == side {
				continue
			}
			if !canReach(pos.Board, from, to, p) {
				continue
			}
			if p.Kind.CanPromote() && inPromotionZone(side, from, to) {
				ret = append(ret, NewBoardMove(from, to, true))
			}
			if !isDeadSquare(side, p.Kind, to) {
				ret = append(ret, NewBoardMove(from, to, false))
			}
		}
	}

	for _, k := range handKinds {
		if pos.Hands[side].Count(k) <= 0 {
			continue
		}
		for _, to := range AllSquares() {
			if !pos.Board.IsEmpty(to) {
				continue
			}
			if isDeadSquare(side, k, to) {
				continue
			}
			ret = append(ret, NewDrop(to, k))
		}
	}

	return ret
}

// HasAnyLegalMove returns true iff side has at least one legal move in
// pos. checkUchiFuMate is always disabled for this scan, the same
// recursion-avoidance rule IsLegal applies to candidate responses.
func HasAnyLegalMove(pos Position, side Color) bool {
	for _, m := range CandidateMoves(pos, side) {
		if IsLegal(pos, side, m, false) {
			return true
		}
	}
	return false
}

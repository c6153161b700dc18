package shogi

// abs is a tiny local helper; avoids pulling in math for one int op.
func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// canReach reports whether piece, standing at from, can move to to on the
// given board, ignoring whose turn it is and whether the move would leave
// the mover in check. It does account for blockers on sliding pieces.
func canReach(b Board, from, to Square, piece Piece) bool {
	dx := to.X - from.X
	dy := to.Y - from.Y
	forward := piece.Owner.Forward()

	switch piece.Kind {
	case King:
		return max(abs(dx), abs(dy)) == 1

	case Gold, PromotedPawn, PromotedLance, PromotedKnight, PromotedSilver:
		return (abs(dx) == 1 && dy == 0) || (dx == 0 && abs(dy) == 1) || (abs(dx) == 1 && dy == forward)

	case Silver:
		return (abs(dx) == 1 && abs(dy) == 1) || (dx == 0 && dy == forward)

	case Knight:
		return abs(dx) == 1 && dy == 2*forward

	case Pawn:
		return dx == 0 && dy == forward

	case Lance:
		if dx != 0 || (dy > 0) != (forward > 0) || dy == 0 {
			return false
		}
		return clearBetween(b, from, to)

	case Bishop:
		return abs(dx) == abs(dy) && dx != 0 && clearBetween(b, from, to)

	case Horse:
		if abs(dx) == abs(dy) && dx != 0 && clearBetween(b, from, to) {
			return true
		}
		return (dx == 0 && abs(dy) == 1) || (dy == 0 && abs(dx) == 1)

	case Rook:
		return (dx == 0) != (dy == 0) && clearBetween(b, from, to)

	case Dragon:
		if (dx == 0) != (dy == 0) && clearBetween(b, from, to) {
			return true
		}
		return abs(dx) == 1 && abs(dy) == 1

	default:
		return false
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// clearBetween returns true iff every square strictly between from and to
// (exclusive of both ends) is empty. from and to must be aligned
// orthogonally or diagonally; callers guarantee this.
func clearBetween(b Board, from, to Square) bool {
	dx := sign(to.X - from.X)
	dy := sign(to.Y - from.Y)

	x, y := from.X+dx, from.Y+dy
	for x != to.X || y != to.Y {
		if !b.IsEmpty(NewSquare(x, y)) {
			return false
		}
		x += dx
		y += dy
	}
	return true
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

// isDeadSquare reports whether placing kind at sq (owned by side) would
// leave it with no legal forward move ever again: Pawn/Lance on the last
// rank, Knight on the last two ranks.
func isDeadSquare(side Color, kind Kind, sq Square) bool {
	lastRank := BoardSize - 1
	if side == Sente {
		lastRank = 0
	}

	switch kind {
	case Pawn, Lance:
		return sq.Y == lastRank
	case Knight:
		if side == Sente {
			return sq.Y <= 1
		}
		return sq.Y >= BoardSize-2
	default:
		return false
	}
}

package shogi

// Board is a 9x9 grid of squares, each empty or holding one Piece. Indexed
// [y][x], with y=0 being Gote's back rank.
type Board struct {
	grid [BoardSize][BoardSize]Piece
}

// At returns the piece on the square, if any.
func (b Board) At(sq Square) (Piece, bool) {
	p := b.grid[sq.Y][sq.X]
	return p, p.Kind != NoKind
}

// IsEmpty returns true iff the square holds no piece.
func (b Board) IsEmpty(sq Square) bool {
	return b.grid[sq.Y][sq.X].Kind == NoKind
}

// With returns a new board with the square set to the given piece (or
// cleared, if piece is the zero value).
func (b Board) With(sq Square, p Piece) Board {
	ret := b
	ret.grid[sq.Y][sq.X] = p
	return ret
}

// Cleared returns a new board with the square emptied.
func (b Board) Cleared(sq Square) Board {
	return b.With(sq, Piece{})
}

// King returns the square of the side's king. ok is false if absent, which
// should not happen in a well-formed game but is handled defensively
// (mirrors pkg/board/board.go's treatment of draw conditions that should
// not normally trigger).
func (b Board) King(side Color) (Square, bool) {
	for _, sq := range AllSquares() {
		if p, ok := b.At(sq); ok && p.Kind == King && p.Owner == side {
			return sq, true
		}
	}
	return Square{}, false
}

// PieceCount returns the number of pieces on the board, of both owners.
func (b Board) PieceCount() int {
	n := 0
	for _, sq := range AllSquares() {
		if _, ok := b.At(sq); ok {
			n++
		}
	}
	return n
}

// InitialBoard returns the standard Shogi starting array. Gote occupies
// y=0..2, Sente y=6..8, rooks at (7,7)/(1,1), bishops at (1,7)/(7,1).
func InitialBoard() Board {
	var b Board

	backRank := []Kind{Lance, Knight, Silver, Gold, King, Gold, Silver, Knight, Lance}
	for x, k := range backRank {
		b = b.With(NewSquare(x, 0), Piece{Kind: k, Owner: Gote})
		b = b.With(NewSquare(x, 8), Piece{Kind: k, Owner: Sente})
	}

	b = b.With(NewSquare(1, 1), Piece{Kind: Rook, Owner: Gote})
	b = b.With(NewSquare(7, 1), Piece{Kind: Bishop, Owner: Gote})
	b = b.With(NewSquare(7, 7), Piece{Kind: Rook, Owner: Sente})
	b = b.With(NewSquare(1, 7), Piece{Kind: Bishop, Owner: Sente})

	for x := 0; x < BoardSize; x++ {
		b = b.With(NewSquare(x, 2), Piece{Kind: Pawn, Owner: Gote})
		b = b.With(NewSquare(x, 6), Piece{Kind: Pawn, Owner: Sente})
	}

	return b
}

package shogi_test

import (
	"testing"

	"github.com/herohde/shogiserver/internal/shogi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialPosition(t *testing.T) {
	pos := shogi.Initial()

	assert.Equal(t, shogi.Sente, pos.Turn)
	assert.Equal(t, 40, pos.Board.PieceCount())

	sq, ok := pos.Board.King(shogi.Sente)
	require.True(t, ok)
	assert.Equal(t, shogi.NewSquare(4, 8), sq)

	sq, ok = pos.Board.King(shogi.Gote)
	require.True(t, ok)
	assert.Equal(t, shogi.NewSquare(4, 0), sq)
}

func TestPawnPushIsLegal(t *testing.T) {
	pos := shogi.Initial()

	move := shogi.NewBoardMove(shogi.NewSquare(2, 6), shogi.NewSquare(2, 5), false)
	assert.True(t, shogi.IsLegal(pos, shogi.Sente, move, true))

	next, captured, ok := shogi.Apply(pos, move)
	require.True(t, ok)
	assert.Equal(t, shogi.NoKind, captured)
	assert.Equal(t, shogi.Gote, next.Turn)
	assert.Equal(t, 40, next.Board.PieceCount())
}

func TestCannotMoveOpponentPiece(t *testing.T) {
	pos := shogi.Initial()
	move := shogi.NewBoardMove(shogi.NewSquare(2, 2), shogi.NewSquare(2, 3), false)
	assert.False(t, shogi.IsLegal(pos, shogi.Sente, move, true))
}

func TestSelfCheckIsIllegal(t *testing.T) {
	// Sente king alone on (4,8); Gote rook pins it by sitting on the same
	// file with nothing between. Moving a blocking piece away from the
	// file exposes the king and must be rejected.
	b := shogi.Board{}
	b = b.With(shogi.NewSquare(4, 8), shogi.Piece{Kind: shogi.King, Owner: shogi.Sente})
	b = b.With(shogi.NewSquare(4, 4), shogi.Piece{Kind: shogi.Gold, Owner: shogi.Sente})
	b = b.With(shogi.NewSquare(4, 0), shogi.Piece{Kind: shogi.Rook, Owner: shogi.Gote})
	b = b.With(shogi.NewSquare(0, 0), shogi.Piece{Kind: shogi.King, Owner: shogi.Gote})

	pos := shogi.Position{Board: b, Hands: [shogi.NumColors]shogi.Hand{shogi.NewHand(), shogi.NewHand()}, Turn: shogi.Sente}

	move := shogi.NewBoardMove(shogi.NewSquare(4, 4), shogi.NewSquare(3, 4), false)
	assert.False(t, shogi.IsLegal(pos, shogi.Sente, move, true))
}

func TestTwoPawnsRuleRejectsDrop(t *testing.T) {
	b := shogi.InitialBoard()
	// Remove Sente's file-2 pawn from the board and give Sente a pawn in
	// hand; a Sente pawn is then put back on file 2 below, so the drop
	// tests placing a second one onto the same file.
	b = b.Cleared(shogi.NewSquare(2, 6))
	hands := [shogi.NumColors]shogi.Hand{shogi.NewHand().Add(shogi.Pawn), shogi.NewHand()}
	pos := shogi.Position{Board: b, Hands: hands, Turn: shogi.Sente}

	// Put a pawn back on a different rank of the same file to set up the
	// two-pawn conflict.
	pos.Board = pos.Board.With(shogi.NewSquare(2, 5), shogi.Piece{Kind: shogi.Pawn, Owner: shogi.Sente})

	move := shogi.NewDrop(shogi.NewSquare(2, 3), shogi.Pawn)
	assert.False(t, shogi.IsLegal(pos, shogi.Sente, move, true))
}

func TestDropOnOccupiedSquareIsIllegal(t *testing.T) {
	pos := shogi.Initial()
	hands := pos.Hands
	hands[shogi.Sente] = hands[shogi.Sente].Add(shogi.Pawn)
	pos.Hands = hands

	move := shogi.NewDrop(shogi.NewSquare(0, 6), shogi.Pawn) // occupied by Sente's own pawn
	assert.False(t, shogi.IsLegal(pos, shogi.Sente, move, true))
}

func TestDropWithEmptyHandIsIllegal(t *testing.T) {
	pos := shogi.Initial()
	move := shogi.NewDrop(shogi.NewSquare(4, 4), shogi.Rook)
	assert.False(t, shogi.IsLegal(pos, shogi.Sente, move, true))
}

func TestLanceCannotDropOnLastRank(t *testing.T) {
	pos := shogi.Initial()
	hands := pos.Hands
	hands[shogi.Sente] = hands[shogi.Sente].Add(shogi.Lance)
	pos.Hands = hands
	// Empty a square on Sente's last rank (Gote's knight at (1,0)) so the
	// drop is rejected by the last-rank rule, not by an occupied square.
	pos.Board = pos.Board.Cleared(shogi.NewSquare(1, 0))

	move := shogi.NewDrop(shogi.NewSquare(1, 0), shogi.Lance) // Sente's last rank is y=0
	assert.False(t, shogi.IsLegal(pos, shogi.Sente, move, true))
}

func TestUchiFuZumeRejectsMatingPawnDrop(t *testing.T) {
	// Gote king cornered at (0,0), flanked so its only flight squares are
	// covered, Sente drops a pawn at (0,1) delivering an inescapable check.
	var b shogi.Board
	b = b.With(shogi.NewSquare(0, 0), shogi.Piece{Kind: shogi.King, Owner: shogi.Gote})
	b = b.With(shogi.NewSquare(1, 0), shogi.Piece{Kind: shogi.Gold, Owner: shogi.Sente})
	b = b.With(shogi.NewSquare(1, 1), shogi.Piece{Kind: shogi.Gold, Owner: shogi.Sente})
	b = b.With(shogi.NewSquare(8, 8), shogi.Piece{Kind: shogi.King, Owner: shogi.Sente})

	hands := [shogi.NumColors]shogi.Hand{shogi.NewHand().Add(shogi.Pawn), shogi.NewHand()}
	pos := shogi.Position{Board: b, Hands: hands, Turn: shogi.Sente}

	move := shogi.NewDrop(shogi.NewSquare(0, 1), shogi.Pawn)
	assert.False(t, shogi.IsLegal(pos, shogi.Sente, move, true))
}

func TestPawnDropGivingEscapableCheckIsLegal(t *testing.T) {
	// Same kings as above but with no Sente Golds: the Gote king can take
	// the pawn or step to (1,0) or (1,1), so the check is escapable and the
	// drop is legal.
	var b shogi.Board
	b = b.With(shogi.NewSquare(0, 0), shogi.Piece{Kind: shogi.King, Owner: shogi.Gote})
	b = b.With(shogi.NewSquare(8, 8), shogi.Piece{Kind: shogi.King, Owner: shogi.Sente})

	hands := [shogi.NumColors]shogi.Hand{shogi.NewHand().Add(shogi.Pawn), shogi.NewHand()}
	pos := shogi.Position{Board: b, Hands: hands, Turn: shogi.Sente}

	move := shogi.NewDrop(shogi.NewSquare(0, 1), shogi.Pawn)
	assert.True(t, shogi.IsLegal(pos, shogi.Sente, move, true))
}

func TestPromotionZoneAndOptionalPromotion(t *testing.T) {
	var b shogi.Board
	b = b.With(shogi.NewSquare(4, 8), shogi.Piece{Kind: shogi.King, Owner: shogi.Sente})
	b = b.With(shogi.NewSquare(0, 0), shogi.Piece{Kind: shogi.King, Owner: shogi.Gote})
	b = b.With(shogi.NewSquare(4, 3), shogi.Piece{Kind: shogi.Silver, Owner: shogi.Sente})

	pos := shogi.Position{Board: b, Hands: [shogi.NumColors]shogi.Hand{shogi.NewHand(), shogi.NewHand()}, Turn: shogi.Sente}

	promote := shogi.NewBoardMove(shogi.NewSquare(4, 3), shogi.NewSquare(4, 2), true)
	assert.True(t, shogi.IsLegal(pos, shogi.Sente, promote, true))

	stay := shogi.NewBoardMove(shogi.NewSquare(4, 3), shogi.NewSquare(4, 2), false)
	assert.True(t, shogi.IsLegal(pos, shogi.Sente, stay, true))
}

func TestFingerprintIsFunctionOfPositionOnly(t *testing.T) {
	pos := shogi.Initial()
	a := shogi.Fingerprint(pos)
	b := shogi.Fingerprint(pos)
	assert.Equal(t, a, b)

	hands := pos.Hands
	hands[shogi.Sente] = hands[shogi.Sente].Add(shogi.Pawn).Add(shogi.Silver)
	pos2 := pos
	pos2.Hands = hands
	assert.NotEqual(t, shogi.Fingerprint(pos), shogi.Fingerprint(pos2))

	// Insertion order into the hand must not affect the fingerprint.
	hands3 := pos.Hands
	hands3[shogi.Sente] = hands3[shogi.Sente].Add(shogi.Silver).Add(shogi.Pawn)
	pos3 := pos
	pos3.Hands = hands3
	assert.Equal(t, shogi.Fingerprint(pos2), shogi.Fingerprint(pos3))
}

func TestCaptureEntersCapturingSidesHandUnpromoted(t *testing.T) {
	var b shogi.Board
	b = b.With(shogi.NewSquare(4, 8), shogi.Piece{Kind: shogi.King, Owner: shogi.Sente})
	b = b.With(shogi.NewSquare(0, 0), shogi.Piece{Kind: shogi.King, Owner: shogi.Gote})
	b = b.With(shogi.NewSquare(4, 4), shogi.Piece{Kind: shogi.Rook, Owner: shogi.Sente})
	b = b.With(shogi.NewSquare(4, 1), shogi.Piece{Kind: shogi.Dragon, Owner: shogi.Gote})

	pos := shogi.Position{Board: b, Hands: [shogi.NumColors]shogi.Hand{shogi.NewHand(), shogi.NewHand()}, Turn: shogi.Sente}

	move := shogi.NewBoardMove(shogi.NewSquare(4, 4), shogi.NewSquare(4, 1), false)
	require.True(t, shogi.IsLegal(pos, shogi.Sente, move, true))

	next, captured, ok := shogi.Apply(pos, move)
	require.True(t, ok)
	assert.Equal(t, shogi.Rook, captured) // Dragon captured, demoted to Rook
	assert.Equal(t, 1, next.Hands[shogi.Sente].Count(shogi.Rook))
	assert.Equal(t, 3, next.Board.PieceCount())
}

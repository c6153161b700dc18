package terminal_test

import (
	"testing"

	"github.com/herohde/shogiserver/internal/shogi"
	"github.com/herohde/shogiserver/internal/terminal"
	"github.com/stretchr/testify/assert"
)

func TestDetectCheckmateTrueWhenNoEscape(t *testing.T) {
	var b shogi.Board
	b = b.With(shogi.NewSquare(0, 0), shogi.Piece{Kind: shogi.King, Owner: shogi.Gote})
	b = b.With(shogi.NewSquare(1, 0), shogi.Piece{Kind: shogi.Gold, Owner: shogi.Sente})
	b = b.With(shogi.NewSquare(1, 1), shogi.Piece{Kind: shogi.Gold, Owner: shogi.Sente})
	b = b.With(shogi.NewSquare(0, 1), shogi.Piece{Kind: shogi.Rook, Owner: shogi.Sente})
	b = b.With(shogi.NewSquare(8, 8), shogi.Piece{Kind: shogi.King, Owner: shogi.Sente})

	pos := shogi.Position{Board: b, Hands: [shogi.NumColors]shogi.Hand{shogi.NewHand(), shogi.NewHand()}, Turn: shogi.Gote}

	assert.True(t, terminal.DetectCheckmate(pos, shogi.Sente))
}

func TestDetectCheckmateFalseWhenEscapable(t *testing.T) {
	var b shogi.Board
	b = b.With(shogi.NewSquare(0, 0), shogi.Piece{Kind: shogi.King, Owner: shogi.Gote})
	b = b.With(shogi.NewSquare(0, 1), shogi.Piece{Kind: shogi.Rook, Owner: shogi.Sente})
	b = b.With(shogi.NewSquare(8, 8), shogi.Piece{Kind: shogi.King, Owner: shogi.Sente})

	pos := shogi.Position{Board: b, Hands: [shogi.NumColors]shogi.Hand{shogi.NewHand(), shogi.NewHand()}, Turn: shogi.Gote}

	assert.False(t, terminal.DetectCheckmate(pos, shogi.Sente))
}

func TestDetectRepetitionBelowFourIsNone(t *testing.T) {
	out := terminal.DetectRepetition(3, []int{-1, 1, 3}, nil)
	assert.Equal(t, terminal.None, out.Reason)
}

func TestDetectRepetitionSennichiteDraw(t *testing.T) {
	moves := []terminal.HistoryMove{
		{Side: shogi.Sente, IsCheck: false},
		{Side: shogi.Gote, IsCheck: false},
		{Side: shogi.Sente, IsCheck: false},
		{Side: shogi.Gote, IsCheck: false},
	}
	out := terminal.DetectRepetition(4, []int{-1, 1, 3}, moves)
	assert.Equal(t, terminal.Sennichite, out.Reason)
	assert.False(t, out.HasWinner)
}

func TestDetectRepetitionIllegalPerpetualCheckBySente(t *testing.T) {
	// Block between prev occurrence (index 1) and last (index 3): moves
	// [2,3] -- Sente at index 2, Gote at index 3. Sente's move checks;
	// Gote's does not have to for Sente's perpetual check to be judged
	// (only Sente's moves within the block matter).
	moves := []terminal.HistoryMove{
		{Side: shogi.Sente, IsCheck: false},
		{Side: shogi.Gote, IsCheck: false},
		{Side: shogi.Sente, IsCheck: true},
		{Side: shogi.Gote, IsCheck: false},
	}
	out := terminal.DetectRepetition(4, []int{-1, 1, 3}, moves)
	assert.Equal(t, terminal.IllegalSennichite, out.Reason)
	assert.Equal(t, shogi.Gote, out.Winner)
}

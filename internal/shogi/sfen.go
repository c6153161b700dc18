package shogi

import (
	"fmt"
	"strconv"
	"strings"
)

// Fingerprint returns the canonical SFEN-like string for pos. Two
// positions are game-equivalent iff their fingerprints match exactly.
// Grounded on pkg/board/fen/fen.go's Encode, but emits board+side+hands as
// a single string rather than split FEN fields since this fingerprint is
// never parsed back, only compared.
func Fingerprint(pos Position) string {
	var sb strings.Builder

	for y := 0; y < BoardSize; y++ {
		if y > 0 {
			sb.WriteByte('/')
		}
		empties := 0
		for x := 0; x < BoardSize; x++ {
			p, ok := pos.Board.At(NewSquare(x, y))
			if !ok {
				empties++
				continue
			}
			if empties > 0 {
				sb.WriteString(strconv.Itoa(empties))
				empties = 0
			}
			sb.WriteString(sfenPiece(p))
		}
		if empties > 0 {
			sb.WriteString(strconv.Itoa(empties))
		}
	}

	sb.WriteByte(' ')
	sb.WriteString(pos.Turn.String())
	sb.WriteByte(' ')

	for _, side := range []Color{Sente, Gote} {
		for _, k := range pos.Hands[side].Kinds() {
			fmt.Fprintf(&sb, "%v%v:%d", side.String()[:1], k, pos.Hands[side].Count(k))
		}
	}

	return sb.String()
}

func sfenPiece(p Piece) string {
	prefix := ""
	if p.Promoted() {
		prefix = "+"
	}
	letter := p.Kind.String()
	letter = strings.TrimPrefix(letter, "+")
	if p.Owner == Gote {
		letter = strings.ToLower(letter)
	}
	return prefix + letter
}

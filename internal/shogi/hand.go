package shogi

// Hand is a side's multiset of captured, unpromoted pieces available for
// drop. King never appears in a hand.
type Hand struct {
	counts map[Kind]int
}

// NewHand returns an empty hand.
func NewHand() Hand {
	return Hand{counts: map[Kind]int{}}
}

// Count returns the number of pieces of the given kind in the hand.
func (h Hand) Count(k Kind) int {
	return h.counts[k]
}

// Add increments the hand count for kind by one. Panics if k is King: the
// caller is expected to have already demoted a captured piece before this
// call, and King is never captured in legal play.
func (h Hand) Add(k Kind) Hand {
	if k == King {
		panic("shogi: King cannot enter a hand")
	}
	ret := h.clone()
	ret.counts[k]++
	return ret
}

// Remove decrements the hand count for kind by one. Returns ok=false if the
// hand has no piece of that kind.
func (h Hand) Remove(k Kind) (Hand, bool) {
	if h.counts[k] <= 0 {
		return h, false
	}
	ret := h.clone()
	ret.counts[k]--
	if ret.counts[k] == 0 {
		delete(ret.counts, k)
	}
	return ret, true
}

func (h Hand) clone() Hand {
	ret := Hand{counts: make(map[Kind]int, len(h.counts))}
	for k, v := range h.counts {
		ret.counts[k] = v
	}
	return ret
}

// Kinds returns the hand's occupied kinds in the fixed display order used
// for the SFEN-like fingerprint (Rook, Bishop, Gold, Silver, Knight, Lance,
// Pawn), omitting zero counts.
func (h Hand) Kinds() []Kind {
	var ret []Kind
	for _, k := range handKinds {
		if h.counts[k] > 0 {
			ret = append(ret, k)
		}
	}
	return ret
}

// Total returns the total number of pieces held.
func (h Hand) Total() int {
	total := 0
	for _, v := range h.counts {
		total += v
	}
	return total
}

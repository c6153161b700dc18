package shogi

// Kind represents a piece kind, unpromoted or promoted. 4 bits.
type Kind uint8

const (
	NoKind Kind = iota
	Pawn
	Lance
	Knight
	Silver
	Gold
	Bishop
	Rook
	King
	PromotedPawn
	PromotedLance
	PromotedKnight
	PromotedSilver
	Horse // promoted Bishop
	Dragon // promoted Rook
)

// handKinds are the kinds that can occupy a hand, in the conventional
// descending-value display order used for SFEN-like hand notation.
var handKinds = []Kind{Rook, Bishop, Gold, Silver, Knight, Lance, Pawn}

// promotes maps an unpromoted kind to its promoted form. Kinds with no
// entry (King, Gold) cannot promote.
var promotes = map[Kind]Kind{
	Pawn:   PromotedPawn,
	Lance:  PromotedLance,
	Knight: PromotedKnight,
	Silver: PromotedSilver,
	Bishop: Horse,
	Rook:   Dragon,
}

var demotes = map[Kind]Kind{
	PromotedPawn:   Pawn,
	PromotedLance:  Lance,
	PromotedKnight: Knight,
	PromotedSilver: Silver,
	Horse:          Bishop,
	Dragon:         Rook,
}

// IsValid returns true iff the kind is a real piece kind.
func (k Kind) IsValid() bool {
	return Pawn <= k && k <= Dragon
}

// IsPromoted returns true iff the kind is a promoted kind.
func (k Kind) IsPromoted() bool {
	_, ok := demotes[k]
	return ok
}

// CanPromote returns true iff the kind has a promoted form.
func (k Kind) CanPromote() bool {
	_, ok := promotes[k]
	return ok
}

// Promote returns the promoted form of the kind. Partial: ok is false for
// King, Gold and already-promoted kinds.
func (k Kind) Promote() (Kind, bool) {
	p, ok := promotes[k]
	return p, ok
}

// Demote returns the unpromoted form of the kind. Partial: ok is false for
// kinds that are not promoted.
func (k Kind) Demote() (Kind, bool) {
	d, ok := demotes[k]
	return d, ok
}

func (k Kind) String() string {
	switch k {
	case Pawn:
		return "P"
	case Lance:
		return "L"
	case Knight:
		return "N"
	case Silver:
		return "S"
	case Gold:
		return "G"
	case Bishop:
		return "B"
	case Rook:
		return "R"
	case King:
		return "K"
	case PromotedPawn:
		return "+P"
	case PromotedLance:
		return "+L"
	case PromotedKnight:
		return "+N"
	case PromotedSilver:
		return "+S"
	case Horse:
		return "+B"
	case Dragon:
		return "+R"
	default:
		return "?"
	}
}

// Piece is a piece kind owned by a side. Promoted() is a pure function of
// Kind, not a separately stored flag: storing it redundantly would only
// invite it to drift out of sync with Kind.
type Piece struct {
	Kind  Kind
	Owner Color
}

// Promoted reports whether the piece's kind is a promoted kind.
func (p Piece) Promoted() bool {
	return p.Kind.IsPromoted()
}

func (p Piece) String() string {
	if p.Owner == Gote {
		return "-" + p.Kind.String()
	}
	return p.Kind.String()
}

package domain

// Side is the side of a single order leg.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

// side string constants to avoid magic strings
const (
	sideStringBuy  = "buy"
	sideStringSell = "sell"
)

// String returns the string representation of the side.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return sideStringBuy
	case SideSell:
		return sideStringSell
	default:
		return "unknown"
	}
}

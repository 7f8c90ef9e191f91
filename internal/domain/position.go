package domain

import (
	"github.com/shopspring/decimal"
)

// Direction is the sign of an account position.
type Direction int

const (
	// DirectionNone means flat or unreadable.
	DirectionNone Direction = iota
	// DirectionLong represents a long position (reduced by selling).
	DirectionLong
	// DirectionShort represents a short position (reduced by buying).
	DirectionShort
)

// String returns the string representation.
func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return "none"
	}
}

// ReducingSide returns the side that shrinks a position in this direction.
// False when the direction is unknown.
func (d Direction) ReducingSide() (Side, bool) {
	switch d {
	case DirectionLong:
		return SideSell, true
	case DirectionShort:
		return SideBuy, true
	default:
		return 0, false
	}
}

// AccountReading is one observation returned by an account state source.
// Null fields mean the value could not be read.
type AccountReading struct {
	// Position absolute position size in BTC.
	Position  decimal.NullDecimal
	Direction Direction
	// Balance available balance in USD.
	Balance decimal.NullDecimal
}

// NewAccountReading builds a fully readable observation.
func NewAccountReading(position decimal.Decimal, direction Direction, balance decimal.Decimal) AccountReading {
	return AccountReading{
		Position:  Known(position.Abs()),
		Direction: direction,
		Balance:   Known(balance),
	}
}

// PositionString renders the absolute position, or "unknown" when unreadable.
func (r AccountReading) PositionString() string {
	if !r.Position.Valid {
		return "unknown"
	}
	return r.Position.Decimal.Abs().String()
}

// AccountSnapshot is the last known state of one account.
type AccountSnapshot struct {
	Position  decimal.Decimal
	Direction Direction
	Balance   decimal.NullDecimal
}

// Merge overwrites cached fields only with values that were actually read.
// Direction none is a valid reading for a flat account, so it is applied
// whenever the position itself was readable.
func (s AccountSnapshot) Merge(r AccountReading) AccountSnapshot {
	if r.Position.Valid {
		s.Position = r.Position.Decimal.Abs()
		s.Direction = r.Direction
	} else if r.Direction != DirectionNone {
		s.Direction = r.Direction
	}
	if r.Balance.Valid {
		s.Balance = r.Balance
	}
	return s
}

// Diff returns |posA - posB| for two absolute positions.
func Diff(a, b decimal.Decimal) decimal.Decimal {
	return a.Abs().Sub(b.Abs()).Abs()
}

// PositionsKnown reports whether both positions were read.
func PositionsKnown(r PerAccount[AccountReading]) bool {
	return r.A().Position.Valid && r.B().Position.Valid
}

// ReadingDiff returns the imbalance between two readings. It is null when
// either position is unreadable: a missing side is never treated as flat.
func ReadingDiff(r PerAccount[AccountReading]) decimal.NullDecimal {
	if !PositionsKnown(r) {
		return Unknown
	}
	return Known(Diff(r.A().Position.Decimal, r.B().Position.Decimal))
}

// SnapshotDiff returns the imbalance between two cached snapshots.
func SnapshotDiff(s PerAccount[AccountSnapshot]) decimal.Decimal {
	return Diff(s.A().Position, s.B().Position)
}

// MaxSingle returns the larger single-account position magnitude.
func MaxSingle(s PerAccount[AccountSnapshot]) decimal.Decimal {
	return decimal.Max(s.A().Position.Abs(), s.B().Position.Abs())
}

// Known wraps a decimal as a valid NullDecimal.
func Known(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// Unknown is the null reading.
var Unknown = decimal.NullDecimal{}

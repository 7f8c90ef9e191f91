package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LegResult is the outcome of one account's order in a paired trade.
type LegResult struct {
	Side      Side
	Attempted bool
	Succeeded bool
}

// PairedTradeEvent describes one fired cycle.
type PairedTradeEvent struct {
	Mode   TradeMode
	Spread decimal.Decimal
	Legs   PerAccount[LegResult]
	Time   time.Time
}

// String returns a human-readable string representation.
func (t *PairedTradeEvent) String() string {
	return fmt.Sprintf("%s spread: %s A: %s B: %s", t.Mode.String(), t.Spread.String(),
		legString(t.Legs.A()), legString(t.Legs.B()))
}

func legString(l LegResult) string {
	switch {
	case !l.Attempted:
		return "skip"
	case l.Succeeded:
		return l.Side.String() + " ok"
	default:
		return l.Side.String() + " failed"
	}
}

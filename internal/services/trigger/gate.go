package trigger

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

// GateResult says whether a paired trade may fire and, if not, why.
type GateResult int

const (
	GateFire GateResult = iota
	// GateFireUnreadableDepth fires although book sizes could not be read.
	GateFireUnreadableDepth
	GateNoSpread
	GateSpreadWide
	GateNoPrice
	GateThinBook
)

func (g GateResult) String() string {
	switch g {
	case GateFire:
		return "fire"
	case GateFireUnreadableDepth:
		return "fire_unreadable_depth"
	case GateNoSpread:
		return "no_spread"
	case GateSpreadWide:
		return "spread_wide"
	case GateNoPrice:
		return "no_price"
	case GateThinBook:
		return "thin_book"
	default:
		return "unknown"
	}
}

// Fires reports whether the gate is open.
func (g GateResult) Fires() bool {
	return g == GateFire || g == GateFireUnreadableDepth
}

// CheckSpread requires a readable, non-negative spread strictly below threshold.
func CheckSpread(spread decimal.NullDecimal, threshold decimal.Decimal) GateResult {
	if !spread.Valid || spread.Decimal.IsNegative() {
		return GateNoSpread
	}
	if spread.Decimal.GreaterThanOrEqual(threshold) {
		return GateSpreadWide
	}
	return GateFire
}

// CheckDepth requires both best-level sizes to reach minDepth. Unreadable sizes pass.
func CheckDepth(depth domain.BookDepth, minDepth decimal.Decimal) GateResult {
	if !depth.PricesKnown() {
		return GateNoPrice
	}
	if !depth.SizesKnown() {
		return GateFireUnreadableDepth
	}
	if depth.AskSize.Decimal.LessThan(minDepth) || depth.BidSize.Decimal.LessThan(minDepth) {
		return GateThinBook
	}
	return GateFire
}

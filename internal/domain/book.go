package domain

import "github.com/shopspring/decimal"

// BookDepth is the top of the order book with the quantity at each best level.
// A null size means the quantity was unreadable, which is not a failure.
type BookDepth struct {
	BestAsk decimal.NullDecimal
	BestBid decimal.NullDecimal
	AskSize decimal.NullDecimal
	BidSize decimal.NullDecimal
}

// PricesKnown reports whether both best prices were read.
func (b BookDepth) PricesKnown() bool {
	return b.BestAsk.Valid && b.BestBid.Valid
}

// SizesKnown reports whether both best-level quantities were read.
func (b BookDepth) SizesKnown() bool {
	return b.AskSize.Valid && b.BidSize.Valid
}

// LiquidityFor returns the quantity an order on the given side would consume:
// buys lift the ask, sells hit the bid.
func (b BookDepth) LiquidityFor(side Side) decimal.NullDecimal {
	if side == SideBuy {
		return b.AskSize
	}
	return b.BidSize
}

// SpreadPercent computes (ask-bid)/ask*100 rounded to 4 places, the precision
// the exchange UI displays.
func (b BookDepth) SpreadPercent() decimal.NullDecimal {
	if !b.PricesKnown() || !b.BestAsk.Decimal.IsPositive() {
		return Unknown
	}
	spread := b.BestAsk.Decimal.Sub(b.BestBid.Decimal).
		Div(b.BestAsk.Decimal).
		Mul(decimal.NewFromInt(100)).
		Round(4)
	return Known(spread)
}

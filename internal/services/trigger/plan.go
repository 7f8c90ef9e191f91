package trigger

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

// ErrUnknownMode is returned for a trade mode outside the known set.
var ErrUnknownMode = errors.New("unknown trade mode")

const (
	skipBelowEpsilon     = "position below epsilon"
	skipUnknownDirection = "direction unknown"
)

// Leg is one account's part of a paired trade.
type Leg struct {
	Side   domain.Side
	Skip   bool
	Reason string
}

// Plan is the per-account action set for one cycle.
type Plan struct {
	Mode domain.TradeMode
	Legs domain.PerAccount[Leg]
}

// Empty reports whether every leg is skipped.
func (p Plan) Empty() bool {
	for _, leg := range p.Legs {
		if !leg.Skip {
			return false
		}
	}
	return true
}

// PlanFor maps a mode and the cached account state to per-account actions.
func PlanFor(mode domain.TradeMode, snapshots domain.PerAccount[domain.AccountSnapshot], epsilon decimal.Decimal) (Plan, error) {
	plan := Plan{Mode: mode}

	switch mode {
	case domain.TradeModeOpenA:
		plan.Legs = domain.NewPerAccount(Leg{Side: domain.SideBuy}, Leg{Side: domain.SideSell})
	case domain.TradeModeOpenB:
		plan.Legs = domain.NewPerAccount(Leg{Side: domain.SideSell}, Leg{Side: domain.SideBuy})
	case domain.TradeModeClose:
		for _, id := range domain.AllAccounts {
			plan.Legs.Set(id, closeLeg(snapshots.Get(id), epsilon))
		}
	default:
		return Plan{}, errors.Wrapf(ErrUnknownMode, "mode %q", string(mode))
	}

	return plan, nil
}

func closeLeg(s domain.AccountSnapshot, epsilon decimal.Decimal) Leg {
	if s.Position.Abs().LessThan(epsilon) {
		return Leg{Skip: true, Reason: skipBelowEpsilon}
	}

	side, ok := s.Direction.ReducingSide()
	if !ok {
		return Leg{Skip: true, Reason: skipUnknownDirection}
	}

	return Leg{Side: side}
}

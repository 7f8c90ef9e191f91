// Package trigger decides whether to fire a paired trade and submits its legs.
package trigger

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

type orderPlacer interface {
	PlaceOrder(ctx context.Context, account domain.AccountID, side domain.Side) bool
}

// Outcome holds the result of each leg.
type Outcome struct {
	Legs domain.PerAccount[domain.LegResult]
}

// AnySucceeded reports whether at least one leg filled.
func (o Outcome) AnySucceeded() bool {
	for _, leg := range o.Legs {
		if leg.Succeeded {
			return true
		}
	}
	return false
}

// AllSucceeded reports whether every attempted leg filled.
func (o Outcome) AllSucceeded() bool {
	attempted := false
	for _, leg := range o.Legs {
		if !leg.Attempted {
			continue
		}
		attempted = true
		if !leg.Succeeded {
			return false
		}
	}
	return attempted
}

// Describe renders the outcome for logs.
func (o Outcome) Describe() string {
	parts := make([]string, 0, len(o.Legs))
	for _, id := range domain.AllAccounts {
		leg := o.Legs.Get(id)
		state := "skip"
		if leg.Attempted {
			state = leg.Side.String() + " failed"
			if leg.Succeeded {
				state = leg.Side.String() + " ok"
			}
		}
		parts = append(parts, fmt.Sprintf("%s: %s", id, state))
	}
	return strings.Join(parts, ", ")
}

// Trigger submits the legs of a plan.
type Trigger struct {
	l      *zap.Logger
	orders orderPlacer
}

// New creates a trigger.
func New(l *zap.Logger, orders orderPlacer) *Trigger {
	return &Trigger{l: l.With(zap.String("component", "sniper")), orders: orders}
}

// Execute submits every non-skipped leg concurrently. A failing or panicking
// leg never cancels or affects the other one. Each leg goroutine writes only
// its own result slot; the outcome is assembled after both return.
func (t *Trigger) Execute(ctx context.Context, plan Plan) Outcome {
	var (
		out    Outcome
		filled domain.PerAccount[bool]
		g      errgroup.Group
	)

	for _, id := range domain.AllAccounts {
		leg := plan.Legs.Get(id)
		if leg.Skip {
			t.l.Info("leg skipped", zap.Stringer("account", id), zap.String("reason", leg.Reason))
			continue
		}
		out.Legs.Set(id, domain.LegResult{Side: leg.Side, Attempted: true})
	}

	for _, id := range domain.AllAccounts {
		leg := out.Legs.Get(id)
		if !leg.Attempted {
			continue
		}

		g.Go(func() error {
			filled[id] = t.place(ctx, id, leg.Side)
			return nil
		})
	}

	_ = g.Wait()

	for _, id := range domain.AllAccounts {
		out.Legs[id].Succeeded = filled.Get(id)
	}

	return out
}

func (t *Trigger) place(ctx context.Context, id domain.AccountID, side domain.Side) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t.l.Error("leg panicked", zap.Stringer("account", id), zap.Any("panic", r))
			ok = false
		}
	}()

	ok = t.orders.PlaceOrder(ctx, id, side)
	if !ok {
		t.l.Warn("leg failed", zap.Stringer("account", id), zap.Stringer("side", side))
	}

	return ok
}

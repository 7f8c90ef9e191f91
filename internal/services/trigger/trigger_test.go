package trigger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

type MockOrderPlacer struct {
	mock.Mock
}

func (m *MockOrderPlacer) PlaceOrder(ctx context.Context, account domain.AccountID, side domain.Side) bool {
	args := m.Called(ctx, account, side)
	return args.Bool(0)
}

type panickingPlacer struct {
	panicFor domain.AccountID
}

func (p panickingPlacer) PlaceOrder(_ context.Context, account domain.AccountID, _ domain.Side) bool {
	if account == p.panicFor {
		panic("page closed")
	}
	return true
}

// barrierPlacer holds every leg until both legs are in flight.
type barrierPlacer struct {
	arrived sync.WaitGroup
	fills   map[domain.AccountID]bool
}

func newBarrierPlacer(a, b bool) *barrierPlacer {
	p := &barrierPlacer{fills: map[domain.AccountID]bool{domain.AccountA: a, domain.AccountB: b}}
	p.arrived.Add(2)
	return p
}

func (p *barrierPlacer) PlaceOrder(_ context.Context, account domain.AccountID, _ domain.Side) bool {
	p.arrived.Done()

	both := make(chan struct{})
	go func() {
		p.arrived.Wait()
		close(both)
	}()

	select {
	case <-both:
		return p.fills[account]
	case <-time.After(time.Second):
		return false
	}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func book(ask, bid, askSize, bidSize string) domain.BookDepth {
	nd := func(s string) decimal.NullDecimal {
		if s == "" {
			return domain.Unknown
		}
		return domain.Known(d(s))
	}
	return domain.BookDepth{BestAsk: nd(ask), BestBid: nd(bid), AskSize: nd(askSize), BidSize: nd(bidSize)}
}

func TestCheckSpreadThenDepth(t *testing.T) {
	threshold := d("0.001")
	minDepth := d("0.03")

	cases := []struct {
		name   string
		spread decimal.NullDecimal
		depth  domain.BookDepth
		want   GateResult
	}{
		{"fires with deep book", domain.Known(d("0.0005")), book("100000", "99999.5", "0.05", "0.05"), GateFire},
		{"thin bid blocks", domain.Known(d("0.0008")), book("100000", "99999.5", "0.05", "0.01"), GateThinBook},
		{"thin ask blocks", domain.Known(d("0.0008")), book("100000", "99999.5", "0.02", "0.05"), GateThinBook},
		{"zero spread fires", domain.Known(decimal.Zero), book("100000", "100000", "1", "1"), GateFire},
		{"spread at threshold", domain.Known(d("0.001")), book("100000", "99999", "1", "1"), GateSpreadWide},
		{"wide spread", domain.Known(d("0.01")), book("100000", "99990", "1", "1"), GateSpreadWide},
		{"unreadable spread", domain.Unknown, book("100000", "99999", "1", "1"), GateNoSpread},
		{"negative spread", domain.Known(d("-0.0001")), book("100000", "99999", "1", "1"), GateNoSpread},
		{"no prices", domain.Known(d("0.0005")), book("", "", "1", "1"), GateNoPrice},
		{"unreadable size passes", domain.Known(d("0.0005")), book("100000", "99999.5", "", "0.001"), GateFireUnreadableDepth},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CheckSpread(tc.spread, threshold)
			if got.Fires() {
				got = CheckDepth(tc.depth, minDepth)
			}
			assert.Equal(t, tc.want, got, got.String())
		})
	}
}

func snap(pos string, dir domain.Direction) domain.AccountSnapshot {
	return domain.AccountSnapshot{Position: d(pos), Direction: dir}
}

func TestPlanFor_ModeMapping(t *testing.T) {
	eps := d("0.01")
	long := snap("0.05", domain.DirectionLong)
	short := snap("0.05", domain.DirectionShort)
	dust := snap("0.002", domain.DirectionLong)
	flat := snap("0", domain.DirectionNone)
	unknown := snap("0.05", domain.DirectionNone)

	fire := func(s domain.Side) Leg { return Leg{Side: s} }
	skip := func(reason string) Leg { return Leg{Skip: true, Reason: reason} }

	cases := []struct {
		name  string
		mode  domain.TradeMode
		a, b  domain.AccountSnapshot
		wantA Leg
		wantB Leg
	}{
		{"open_a ignores positions", domain.TradeModeOpenA, short, long, fire(domain.SideBuy), fire(domain.SideSell)},
		{"open_a flat", domain.TradeModeOpenA, flat, flat, fire(domain.SideBuy), fire(domain.SideSell)},
		{"open_b", domain.TradeModeOpenB, long, short, fire(domain.SideSell), fire(domain.SideBuy)},
		{"close long/short", domain.TradeModeClose, long, short, fire(domain.SideSell), fire(domain.SideBuy)},
		{"close short/long", domain.TradeModeClose, short, long, fire(domain.SideBuy), fire(domain.SideSell)},
		{"close dust leg skipped", domain.TradeModeClose, dust, short, skip(skipBelowEpsilon), fire(domain.SideBuy)},
		{"close unknown direction skipped", domain.TradeModeClose, long, unknown, fire(domain.SideSell), skip(skipUnknownDirection)},
		{"close both flat", domain.TradeModeClose, flat, flat, skip(skipBelowEpsilon), skip(skipBelowEpsilon)},
		{"close at epsilon fires", domain.TradeModeClose, snap("0.01", domain.DirectionShort), flat, fire(domain.SideBuy), skip(skipBelowEpsilon)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := PlanFor(tc.mode, domain.NewPerAccount(tc.a, tc.b), eps)
			require.NoError(t, err)
			assert.Equal(t, tc.mode, plan.Mode)
			assert.Equal(t, tc.wantA, plan.Legs.A())
			assert.Equal(t, tc.wantB, plan.Legs.B())
		})
	}
}

func TestPlanFor_EmptyAndUnknownMode(t *testing.T) {
	eps := d("0.01")
	scenarioD := domain.NewPerAccount(snap("0.002", domain.DirectionLong), snap("0", domain.DirectionNone))

	plan, err := PlanFor(domain.TradeModeClose, scenarioD, eps)
	require.NoError(t, err)
	assert.True(t, plan.Empty())

	_, err = PlanFor(domain.TradeMode("hedge"), scenarioD, eps)
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestExecute_BothLegsSubmitted(t *testing.T) {
	placer := new(MockOrderPlacer)
	placer.On("PlaceOrder", mock.Anything, domain.AccountA, domain.SideBuy).Return(true).Once()
	placer.On("PlaceOrder", mock.Anything, domain.AccountB, domain.SideSell).Return(true).Once()

	plan, err := PlanFor(domain.TradeModeOpenA, domain.PerAccount[domain.AccountSnapshot]{}, d("0.01"))
	require.NoError(t, err)

	out := New(zap.NewNop(), placer).Execute(context.Background(), plan)

	placer.AssertExpectations(t)
	assert.True(t, out.AllSucceeded())
	assert.True(t, out.AnySucceeded())
	assert.Equal(t, "A: buy ok, B: sell ok", out.Describe())
}

func TestExecute_PartialSuccess(t *testing.T) {
	placer := new(MockOrderPlacer)
	placer.On("PlaceOrder", mock.Anything, domain.AccountA, domain.SideSell).Return(false).Once()
	placer.On("PlaceOrder", mock.Anything, domain.AccountB, domain.SideBuy).Return(true).Once()

	plan, err := PlanFor(domain.TradeModeOpenB, domain.PerAccount[domain.AccountSnapshot]{}, d("0.01"))
	require.NoError(t, err)

	out := New(zap.NewNop(), placer).Execute(context.Background(), plan)

	placer.AssertExpectations(t)
	assert.True(t, out.AnySucceeded())
	assert.False(t, out.AllSucceeded())
	assert.True(t, out.Legs.A().Attempted)
	assert.False(t, out.Legs.A().Succeeded)
}

func TestExecute_SkippedLegNotSubmitted(t *testing.T) {
	placer := new(MockOrderPlacer)
	placer.On("PlaceOrder", mock.Anything, domain.AccountB, domain.SideBuy).Return(true).Once()

	snaps := domain.NewPerAccount(snap("0", domain.DirectionNone), snap("0.03", domain.DirectionShort))
	plan, err := PlanFor(domain.TradeModeClose, snaps, d("0.01"))
	require.NoError(t, err)

	out := New(zap.NewNop(), placer).Execute(context.Background(), plan)

	placer.AssertExpectations(t)
	placer.AssertNotCalled(t, "PlaceOrder", mock.Anything, domain.AccountA, mock.Anything)
	assert.False(t, out.Legs.A().Attempted)
	assert.True(t, out.AllSucceeded())
	assert.Equal(t, "A: skip, B: buy ok", out.Describe())
}

func TestExecute_PanickingLegIsFailedLeg(t *testing.T) {
	plan, err := PlanFor(domain.TradeModeOpenA, domain.PerAccount[domain.AccountSnapshot]{}, d("0.01"))
	require.NoError(t, err)

	out := New(zap.NewNop(), panickingPlacer{panicFor: domain.AccountA}).Execute(context.Background(), plan)

	assert.False(t, out.Legs.A().Succeeded)
	assert.True(t, out.Legs.B().Succeeded)
	assert.True(t, out.AnySucceeded())
}

func TestExecute_LegsRunConcurrentlyAndKeepOwnResult(t *testing.T) {
	plan, err := PlanFor(domain.TradeModeOpenB, domain.PerAccount[domain.AccountSnapshot]{}, d("0.01"))
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		tr := New(zap.NewNop(), newBarrierPlacer(true, false))
		out := tr.Execute(context.Background(), plan)

		require.True(t, out.Legs.A().Attempted)
		require.True(t, out.Legs.B().Attempted)
		assert.Equal(t, domain.SideSell, out.Legs.A().Side)
		assert.Equal(t, domain.SideBuy, out.Legs.B().Side)
		assert.True(t, out.Legs.A().Succeeded)
		assert.False(t, out.Legs.B().Succeeded)
	}
}

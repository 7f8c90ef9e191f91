// Package session runs the spotter and sniper loop and decides when to stop.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
	"github.com/vadiminshakov/spreadsniper/internal/services/balancer"
	"github.com/vadiminshakov/spreadsniper/internal/services/ratelimit"
	"github.com/vadiminshakov/spreadsniper/internal/services/rotation"
	"github.com/vadiminshakov/spreadsniper/internal/services/trigger"
)

// MarketDataSource reads the monitored instrument's book. Failures are null values.
type MarketDataSource interface {
	Spread(ctx context.Context) decimal.NullDecimal
	BookTop(ctx context.Context) (ask, bid decimal.NullDecimal)
	BookDepth(ctx context.Context) domain.BookDepth
}

// AccountStateSource reads one account. Unreadable fields are null.
type AccountStateSource interface {
	Read(ctx context.Context, account domain.AccountID) domain.AccountReading
}

// OrderExecutor places one fixed-size market order and reports whether it went through.
type OrderExecutor interface {
	PlaceOrder(ctx context.Context, account domain.AccountID, side domain.Side) bool
}

// FeeSource reads the fee of the most recent fill. A null fee with empty text is a failed read.
type FeeSource interface {
	LatestFee(ctx context.Context) (fee decimal.NullDecimal, raw string)
}

// Journal records fired cycles and corrective orders.
type Journal interface {
	RecordTrade(ev domain.PairedTradeEvent) error
	RecordCorrection(account domain.AccountID, side domain.Side, diff decimal.Decimal, attempt int, succeeded bool, at time.Time) error
}

// Metrics receives loop observations.
type Metrics interface {
	SpreadObserved(spread decimal.Decimal)
	PositionsObserved(snapshots domain.PerAccount[domain.AccountSnapshot])
	LegsFinished(legs domain.PerAccount[domain.LegResult])
	CycleFinished(ok bool)
	CorrectionPlaced(account domain.AccountID, side domain.Side, ok bool)
	OrdersInWindow(n int)
	SessionExited(reason domain.ExitReason)
}

// Notifier delivers the exit report.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type flusher interface {
	Flush(ctx context.Context) error
}

// Deps are the collaborators the loop drives.
type Deps struct {
	Market   MarketDataSource
	Accounts AccountStateSource
	Orders   OrderExecutor
	Fees     FeeSource
	Limiter  *ratelimit.Limiter
	Counter  *ratelimit.TradeCounter

	// optional
	Journal  Journal
	Metrics  Metrics
	Writer   flusher
	Notifier Notifier
}

var zeroFeeTexts = map[string]bool{"$0": true, "$0.00": true, "0": true, "$0.000": true}

// Controller owns the loop and every termination decision.
type Controller struct {
	l    *zap.Logger
	cfg  Config
	deps Deps

	spotter  *balancer.Balancer
	sniper   *trigger.Trigger
	rotation *rotation.Machine

	now   func() time.Time
	state State
}

// New wires the spotter, sniper and rotation machine around deps.
func New(l *zap.Logger, cfg Config, deps Deps) (*Controller, error) {
	if deps.Market == nil || deps.Accounts == nil || deps.Orders == nil || deps.Fees == nil {
		return nil, errors.New("market, accounts, orders and fees are required")
	}
	if deps.Limiter == nil || deps.Counter == nil {
		return nil, errors.New("limiter and trade counter are required")
	}
	if !cfg.InitialMode.IsValid() {
		return nil, errors.Wrapf(ErrUnknownMode, "initial mode %q", string(cfg.InitialMode))
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}

	c := &Controller{
		l:    l.With(zap.String("group", cfg.Group)),
		cfg:  cfg,
		deps: deps,
		now:  time.Now,
	}

	c.spotter = balancer.New(c.l, cfg.Balancer, deps.Accounts, deps.Orders, deps.Market, c)
	c.sniper = trigger.New(c.l, deps.Orders)
	c.rotation = rotation.New(cfg.AutoRotation, cfg.InitialMode, cfg.RotationTarget, cfg.Balancer.Epsilon)

	return c, nil
}

// Mode returns the active trade mode.
func (c *Controller) Mode() domain.TradeMode {
	return c.rotation.Mode()
}

// Run drives the loop until a stop condition and returns the single exit record.
// The error is non-nil only for unexpected failures.
func (c *Controller) Run(ctx context.Context) (domain.ExitRecord, error) {
	c.state.StartedAt = c.now()

	c.l.Info("session started",
		zap.String("account_a", c.cfg.AccountNames.A()),
		zap.String("account_b", c.cfg.AccountNames.B()),
		zap.String("mode", c.rotation.Mode().Describe()),
		zap.Bool("auto_rotation", c.rotation.Auto()),
		zap.String("spread_threshold", c.cfg.SpreadThreshold.String()),
		zap.String("min_depth", c.cfg.MinDepth.String()))

	c.state.Merge(c.readBoth(ctx))
	c.deps.Metrics.PositionsObserved(c.state.Snapshots)

	for {
		err := c.step(ctx)
		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			return c.finish(ctx, ctx.Err())
		}

		if transient(err) {
			c.l.Warn("iteration skipped", zap.Error(err))
			continue
		}

		return c.finish(ctx, err)
	}
}

// step runs one iteration. A nil error means keep looping.
func (c *Controller) step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.deps.Limiter.SessionExhausted() {
		count, limit := c.deps.Limiter.Session()
		return errors.Wrapf(ErrSessionLimit, "%d/%d trades", count, limit)
	}

	// spotter has absolute priority over the sniper
	readings := c.readBoth(ctx)
	c.state.Merge(readings)
	if !domain.PositionsKnown(readings) {
		c.pause(ctx, c.cfg.NoPricePause)
		return errors.Wrap(ErrTransientRead, "position read")
	}

	verdict, second := c.spotter.Check(ctx, readings)
	if err := ctx.Err(); err != nil {
		return err
	}

	switch verdict {
	case balancer.VerdictReadFailed:
		c.pause(ctx, c.cfg.NoPricePause)
		return errors.Wrap(ErrTransientRead, "second position read")
	case balancer.VerdictFalseAlarm:
		c.state.Merge(second)
		c.state.SpotterActive = false
	case balancer.VerdictConfirmed:
		c.state.Merge(second)
		c.state.SpotterActive = true

		res := c.spotter.Correct(ctx)
		if res == balancer.ResultCancelled {
			return ctx.Err()
		}
		if !res.OK() {
			c.pause(ctx, c.cfg.SpotterRecheckPause)
			return errors.Wrapf(ErrImbalanceUnresolved, "correction %s", res)
		}

		c.state.SpotterActive = false
		c.l.Info("positions rebalanced, resuming sniper")
		c.pause(ctx, c.cfg.SpotterRecheckPause)

		return nil
	default:
		c.state.SpotterActive = false
	}
	c.deps.Metrics.PositionsObserved(c.state.Snapshots)

	if mode, changed := c.rotation.Step(domain.MaxSingle(c.state.Snapshots)); changed {
		c.l.Info("auto rotation switched mode",
			zap.String("mode", mode.Describe()),
			zap.String("a", c.state.Snapshots.A().Position.String()),
			zap.String("b", c.state.Snapshots.B().Position.String()))
	}

	now := c.now()
	if c.deps.Counter.ResetIfDue(now) {
		c.l.Info("daily trade count reset")
	}
	if c.deps.Counter.DailyCapReached(now, c.cfg.MaxTrades) {
		c.l.Info("daily trade cap reached, waiting for reset",
			zap.Int("max_trades", c.cfg.MaxTrades),
			zap.Time("next_reset", c.deps.Counter.NextReset()))
		c.pause(ctx, c.cfg.CapWaitPoll)
		return nil
	}

	spread := c.deps.Market.Spread(ctx)
	if !spread.Valid {
		c.state.ConsecutiveReadErrors++
		if c.state.ConsecutiveReadErrors >= c.cfg.MaxConsecutiveErrors {
			c.l.Warn("spread unreadable, check the market source",
				zap.Int("consecutive_failures", c.state.ConsecutiveReadErrors))
			c.state.ConsecutiveReadErrors = 0
		}
		c.pause(ctx, c.cfg.NoSpreadPause)
		return nil
	}
	c.state.ConsecutiveReadErrors = 0
	c.deps.Metrics.SpreadObserved(spread.Decimal)

	if gate := trigger.CheckSpread(spread, c.cfg.SpreadThreshold); !gate.Fires() {
		c.pause(ctx, c.cfg.PollInterval)
		return nil
	}

	switch gate := trigger.CheckDepth(c.deps.Market.BookDepth(ctx), c.cfg.MinDepth); gate {
	case trigger.GateNoPrice:
		c.l.Warn("book prices unreadable, skipping")
		c.pause(ctx, c.cfg.NoPricePause)
		return nil
	case trigger.GateThinBook:
		c.l.Warn("book depth below minimum, skipping", zap.String("min_depth", c.cfg.MinDepth.String()))
		c.pause(ctx, c.cfg.ThinBookPause)
		return nil
	case trigger.GateFireUnreadableDepth:
		c.l.Warn("book sizes unreadable, firing anyway")
	}

	status := c.deps.Limiter.Status(now)
	c.deps.Metrics.OrdersInWindow(status.Active)
	if !status.Safe {
		c.l.Info("24h order count above safety threshold, not blocking",
			zap.Int("active", status.Active),
			zap.Int("max", status.Max),
			zap.String("level", string(status.Level)))
	}

	// close is complete once neither account holds a closeable position,
	// even when the two residues together reach epsilon
	mode := c.rotation.Mode()
	if mode == domain.TradeModeClose && domain.MaxSingle(c.state.Snapshots).LessThan(c.cfg.Balancer.Epsilon) {
		next, terminate := c.rotation.OnCloseComplete()
		if terminate {
			return errors.Wrapf(ErrRotationComplete, "residual positions %s/%s",
				c.state.Snapshots.A().Position.String(), c.state.Snapshots.B().Position.String())
		}
		c.l.Info("positions cleared, switching to open mode", zap.String("mode", next.Describe()))
		return nil
	}

	plan, err := trigger.PlanFor(mode, c.state.Snapshots, c.cfg.Balancer.Epsilon)
	if err != nil {
		c.pause(ctx, c.cfg.IdlePause)
		return err
	}
	if plan.Empty() {
		c.l.Warn("nothing closeable, skipping",
			zap.String("a_direction", c.state.Snapshots.A().Direction.String()),
			zap.String("b_direction", c.state.Snapshots.B().Direction.String()))
		c.pause(ctx, c.cfg.IdlePause)
		return nil
	}

	return c.fire(ctx, plan, spread.Decimal)
}

// fire executes a plan and runs the post-trade checks.
func (c *Controller) fire(ctx context.Context, plan trigger.Plan, spread decimal.Decimal) error {
	c.l.Info("firing paired trade", zap.String("mode", plan.Mode.Describe()), zap.String("spread", spread.String()))

	outcome := c.sniper.Execute(ctx, plan)
	c.deps.Metrics.LegsFinished(outcome.Legs)
	c.deps.Metrics.CycleFinished(outcome.AnySucceeded())

	if !outcome.AnySucceeded() {
		c.state.FailedCycles++
		c.l.Warn("both legs failed", zap.String("legs", outcome.Describe()))
		return nil
	}

	if outcome.AllSucceeded() {
		c.l.Info("paired trade filled", zap.String("legs", outcome.Describe()))
	} else {
		c.l.Warn("paired trade partially filled", zap.String("legs", outcome.Describe()))
	}

	now := c.now()
	tradeCount := c.deps.Counter.Increment()
	c.deps.Limiter.RecordTrade(now)
	c.state.SuccessfulCycles++

	if c.deps.Journal != nil {
		ev := domain.PairedTradeEvent{Mode: plan.Mode, Spread: spread, Legs: outcome.Legs, Time: now}
		if err := c.deps.Journal.RecordTrade(ev); err != nil {
			c.l.Warn("failed to journal trade", zap.Error(err))
		}
	}

	if err := sleep(ctx, c.cfg.SettleDelay); err != nil {
		return err
	}

	after := c.readBoth(ctx)
	c.state.Merge(after)
	c.deps.Metrics.PositionsObserved(c.state.Snapshots)

	if diff := domain.ReadingDiff(after); diff.Valid && diff.Decimal.GreaterThan(c.cfg.Ceiling) {
		return errors.Wrapf(ErrImbalanceCeiling, "diff %s > %s", diff.Decimal.String(), c.cfg.Ceiling.String())
	}

	if low := c.lowBalances(after); len(low) > 0 {
		if plan.Mode != domain.TradeModeClose {
			return errors.Wrapf(ErrBalanceBelowFloor, "%s below %s USD", strings.Join(low, ", "), c.cfg.MinAvailableBalance.String())
		}
		c.l.Info("balance below floor, close mode continues", zap.Strings("accounts", low))
	}

	if !c.rotation.Auto() && c.cfg.ForceExitTrades > 0 && tradeCount >= c.cfg.ForceExitTrades {
		return errors.Wrapf(ErrManualCap, "%d trades", tradeCount)
	}

	session, limit := c.deps.Limiter.Session()
	if c.cfg.ProgressEvery > 0 && session%c.cfg.ProgressEvery == 0 {
		c.l.Info("session progress", zap.Int("trades", session), zap.Int("limit", limit))
	}
	if c.deps.Limiter.SessionExhausted() {
		return errors.Wrapf(ErrSessionLimit, "%d/%d trades", session, limit)
	}

	if c.cfg.FeeCheckInterval > 0 && session > 0 && session%c.cfg.FeeCheckInterval == 0 && session != c.state.LastFeeCheck {
		c.state.LastFeeCheck = session
		if err := c.checkFee(ctx); err != nil {
			return err
		}
	}

	c.pause(ctx, c.cfg.PollInterval)

	return nil
}

func (c *Controller) checkFee(ctx context.Context) error {
	fee, raw := c.deps.Fees.LatestFee(ctx)
	raw = strings.TrimSpace(raw)

	if raw == "" {
		if !fee.Valid || fee.Decimal.IsZero() {
			c.l.Info("fee check passed", zap.Bool("readable", fee.Valid))
			return nil
		}
		raw = fee.Decimal.String()
	} else if zeroFeeTexts[raw] {
		c.l.Info("fee check passed", zap.String("fee", raw))
		return nil
	}

	c.state.FeeValue = raw

	return errors.Wrapf(ErrFeeAnomaly, "fee %s", raw)
}

func (c *Controller) lowBalances(readings domain.PerAccount[domain.AccountReading]) []string {
	var low []string
	for _, id := range domain.AllAccounts {
		bal := readings.Get(id).Balance
		if bal.Valid && bal.Decimal.LessThan(c.cfg.MinAvailableBalance) {
			low = append(low, c.cfg.AccountNames.Get(id))
		}
	}
	return low
}

// CorrectionPlaced implements balancer.Observer.
func (c *Controller) CorrectionPlaced(account domain.AccountID, side domain.Side, diff decimal.Decimal, attempt int, ok bool) {
	c.state.Corrections++
	c.deps.Metrics.CorrectionPlaced(account, side, ok)

	if c.deps.Journal == nil {
		return
	}
	if err := c.deps.Journal.RecordCorrection(account, side, diff, attempt, ok, c.now()); err != nil {
		c.l.Warn("failed to journal correction", zap.Error(err))
	}
}

func (c *Controller) finish(ctx context.Context, cause error) (domain.ExitRecord, error) {
	reason := reasonFor(cause)

	count, limit := c.deps.Limiter.Session()
	now := c.now()
	status := c.deps.Limiter.Status(now)

	record := domain.ExitRecord{
		Reason:          reason,
		Message:         cause.Error(),
		FeeValue:        c.state.FeeValue,
		At:              now,
		StartedAt:       c.state.StartedAt,
		Group:           c.cfg.Group,
		AccountNames:    c.cfg.AccountNames,
		Mode:            c.rotation.Mode(),
		AutoRotation:    c.rotation.Auto(),
		Snapshots:       c.state.Snapshots,
		TradeCount:      c.state.SuccessfulCycles,
		SessionTrades:   count,
		SessionLimit:    limit,
		ActiveOrders24h: status.Active,
		MaxOrders24h:    status.Max,
		FailedCycles:    c.state.FailedCycles,
		Corrections:     c.state.Corrections,
	}

	if reason.Fatal() {
		c.l.Error("session stopped", zap.String("reason", string(reason)), zap.Error(cause))
	} else {
		c.l.Info("session stopped", zap.String("reason", string(reason)), zap.String("detail", cause.Error()))
	}

	for _, line := range ReportLines(record, c.cfg) {
		c.l.Info(line)
	}
	c.deps.Metrics.SessionExited(reason)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ShutdownTimeout)
	defer cancel()

	if c.deps.Writer != nil {
		if err := c.deps.Writer.Flush(shutdownCtx); err != nil {
			c.l.Warn("pending writes not flushed", zap.Error(err))
		}
	}

	if c.deps.Notifier != nil {
		if err := c.deps.Notifier.Notify(shutdownCtx, strings.Join(ReportLines(record, c.cfg), "\n")); err != nil {
			c.l.Warn("failed to send exit notification", zap.Error(err))
		}
	}

	if reason == domain.ExitError {
		return record, cause
	}

	return record, nil
}

func (c *Controller) readBoth(ctx context.Context) domain.PerAccount[domain.AccountReading] {
	var (
		out domain.PerAccount[domain.AccountReading]
		wg  sync.WaitGroup
	)

	for _, id := range domain.AllAccounts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out.Set(id, c.deps.Accounts.Read(ctx, id))
		}()
	}
	wg.Wait()

	return out
}

func (c *Controller) pause(ctx context.Context, d time.Duration) {
	_ = sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nopMetrics struct{}

func (nopMetrics) SpreadObserved(decimal.Decimal)                                {}
func (nopMetrics) PositionsObserved(domain.PerAccount[domain.AccountSnapshot])   {}
func (nopMetrics) LegsFinished(domain.PerAccount[domain.LegResult])              {}
func (nopMetrics) CycleFinished(bool)                                            {}
func (nopMetrics) CorrectionPlaced(domain.AccountID, domain.Side, bool)          {}
func (nopMetrics) OrdersInWindow(int)                                            {}
func (nopMetrics) SessionExited(domain.ExitReason)                               {}

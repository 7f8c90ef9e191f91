// Package balancer keeps the absolute positions of both accounts within epsilon of each other.
package balancer

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

// Verdict is the outcome of the debounced imbalance check.
type Verdict int

const (
	VerdictBalanced Verdict = iota
	VerdictFalseAlarm
	VerdictConfirmed
	VerdictReadFailed
)

func (v Verdict) String() string {
	switch v {
	case VerdictBalanced:
		return "balanced"
	case VerdictFalseAlarm:
		return "false_alarm"
	case VerdictConfirmed:
		return "confirmed"
	case VerdictReadFailed:
		return "read_failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of a correction run.
type Result int

const (
	ResultBalanced Result = iota
	ResultDust
	ResultUnknownDirection
	ResultExhausted
	ResultCancelled
)

func (r Result) String() string {
	switch r {
	case ResultBalanced:
		return "balanced"
	case ResultDust:
		return "dust"
	case ResultUnknownDirection:
		return "unknown_direction"
	case ResultExhausted:
		return "exhausted"
	case ResultCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// OK reports whether the accounts ended balanced.
func (r Result) OK() bool {
	return r == ResultBalanced || r == ResultDust
}

type accountReader interface {
	Read(ctx context.Context, account domain.AccountID) domain.AccountReading
}

type orderPlacer interface {
	PlaceOrder(ctx context.Context, account domain.AccountID, side domain.Side) bool
}

type depthReader interface {
	BookDepth(ctx context.Context) domain.BookDepth
}

// Observer is notified about every corrective order.
type Observer interface {
	CorrectionPlaced(account domain.AccountID, side domain.Side, diff decimal.Decimal, attempt int, ok bool)
}

// Config holds balancer thresholds and timings.
type Config struct {
	Epsilon       decimal.Decimal
	MinDepth      decimal.Decimal
	DebounceDelay time.Duration
	MaxAttempts   int
	MaxDuration   time.Duration
	RetryDelay    time.Duration
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		Epsilon:       decimal.RequireFromString("0.01"),
		MinDepth:      decimal.RequireFromString("0.015"),
		DebounceDelay: 2 * time.Second,
		MaxAttempts:   15,
		MaxDuration:   45 * time.Second,
		RetryDelay:    2 * time.Second,
	}
}

// Balancer detects and corrects position imbalance between the two accounts.
type Balancer struct {
	l        *zap.Logger
	cfg      Config
	accounts accountReader
	orders   orderPlacer
	book     depthReader
	observer Observer
	now      func() time.Time
}

// New creates a balancer. observer may be nil.
func New(l *zap.Logger, cfg Config, accounts accountReader, orders orderPlacer, book depthReader, observer Observer) *Balancer {
	return &Balancer{
		l:        l.With(zap.String("component", "spotter")),
		cfg:      cfg,
		accounts: accounts,
		orders:   orders,
		book:     book,
		observer: observer,
		now:      time.Now,
	}
}

// Check runs the two-stage debounce on a fresh reading. The second reading is
// returned so the caller can refresh its cache. Any unreadable position, in
// either reading, yields VerdictReadFailed.
func (b *Balancer) Check(ctx context.Context, first domain.PerAccount[domain.AccountReading]) (Verdict, domain.PerAccount[domain.AccountReading]) {
	diff := domain.ReadingDiff(first)
	if !diff.Valid {
		b.l.Warn("position unreadable, skipping check", zap.Strings("accounts", unreadable(first)))
		return VerdictReadFailed, first
	}
	if diff.Decimal.LessThanOrEqual(b.cfg.Epsilon) {
		return VerdictBalanced, first
	}

	b.l.Warn("suspected imbalance, waiting for state to settle",
		zap.String("a", first.A().Position.Decimal.String()),
		zap.String("b", first.B().Position.Decimal.String()),
		zap.String("diff", diff.Decimal.String()))

	if err := sleep(ctx, b.cfg.DebounceDelay); err != nil {
		return VerdictReadFailed, first
	}

	second := b.readBoth(ctx)
	diff = domain.ReadingDiff(second)
	if !diff.Valid {
		b.l.Error("second read failed, skipping iteration", zap.Strings("accounts", unreadable(second)))
		return VerdictReadFailed, second
	}

	if diff.Decimal.LessThanOrEqual(b.cfg.Epsilon) {
		b.l.Info("false alarm, positions balanced on second read", zap.String("diff", diff.Decimal.String()))
		return VerdictFalseAlarm, second
	}

	b.l.Error("imbalance confirmed",
		zap.String("a", second.A().Position.Decimal.String()),
		zap.String("b", second.B().Position.Decimal.String()),
		zap.String("diff", diff.Decimal.String()))

	return VerdictConfirmed, second
}

// Correct places single-unit orders on the over-exposed account until the
// positions are balanced or the attempt or time budget runs out.
func (b *Balancer) Correct(ctx context.Context) Result {
	start := b.now()

	for attempt := 0; attempt < b.cfg.MaxAttempts; attempt++ {
		if elapsed := b.now().Sub(start); elapsed > b.cfg.MaxDuration {
			b.l.Warn("correction timed out", zap.Duration("elapsed", elapsed))
			return ResultExhausted
		}
		if ctx.Err() != nil {
			return ResultCancelled
		}

		readings := b.readBoth(ctx)
		if !domain.PositionsKnown(readings) {
			b.l.Warn("position unreadable, no corrective order this attempt",
				zap.Int("attempt", attempt+1), zap.Strings("accounts", unreadable(readings)))
			if err := sleep(ctx, b.cfg.RetryDelay); err != nil {
				return ResultCancelled
			}
			continue
		}

		posA, posB := readings.A().Position.Decimal.Abs(), readings.B().Position.Decimal.Abs()
		diff := posA.Sub(posB)

		if diff.Abs().LessThan(b.cfg.Epsilon) {
			b.l.Info("positions balanced", zap.String("diff", diff.Abs().String()))
			return ResultBalanced
		}

		reduce := domain.AccountA
		if diff.IsNegative() {
			reduce = domain.AccountB
		}
		reading := readings.Get(reduce)

		if reading.Direction == domain.DirectionNone {
			b.l.Error("position direction unknown, cannot correct", zap.Stringer("account", reduce))
			return ResultUnknownDirection
		}

		if reading.Position.Decimal.Abs().LessThan(b.cfg.Epsilon) {
			b.l.Info("residual position below epsilon, ignoring",
				zap.Stringer("account", reduce), zap.String("position", reading.Position.Decimal.String()))
			return ResultDust
		}

		side, _ := reading.Direction.ReducingSide()

		b.l.Info("correcting imbalance",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", b.cfg.MaxAttempts),
			zap.Stringer("account", reduce),
			zap.Stringer("side", side),
			zap.String("diff", diff.Abs().String()))

		if !b.depthAllows(ctx, side) {
			if err := sleep(ctx, b.cfg.RetryDelay); err != nil {
				return ResultCancelled
			}
			continue
		}

		ok := b.orders.PlaceOrder(ctx, reduce, side)
		if ok {
			b.l.Info("corrective order placed", zap.Stringer("account", reduce), zap.Stringer("side", side))
		} else {
			b.l.Warn("corrective order failed", zap.Stringer("account", reduce), zap.Stringer("side", side))
		}
		if b.observer != nil {
			b.observer.CorrectionPlaced(reduce, side, diff.Abs(), attempt+1, ok)
		}

		if err := sleep(ctx, b.cfg.RetryDelay); err != nil {
			return ResultCancelled
		}
	}

	b.l.Warn("correction reached max attempts", zap.Int("max_attempts", b.cfg.MaxAttempts))

	return ResultExhausted
}

// depthAllows checks the book side the order would consume. Unreadable sizes pass.
func (b *Balancer) depthAllows(ctx context.Context, side domain.Side) bool {
	depth := b.book.BookDepth(ctx)
	if !depth.PricesKnown() {
		b.l.Warn("book prices unreadable, skipping attempt")
		return false
	}

	if !depth.SizesKnown() {
		b.l.Warn("book sizes unreadable, proceeding")
		return true
	}

	size := depth.LiquidityFor(side).Decimal
	if size.LessThan(b.cfg.MinDepth) {
		b.l.Warn("book depth too thin, deferring correction",
			zap.Stringer("side", side),
			zap.String("size", size.String()),
			zap.String("min_depth", b.cfg.MinDepth.String()))
		return false
	}

	return true
}

func (b *Balancer) readBoth(ctx context.Context) domain.PerAccount[domain.AccountReading] {
	var (
		out domain.PerAccount[domain.AccountReading]
		wg  sync.WaitGroup
	)

	for _, id := range domain.AllAccounts {
		wg.Add(1)
		go func(id domain.AccountID) {
			defer wg.Done()
			out.Set(id, b.accounts.Read(ctx, id))
		}(id)
	}
	wg.Wait()

	return out
}

func unreadable(r domain.PerAccount[domain.AccountReading]) []string {
	var out []string
	for _, id := range domain.AllAccounts {
		if !r.Get(id).Position.Valid {
			out = append(out, id.String())
		}
	}
	return out
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

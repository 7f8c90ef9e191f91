// Package paper simulates the two hedged accounts: positions, balances, fills and fees.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

type pricer interface {
	BookTop(ctx context.Context) (ask, bid decimal.NullDecimal)
}

type stateStore interface {
	Load(v any) (bool, error)
	Save(v any) error
}

// Config describes the simulated accounts.
type Config struct {
	InitialBalance decimal.Decimal
	Leverage       int
	Quantity       decimal.Decimal
	// FeeRate is charged on notional per fill. Zero matches the zero-fee venue.
	FeeRate decimal.Decimal
	// RejectEvery rejects every Nth order on each account. Zero disables it.
	RejectEvery int
}

// DefaultConfig returns 10000 USD per account, 20x leverage, 0.01 BTC fills and no fees.
func DefaultConfig() Config {
	return Config{
		InitialBalance: decimal.NewFromInt(10000),
		Leverage:       20,
		Quantity:       decimal.RequireFromString("0.01"),
		FeeRate:        decimal.Zero,
	}
}

// account is one simulated margin account. Position is signed: positive is long.
type account struct {
	Balance    decimal.Decimal `json:"balance"`
	Position   decimal.Decimal `json:"position"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	MarginUsed decimal.Decimal `json:"margin_used"`
}

func (a account) available() decimal.Decimal {
	return a.Balance.Sub(a.MarginUsed)
}

type persistedState struct {
	Accounts  [2]account      `json:"accounts"`
	LastFee   decimal.Decimal `json:"last_fee"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Exchange implements account reads, order placement and fee reads for both accounts.
type Exchange struct {
	mu       sync.Mutex
	logger   *zap.Logger
	cfg      Config
	pricer   pricer
	store    stateStore
	accounts domain.PerAccount[account]
	lastFee  decimal.Decimal
	placed   domain.PerAccount[int]
}

// NewExchange creates the exchange and restores persisted state when available.
func NewExchange(logger *zap.Logger, cfg Config, p pricer, store stateStore) (*Exchange, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if p == nil {
		return nil, errors.New("pricer is required for paper exchange")
	}
	if cfg.Leverage < 1 {
		cfg.Leverage = 1
	}
	if !cfg.Quantity.IsPositive() {
		return nil, fmt.Errorf("quantity must be positive, got %s", cfg.Quantity.String())
	}

	ex := &Exchange{
		logger: logger.With(zap.String("component", "paper")),
		cfg:    cfg,
		pricer: p,
		store:  store,
	}
	for _, id := range domain.AllAccounts {
		ex.accounts.Set(id, account{Balance: cfg.InitialBalance})
	}

	if err := ex.restoreState(); err != nil {
		logger.Warn("failed to restore paper state", zap.Error(err))
	}

	ex.logger.Info("paper exchange init",
		zap.String("balance_a", ex.accounts.A().Balance.String()),
		zap.String("balance_b", ex.accounts.B().Balance.String()),
		zap.String("position_a", ex.accounts.A().Position.String()),
		zap.String("position_b", ex.accounts.B().Position.String()),
		zap.Int("leverage", cfg.Leverage))

	return ex, nil
}

// Read returns the account's absolute position, direction and available balance.
func (e *Exchange) Read(_ context.Context, id domain.AccountID) domain.AccountReading {
	e.mu.Lock()
	defer e.mu.Unlock()

	acc := e.accounts.Get(id)
	dir := domain.DirectionNone
	switch {
	case acc.Position.IsPositive():
		dir = domain.DirectionLong
	case acc.Position.IsNegative():
		dir = domain.DirectionShort
	}

	return domain.NewAccountReading(acc.Position.Abs(), dir, acc.available())
}

// PlaceOrder fills one quantity unit at the touch: buys at the ask, sells at the bid.
func (e *Exchange) PlaceOrder(ctx context.Context, id domain.AccountID, side domain.Side) bool {
	ask, bid := e.pricer.BookTop(ctx)
	price := bid
	if side == domain.SideBuy {
		price = ask
	}
	if !price.Valid || !price.Decimal.IsPositive() {
		e.logger.Warn("no price for paper fill", zap.Stringer("account", id), zap.Stringer("side", side))
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.placed[id]++
	if e.cfg.RejectEvery > 0 && e.placed[id]%e.cfg.RejectEvery == 0 {
		e.logger.Warn("paper fill rejected", zap.Stringer("account", id), zap.Stringer("side", side))
		return false
	}

	acc := e.accounts.Get(id)
	if err := e.fill(&acc, side, e.cfg.Quantity, price.Decimal); err != nil {
		e.logger.Warn("paper fill failed", zap.Stringer("account", id), zap.Stringer("side", side), zap.Error(err))
		return false
	}
	e.accounts.Set(id, acc)
	e.persist()

	e.logger.Info("paper fill",
		zap.Stringer("account", id),
		zap.Stringer("side", side),
		zap.String("amount", e.cfg.Quantity.String()),
		zap.String("price", price.Decimal.String()),
		zap.String("position", acc.Position.String()))

	return true
}

// LatestFee returns the fee charged on the most recent fill and its display text.
func (e *Exchange) LatestFee(context.Context) (decimal.NullDecimal, string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return domain.Known(e.lastFee), "$" + e.lastFee.StringFixed(2)
}

func (e *Exchange) fill(acc *account, side domain.Side, qty, price decimal.Decimal) error {
	signed := qty
	if side == domain.SideSell {
		signed = qty.Neg()
	}

	fee := qty.Mul(price).Mul(e.cfg.FeeRate)

	if acc.Position.IsZero() || acc.Position.Sign() == signed.Sign() {
		if err := e.open(acc, signed, price); err != nil {
			return err
		}
	} else {
		rest := e.reduce(acc, signed, price)
		if !rest.IsZero() {
			if err := e.open(acc, rest, price); err != nil {
				return err
			}
		}
	}

	acc.Balance = acc.Balance.Sub(fee)
	e.lastFee = fee

	return nil
}

func (e *Exchange) open(acc *account, signed, price decimal.Decimal) error {
	required := signed.Abs().Mul(price).Div(decimal.NewFromInt(int64(e.cfg.Leverage)))
	if acc.available().LessThan(required) {
		return errors.Errorf("insufficient balance: have %s need %s (with %dx leverage)",
			acc.available().String(), required.String(), e.cfg.Leverage)
	}

	total := acc.Position.Add(signed)
	if acc.Position.IsZero() {
		acc.EntryPrice = price
	} else {
		existing := acc.EntryPrice.Mul(acc.Position.Abs())
		added := price.Mul(signed.Abs())
		acc.EntryPrice = existing.Add(added).Div(total.Abs())
	}

	acc.Position = total
	acc.MarginUsed = acc.MarginUsed.Add(required)

	return nil
}

// reduce closes up to |signed| of the opposite position and returns what is left to open.
func (e *Exchange) reduce(acc *account, signed, price decimal.Decimal) decimal.Decimal {
	closeQty := decimal.Min(signed.Abs(), acc.Position.Abs())
	long := acc.Position.IsPositive()

	pnl := price.Sub(acc.EntryPrice).Mul(closeQty)
	if !long {
		pnl = pnl.Neg()
	}

	fraction := closeQty.Div(acc.Position.Abs())
	released := acc.MarginUsed.Mul(fraction)
	acc.MarginUsed = acc.MarginUsed.Sub(released)
	acc.Balance = acc.Balance.Add(pnl)

	if long {
		acc.Position = acc.Position.Sub(closeQty)
	} else {
		acc.Position = acc.Position.Add(closeQty)
	}

	if acc.Position.IsZero() {
		acc.EntryPrice = decimal.Zero
		acc.MarginUsed = decimal.Zero
	}

	rest := signed.Abs().Sub(closeQty)
	if signed.IsNegative() {
		return rest.Neg()
	}
	return rest
}

func (e *Exchange) restoreState() error {
	if e.store == nil {
		return nil
	}

	var state persistedState
	found, err := e.store.Load(&state)
	if err != nil || !found {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.accounts = domain.PerAccount[account](state.Accounts)
	e.lastFee = state.LastFee

	return nil
}

func (e *Exchange) persist() {
	if e.store == nil {
		return
	}

	state := persistedState{
		Accounts:  [2]account(e.accounts),
		LastFee:   e.lastFee,
		UpdatedAt: time.Now().UTC(),
	}
	if err := e.store.Save(state); err != nil {
		e.logger.Warn("failed to persist paper state", zap.Error(err))
	}
}

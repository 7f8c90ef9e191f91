package internal

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/spreadsniper/config"
	"github.com/vadiminshakov/spreadsniper/internal/domain"
	"github.com/vadiminshakov/spreadsniper/internal/metrics"
	"github.com/vadiminshakov/spreadsniper/internal/notify"
	"github.com/vadiminshakov/spreadsniper/internal/services/paper"
	"github.com/vadiminshakov/spreadsniper/internal/services/ratelimit"
	"github.com/vadiminshakov/spreadsniper/internal/session"
	"github.com/vadiminshakov/spreadsniper/internal/setup"
	"github.com/vadiminshakov/spreadsniper/internal/storage/asyncwriter"
	"github.com/vadiminshakov/spreadsniper/internal/storage/journal"
	"github.com/vadiminshakov/spreadsniper/internal/storage/jsonfile"
	"github.com/vadiminshakov/spreadsniper/pkg/retrier"
)

var errAccountsUnreadable = errors.New("account positions unreadable")

// selectFunc asks the operator for rotation and mode. Replaced in tests.
type selectFunc func(group string, names domain.PerAccount[string], readings domain.PerAccount[domain.AccountReading], current setup.Selection) (setup.Selection, error)

// SniperBot is one account group: its collaborators, stores and session loop.
type SniperBot struct {
	Config config.Config

	l        *zap.Logger
	market   session.MarketDataSource
	exchange *paper.Exchange
	queue    *asyncwriter.Queue
	journal  *journal.Journal
	metrics  *metrics.Collectors
	notifier session.Notifier
	limiter  *ratelimit.Limiter
	counter  *ratelimit.TradeCounter
	retrier  *retrier.Retrier
	selector selectFunc

	controller *session.Controller
	closeOnce  sync.Once
}

// NewSniperBot wires stores, the paper exchange and the market source for conf.
// client is a *binance.Client, a *bybit.Client or nil for the paper feed.
func NewSniperBot(logger *zap.Logger, conf config.Config, client any) (*SniperBot, error) {
	group := conf.Session.Group
	l := logger.With(zap.String("group", group))

	market, err := newMarketSource(client, conf.Pair, l)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create market source")
	}

	queue := asyncwriter.New(l, 0)

	historyStore, err := jsonfile.NewStore(conf.StateDir, "trade_history", group)
	if err != nil {
		return nil, err
	}
	countStore, err := jsonfile.NewStore(conf.StateDir, "trade_count", group)
	if err != nil {
		return nil, err
	}
	paperStore, err := jsonfile.NewStore(filepath.Join(conf.WALDir, "paper"), group, "")
	if err != nil {
		return nil, err
	}

	l.Info("state files",
		zap.String("trade_history", historyStore.Path()),
		zap.String("trade_count", countStore.Path()),
		zap.String("paper", paperStore.Path()))

	exchange, err := paper.NewExchange(l, conf.Paper, market, paperStore)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create paper exchange")
	}

	j, err := journal.Open(l, filepath.Join(conf.WALDir, "journal", group))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open journal")
	}

	bot := &SniperBot{
		Config:   conf,
		l:        l,
		market:   market,
		exchange: exchange,
		queue:    queue,
		journal:  j,
		metrics:  metrics.New(group),
		limiter:  ratelimit.NewLimiter(l, historyStore, queue, conf.Limiter),
		counter:  ratelimit.NewTradeCounter(l, countStore, queue, time.Now()),
		retrier: retrier.New(
			retrier.WithMaxRetries(3),
			retrier.WithInitialInterval(500*time.Millisecond),
			retrier.WithOnRetry(func(attempt int, err error) {
				l.Warn("startup read failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
			}),
		),
		selector: setup.SelectMode,
	}

	tg, err := notify.FromEnv(l, group)
	if err != nil {
		l.Warn("telegram notifications disabled", zap.Error(err))
	}
	if tg != nil {
		bot.notifier = tg
	}

	return bot, nil
}

// Prepare reads both accounts, optionally asks the operator for the mode and
// builds the session controller.
func (b *SniperBot) Prepare(ctx context.Context) error {
	readings, err := retrier.DoWithData(b.retrier, ctx, func(ctx context.Context) (domain.PerAccount[domain.AccountReading], error) {
		if err := ctx.Err(); err != nil {
			return domain.PerAccount[domain.AccountReading]{}, retrier.Permanent(err)
		}
		r := domain.NewPerAccount(b.exchange.Read(ctx, domain.AccountA), b.exchange.Read(ctx, domain.AccountB))
		if !domain.PositionsKnown(r) {
			return r, errAccountsUnreadable
		}
		return r, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.l.Warn("starting with unknown positions", zap.Error(err))
	}

	diff := "unknown"
	if d := domain.ReadingDiff(readings); d.Valid {
		diff = d.Decimal.String()
	}
	b.l.Info("current positions",
		zap.String("a", readings.A().PositionString()),
		zap.Stringer("a_direction", readings.A().Direction),
		zap.String("b", readings.B().PositionString()),
		zap.Stringer("b_direction", readings.B().Direction),
		zap.String("diff", diff))

	cfg := b.Config.Session
	if b.Config.Interactive {
		sel, err := b.selector(cfg.Group, cfg.AccountNames, readings, setup.Selection{Auto: cfg.AutoRotation, Mode: cfg.InitialMode})
		if err != nil {
			return errors.Wrap(err, "mode selection")
		}
		cfg.AutoRotation, cfg.InitialMode = sel.Auto, sel.Mode
	}

	deps := session.Deps{
		Market:   b.market,
		Accounts: b.exchange,
		Orders:   b.exchange,
		Fees:     b.exchange,
		Limiter:  b.limiter,
		Counter:  b.counter,
		Journal:  b.journal,
		Metrics:  b.metrics,
		Writer:   b.queue,
		Notifier: b.notifier,
	}

	b.controller, err = session.New(b.l, cfg, deps)
	if err != nil {
		return errors.Wrap(err, "failed to create session")
	}
	b.Config.Session = cfg

	return nil
}

// Run drives the session until it stops and returns its exit record.
func (b *SniperBot) Run(ctx context.Context) (domain.ExitRecord, error) {
	if b.controller == nil {
		if err := b.Prepare(ctx); err != nil {
			return domain.ExitRecord{}, err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if addr := b.Config.MetricsAddr; addr != "" {
		go func() {
			if err := b.metrics.Serve(runCtx, b.l, addr); err != nil {
				b.l.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	b.l.Info("starting sniper",
		zap.String("pair", b.Config.Pair.String()),
		zap.String("platform", b.Config.Platform),
		zap.Duration("poll_interval", b.Config.Session.PollInterval))

	record, err := b.controller.Run(runCtx)

	b.l.Info("journal totals",
		zap.Int("paired_trades", len(b.journal.Trades())),
		zap.Int("corrections", len(b.journal.Corrections())))

	return record, err
}

// Close drains pending writes and closes the journal.
func (b *SniperBot) Close(ctx context.Context) error {
	var err error
	b.closeOnce.Do(func() {
		if qerr := b.queue.Close(ctx); qerr != nil {
			err = errors.Wrap(qerr, "drain write queue")
		}
		if jerr := b.journal.Close(); jerr != nil && err == nil {
			err = errors.Wrap(jerr, "close journal")
		}
	})
	return err
}

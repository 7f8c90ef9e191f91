// Package marketdata reads the top of the order book for the monitored instrument.
package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

const defaultCacheTTL = 25 * time.Millisecond

type fetcher interface {
	fetch(ctx context.Context) (domain.BookDepth, error)
	name() string
}

// Source turns exchange reads into null-on-failure values. Reads within the
// cache TTL reuse the last book so one iteration sees a consistent snapshot.
type Source struct {
	l       *zap.Logger
	fetcher fetcher
	ttl     time.Duration

	mu        sync.Mutex
	last      domain.BookDepth
	lastAt    time.Time
	lastValid bool
}

func newSource(l *zap.Logger, f fetcher) *Source {
	return &Source{
		l:       l.With(zap.String("market_source", f.name())),
		fetcher: f,
		ttl:     defaultCacheTTL,
	}
}

// Spread returns the displayed spread percentage or null.
func (s *Source) Spread(ctx context.Context) decimal.NullDecimal {
	return s.BookDepth(ctx).SpreadPercent()
}

// BookTop returns the best ask and bid prices, each possibly null.
func (s *Source) BookTop(ctx context.Context) (ask, bid decimal.NullDecimal) {
	depth := s.BookDepth(ctx)
	return depth.BestAsk, depth.BestBid
}

// BookDepth returns best prices and sizes. Failures yield an all-null book.
func (s *Source) BookDepth(ctx context.Context) domain.BookDepth {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastValid && time.Since(s.lastAt) < s.ttl {
		return s.last
	}

	depth, err := s.fetcher.fetch(ctx)
	if err != nil {
		s.l.Debug("failed to read order book", zap.Error(err))
		s.lastValid = false
		return domain.BookDepth{}
	}

	s.last, s.lastAt, s.lastValid = depth, time.Now(), true

	return depth
}

func parseLevel(price, size string) (decimal.NullDecimal, decimal.NullDecimal) {
	return parseNull(price), parseNull(size)
}

func parseNull(s string) decimal.NullDecimal {
	if s == "" {
		return domain.Unknown
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return domain.Unknown
	}
	return domain.Known(d)
}

package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

type failingFetcher struct{ calls int }

func (f *failingFetcher) name() string { return "failing" }
func (f *failingFetcher) fetch(context.Context) (domain.BookDepth, error) {
	f.calls++
	return domain.BookDepth{}, errors.New("connection reset")
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestScripted_SpreadAndTop(t *testing.T) {
	src := NewScripted(zap.NewNop(),
		domain.BookDepth{
			BestAsk: domain.Known(d("100000")), BestBid: domain.Known(d("99999.5")),
			AskSize: domain.Known(d("0.05")), BidSize: domain.Known(d("0.05")),
		},
		domain.BookDepth{},
	)
	ctx := context.Background()

	spread := src.Spread(ctx)
	assert.True(t, spread.Valid)
	assert.True(t, spread.Decimal.Equal(d("0.0005")), spread.Decimal.String())

	ask, bid := src.BookTop(ctx)
	assert.False(t, ask.Valid)
	assert.False(t, bid.Valid)
	assert.False(t, src.Spread(ctx).Valid)
}

func TestSource_FailureIsNull(t *testing.T) {
	f := &failingFetcher{}
	src := newSource(zap.NewNop(), f)

	depth := src.BookDepth(context.Background())
	assert.False(t, depth.PricesKnown())
	assert.False(t, src.Spread(context.Background()).Valid)
	assert.Equal(t, 2, f.calls, "failures are not cached")
}

func TestSource_CachesWithinTTL(t *testing.T) {
	frames := &scriptedFetcher{frames: []domain.BookDepth{
		{BestAsk: domain.Known(d("2")), BestBid: domain.Known(d("1"))},
		{BestAsk: domain.Known(d("4")), BestBid: domain.Known(d("3"))},
	}}
	src := newSource(zap.NewNop(), frames)
	src.ttl = time.Hour

	first := src.BookDepth(context.Background())
	second := src.BookDepth(context.Background())
	assert.Equal(t, first, second)
}

func TestParseNull(t *testing.T) {
	assert.False(t, parseNull("").Valid)
	assert.False(t, parseNull("abc").Valid)
	assert.False(t, parseNull("-1").Valid)
	assert.True(t, parseNull("0.031").Decimal.Equal(d("0.031")))
}

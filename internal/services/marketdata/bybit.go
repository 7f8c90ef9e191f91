package marketdata

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

type bybitFetcher struct {
	client *bybit.Client
	pair   domain.Pair
}

// NewBybit reads best bid/ask levels from the Bybit V5 tickers endpoint.
func NewBybit(l *zap.Logger, client *bybit.Client, pair domain.Pair) *Source {
	if client == nil {
		client = bybit.NewClient()
	}
	return newSource(l, &bybitFetcher{client: client, pair: pair})
}

func (f *bybitFetcher) name() string { return "bybit" }

func (f *bybitFetcher) fetch(_ context.Context) (domain.BookDepth, error) {
	symbol := bybit.SymbolV5(f.pair.Symbol())

	result, err := f.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &symbol,
	})
	if err != nil {
		return domain.BookDepth{}, errors.Wrapf(err, "failed to fetch tickers from Bybit for %s", f.pair.String())
	}
	if result.Result.Spot == nil || len(result.Result.Spot.List) == 0 {
		return domain.BookDepth{}, errors.Errorf("bybit returned empty tickers for %s", f.pair.String())
	}

	item := result.Result.Spot.List[0]

	var depth domain.BookDepth
	depth.BestAsk, depth.AskSize = parseLevel(item.Ask1Price, item.Ask1Size)
	depth.BestBid, depth.BidSize = parseLevel(item.Bid1Price, item.Bid1Size)

	return depth, nil
}

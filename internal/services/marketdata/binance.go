package marketdata

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

const binanceDepthLimit = 5

type binanceFetcher struct {
	client *binance.Client
	pair   domain.Pair
}

// NewBinance reads the public Binance order book. No API keys are needed.
func NewBinance(l *zap.Logger, client *binance.Client, pair domain.Pair) *Source {
	if client == nil {
		client = binance.NewClient("", "")
	}
	return newSource(l, &binanceFetcher{client: client, pair: pair})
}

func (f *binanceFetcher) name() string { return "binance" }

func (f *binanceFetcher) fetch(ctx context.Context) (domain.BookDepth, error) {
	res, err := f.client.NewDepthService().Symbol(f.pair.Symbol()).Limit(binanceDepthLimit).Do(ctx)
	if err != nil {
		return domain.BookDepth{}, errors.Wrapf(err, "failed to fetch depth from Binance for %s", f.pair.String())
	}
	if len(res.Asks) == 0 || len(res.Bids) == 0 {
		return domain.BookDepth{}, errors.Errorf("binance returned empty book for %s", f.pair.String())
	}

	var depth domain.BookDepth
	depth.BestAsk, depth.AskSize = parseLevel(res.Asks[0].Price, res.Asks[0].Quantity)
	depth.BestBid, depth.BidSize = parseLevel(res.Bids[0].Price, res.Bids[0].Quantity)

	return depth, nil
}

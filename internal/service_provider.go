package internal

import (
	"fmt"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
	"github.com/vadiminshakov/spreadsniper/internal/services/marketdata"
	"github.com/vadiminshakov/spreadsniper/internal/session"
)

// paperBook is the static top of book served when no exchange feed is configured.
var paperBook = domain.BookDepth{
	BestAsk: domain.Known(decimal.RequireFromString("100000.0")),
	BestBid: domain.Known(decimal.RequireFromString("99999.9")),
	AskSize: domain.Known(decimal.RequireFromString("1.5")),
	BidSize: domain.Known(decimal.RequireFromString("1.5")),
}

// newMarketSource dispatches on the client type. A nil client is the paper feed.
func newMarketSource(client any, pair domain.Pair, logger *zap.Logger) (session.MarketDataSource, error) {
	switch c := client.(type) {
	case *binance.Client:
		return marketdata.NewBinance(logger, c, pair), nil
	case *bybit.Client:
		return marketdata.NewBybit(logger, c, pair), nil
	case nil:
		return marketdata.NewScripted(logger, paperBook), nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}

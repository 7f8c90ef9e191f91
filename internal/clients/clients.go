// Package clients builds exchange SDK clients. Only public market data
// endpoints are used, so credentials are optional.
package clients

import (
	"github.com/adshao/go-binance/v2"
	"github.com/hirokisan/bybit/v2"
)

func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	return binance.NewClient(apiKey, apiSecret)
}

func NewBybitClient(apiKey, apiSecret string) *bybit.Client {
	client := bybit.NewClient()
	if apiKey != "" && apiSecret != "" {
		client = client.WithAuth(apiKey, apiSecret)
	}

	return client
}

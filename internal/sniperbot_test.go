package internal

import (
	"context"
	"testing"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/spreadsniper/config"
	"github.com/vadiminshakov/spreadsniper/internal/domain"
	"github.com/vadiminshakov/spreadsniper/internal/notify"
	"github.com/vadiminshakov/spreadsniper/internal/setup"
)

func testBotConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv(notify.EnvToken, "")

	dir := t.TempDir()
	conf := config.Default()
	conf.StateDir = dir
	conf.WALDir = dir
	conf.Limiter.SessionLimit = 2
	conf.Session.SettleDelay = 0
	conf.Session.PollInterval = 0
	return conf
}

func TestNewSniperBot(t *testing.T) {
	tests := []struct {
		name        string
		client      any
		expectError bool
	}{
		{name: "Paper feed", client: nil},
		{name: "Binance feed", client: &binance.Client{}},
		{name: "Bybit feed", client: &bybit.Client{}},
		{name: "Unsupported client", client: "kraken", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot, err := NewSniperBot(zap.NewNop(), testBotConfig(t), tt.client)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unsupported client type")
				return
			}

			require.NoError(t, err)
			require.NotNil(t, bot)
			require.NoError(t, bot.Close(t.Context()))
		})
	}
}

func TestSniperBot_RunPaperSession(t *testing.T) {
	conf := testBotConfig(t)

	bot, err := NewSniperBot(zap.NewNop(), conf, nil)
	require.NoError(t, err)

	rec, err := bot.Run(t.Context())
	require.NoError(t, err)
	require.NoError(t, bot.Close(t.Context()))

	assert.Equal(t, domain.ExitSessionLimit, rec.Reason)
	assert.Equal(t, 2, rec.TradeCount)
	assert.Equal(t, "shark1_2", rec.Group)
	assert.Equal(t, domain.DirectionLong, rec.Snapshots.A().Direction)
	assert.Equal(t, domain.DirectionShort, rec.Snapshots.B().Direction)

	// restart keeps paper positions and journal
	again, err := NewSniperBot(zap.NewNop(), conf, nil)
	require.NoError(t, err)
	defer again.Close(t.Context())

	assert.Len(t, again.journal.Trades(), 2)
	a := again.exchange.Read(t.Context(), domain.AccountA)
	assert.Equal(t, "0.02", a.Position.Decimal.String())
}

func TestSniperBot_InteractiveSelection(t *testing.T) {
	conf := testBotConfig(t)
	conf.Interactive = true

	bot, err := NewSniperBot(zap.NewNop(), conf, nil)
	require.NoError(t, err)
	defer bot.Close(t.Context())

	var shown domain.PerAccount[domain.AccountReading]
	bot.selector = func(_ string, _ domain.PerAccount[string], readings domain.PerAccount[domain.AccountReading], current setup.Selection) (setup.Selection, error) {
		shown = readings
		assert.True(t, current.Auto)
		return setup.Selection{Auto: false, Mode: domain.TradeModeClose}, nil
	}

	rec, err := bot.Run(t.Context())
	require.NoError(t, err)

	assert.True(t, shown.A().Position.Valid)
	assert.Equal(t, domain.ExitPositionCleared, rec.Reason)
	assert.False(t, rec.AutoRotation)
	assert.Zero(t, rec.TradeCount)
}

func TestSniperBot_PrepareStopsOnCancelledContext(t *testing.T) {
	bot, err := NewSniperBot(zap.NewNop(), testBotConfig(t), nil)
	require.NoError(t, err)
	defer func() { _ = bot.Close(context.Background()) }()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err = bot.Prepare(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, bot.controller)
}

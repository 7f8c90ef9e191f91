package session

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
	"github.com/vadiminshakov/spreadsniper/internal/services/balancer"
	"github.com/vadiminshakov/spreadsniper/internal/services/ratelimit"
	"github.com/vadiminshakov/spreadsniper/internal/services/rotation"
)

// Config holds loop thresholds and pacing.
type Config struct {
	Group        string
	AccountNames domain.PerAccount[string]

	// SpreadThreshold in percent; the sniper fires only below it.
	SpreadThreshold     decimal.Decimal
	MinDepth            decimal.Decimal
	Ceiling             decimal.Decimal
	MinAvailableBalance decimal.Decimal

	MaxTrades            int
	ForceExitTrades      int
	FeeCheckInterval     int
	MaxConsecutiveErrors int
	ProgressEvery        int

	SettleDelay         time.Duration
	PollInterval        time.Duration
	ThinBookPause       time.Duration
	NoPricePause        time.Duration
	NoSpreadPause       time.Duration
	CapWaitPoll         time.Duration
	IdlePause           time.Duration
	SpotterRecheckPause time.Duration
	ShutdownTimeout     time.Duration

	// Balancer also carries epsilon shared by the sniper and rotation.
	Balancer balancer.Config

	AutoRotation   bool
	InitialMode    domain.TradeMode
	RotationTarget decimal.Decimal
}

// DefaultConfig returns production values.
func DefaultConfig() Config {
	return Config{
		Group:                "default",
		AccountNames:         domain.NewPerAccount("A", "B"),
		SpreadThreshold:      decimal.RequireFromString("0.001"),
		MinDepth:             decimal.RequireFromString("0.03"),
		Ceiling:              decimal.RequireFromString("0.05"),
		MinAvailableBalance:  decimal.NewFromInt(300),
		MaxTrades:            ratelimit.DefaultMaxTrades,
		ForceExitTrades:      10,
		FeeCheckInterval:     100,
		MaxConsecutiveErrors: 10,
		ProgressEvery:        10,
		SettleDelay:          5 * time.Second,
		PollInterval:         50 * time.Millisecond,
		ThinBookPause:        200 * time.Millisecond,
		NoPricePause:         500 * time.Millisecond,
		NoSpreadPause:        100 * time.Millisecond,
		CapWaitPoll:          60 * time.Second,
		IdlePause:            2 * time.Second,
		SpotterRecheckPause:  500 * time.Millisecond,
		ShutdownTimeout:      5 * time.Second,
		Balancer:             balancer.DefaultConfig(),
		AutoRotation:         true,
		InitialMode:          domain.TradeModeOpenA,
		RotationTarget:       rotation.DefaultTarget,
	}
}

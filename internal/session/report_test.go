package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

func TestReportLines(t *testing.T) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := domain.ExitRecord{
		Reason:       domain.ExitPositionImbalance,
		Message:      "post-trade position diff above ceiling",
		At:           start.Add(time.Hour + 2*time.Minute + 3*time.Second),
		StartedAt:    start,
		Group:        "shark1",
		AccountNames: domain.NewPerAccount("alpha", "beta"),
		Mode:         domain.TradeModeOpenA,
		AutoRotation: true,
		Snapshots: domain.NewPerAccount(
			domain.AccountSnapshot{Position: d("0.08"), Direction: domain.DirectionLong, Balance: domain.Known(d("900"))},
			domain.AccountSnapshot{Position: d("0.02"), Direction: domain.DirectionLong, Balance: domain.Known(d("250"))},
		),
		TradeCount:    4,
		SessionTrades: 4,
		SessionLimit:  300,
	}

	lines := ReportLines(rec, testConfig())
	text := strings.Join(lines, "\n")

	assert.Contains(t, text, "group: shark1")
	assert.Contains(t, text, "duration: 1h 2m 3s")
	assert.Contains(t, text, "reason: position_imbalance (position imbalance above ceiling)")
	assert.Contains(t, text, "A (alpha): position 0.08 long, available 900.00 USD")
	assert.Contains(t, text, "warning: position diff 0.06")
	assert.Contains(t, text, "warning: both accounts are long")
	assert.Contains(t, text, "warning: beta available balance 250.00 below 300")
	assert.NotContains(t, text, "positions cleared")

	assert.Contains(t, RenderReport(rec, testConfig()), "session stopped")
}

func TestReportLines_ClearedPositions(t *testing.T) {
	rec := domain.ExitRecord{
		Reason:       domain.ExitPositionCleared,
		AccountNames: domain.NewPerAccount("alpha", "beta"),
		Mode:         domain.TradeModeClose,
	}

	text := strings.Join(ReportLines(rec, testConfig()), "\n")

	assert.Contains(t, text, "positions cleared")
	assert.Contains(t, text, "available unknown")
	assert.NotContains(t, text, "warning:")
}

func TestReasonFor(t *testing.T) {
	tests := []struct {
		err  error
		want domain.ExitReason
	}{
		{nil, domain.ExitUnknown},
		{context.Canceled, domain.ExitUserInterrupt},
		{ErrFeeAnomaly, domain.ExitFeeDetected},
		{ErrSessionLimit, domain.ExitSessionLimit},
		{ErrRotationComplete, domain.ExitPositionCleared},
		{ErrBalanceBelowFloor, domain.ExitBalanceLow},
		{ErrImbalanceCeiling, domain.ExitPositionImbalance},
		{ErrManualCap, domain.ExitManualLimit},
		{errors.New("boom"), domain.ExitError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, reasonFor(tt.err))
	}

	assert.True(t, transient(ErrTransientRead))
	assert.True(t, transient(ErrUnknownMode))
	assert.False(t, transient(ErrFeeAnomaly))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m 5s", formatDuration(2*time.Minute+5*time.Second))
	assert.Equal(t, "0s", formatDuration(0))
}

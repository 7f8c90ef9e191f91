package setup

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

func TestPositionsSummary(t *testing.T) {
	names := domain.NewPerAccount("Shark 1", "Shark 2")

	hedged := domain.NewPerAccount(
		domain.NewAccountReading(decimal.RequireFromString("0.03"), domain.DirectionLong, decimal.NewFromInt(1200)),
		domain.NewAccountReading(decimal.RequireFromString("0.03"), domain.DirectionShort, decimal.NewFromInt(800)),
	)
	out := PositionsSummary(names, hedged)
	assert.Contains(t, out, "0.03 long")
	assert.Contains(t, out, "1200.00 USD")
	assert.Contains(t, out, "diff 0")
	assert.NotContains(t, out, "both accounts")

	same := domain.NewPerAccount(
		domain.NewAccountReading(decimal.RequireFromString("0.02"), domain.DirectionLong, decimal.NewFromInt(1000)),
		domain.AccountReading{Position: domain.Known(decimal.RequireFromString("0.01")), Direction: domain.DirectionLong},
	)
	out = PositionsSummary(names, same)
	assert.Contains(t, out, "diff 0.01")
	assert.Contains(t, out, "both accounts are long")
	assert.Contains(t, out, "available unknown")

	unknown := PositionsSummary(names, domain.PerAccount[domain.AccountReading]{})
	assert.Contains(t, unknown, "position unknown")
	assert.NotContains(t, unknown, "diff")
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateDecimal("0"))
	assert.Error(t, validateDecimal("-1"))
	assert.Error(t, validateDecimal("x"))
	assert.Error(t, validatePositive("0"))
	assert.NoError(t, validatePositive("0.001"))
	assert.Error(t, notEmpty("name")("  "))
}

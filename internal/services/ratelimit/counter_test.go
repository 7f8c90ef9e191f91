package ratelimit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTradeCounter_StartsAtZeroAndKeepsResetTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reset := now.Add(-3 * time.Hour)

	st := &memStore{}
	data, err := json.Marshal(countRecord{Count: 500, ResetTime: reset})
	require.NoError(t, err)
	st.payload = data

	c := NewTradeCounter(zap.NewNop(), st, syncWriter{}, now)
	assert.Equal(t, 0, c.Count())
	assert.True(t, c.NextReset().Equal(reset.Add(24*time.Hour)))
}

func TestTradeCounter_ExpiredResetTimeRefreshed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := &memStore{}
	data, err := json.Marshal(countRecord{Count: 1, ResetTime: now.Add(-30 * time.Hour)})
	require.NoError(t, err)
	st.payload = data

	c := NewTradeCounter(zap.NewNop(), st, syncWriter{}, now)
	assert.True(t, c.NextReset().Equal(now.Add(24*time.Hour)))
}

func TestTradeCounter_DailyCapAndReset(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := &memStore{}
	c := NewTradeCounter(zap.NewNop(), st, syncWriter{}, now)

	assert.Equal(t, 1, c.Increment())
	assert.Equal(t, 2, c.Increment())
	assert.True(t, c.DailyCapReached(now, 2))
	assert.False(t, c.DailyCapReached(now, 3))
	assert.False(t, c.DailyCapReached(now, 0), "zero disables the cap")

	assert.False(t, c.ResetIfDue(now.Add(time.Hour)))
	later := now.Add(24 * time.Hour)
	assert.False(t, c.DailyCapReached(later, 2))
	assert.True(t, c.ResetIfDue(later))
	assert.Equal(t, 0, c.Count())

	var rec countRecord
	_, err := st.Load(&rec)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Count)
	assert.True(t, rec.ResetTime.Equal(later))
}

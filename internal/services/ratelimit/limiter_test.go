package ratelimit

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/spreadsniper/internal/storage/asyncwriter"
	"github.com/vadiminshakov/spreadsniper/internal/storage/jsonfile"
)

type memStore struct {
	mu      sync.Mutex
	payload []byte
	saves   int
	loadErr error
}

func (m *memStore) Load(v any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return false, m.loadErr
	}
	if m.payload == nil {
		return false, nil
	}
	return true, json.Unmarshal(m.payload, v)
}

func (m *memStore) Save(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.payload = data
	m.saves++
	return nil
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type syncWriter struct{}

func (syncWriter) Submit(_ string, fn asyncwriter.Job) { _ = fn() }

func seed(t *testing.T, st *memStore, stamps ...string) {
	t.Helper()
	data, err := json.Marshal(historyRecord{Timestamps: stamps})
	require.NoError(t, err)
	st.payload = data
}

func TestLimiter_RecordTradeDoesNotPrune(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := &memStore{}
	seed(t, st, now.Add(-48*time.Hour).Format(time.RFC3339Nano))

	lim := NewLimiter(zap.NewNop(), st, syncWriter{}, LimiterConfig{})
	lim.RecordTrade(now)

	var rec historyRecord
	_, err := st.Load(&rec)
	require.NoError(t, err)
	assert.Len(t, rec.Timestamps, 2, "expired entry stays until the next count")

	count, limit := lim.Session()
	assert.Equal(t, 1, count)
	assert.Equal(t, DefaultSessionLimit, limit)
}

func TestLimiter_ActiveCountPruningIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := &memStore{}
	seed(t, st,
		now.Add(-25*time.Hour).Format(time.RFC3339Nano),
		now.Add(-23*time.Hour).Format(time.RFC3339Nano),
		now.Add(-time.Minute).Format(time.RFC3339Nano),
	)

	lim := NewLimiter(zap.NewNop(), st, syncWriter{}, LimiterConfig{})

	assert.Equal(t, 2, lim.ActiveCount(now))
	assert.Equal(t, 1, st.saveCount(), "pruning rewrites the store once")

	assert.Equal(t, 2, lim.ActiveCount(now))
	assert.Equal(t, 1, st.saveCount(), "no rewrite when nothing expired")

	var rec historyRecord
	_, err := st.Load(&rec)
	require.NoError(t, err)
	assert.Len(t, rec.Timestamps, 2)
}

func TestLimiter_DropsUnparseableTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := &memStore{}
	seed(t, st, "garbage", now.Add(-time.Hour).Format(time.RFC3339Nano))

	lim := NewLimiter(zap.NewNop(), st, syncWriter{}, LimiterConfig{})
	assert.Equal(t, 1, lim.ActiveCount(now))
	assert.Equal(t, 1, st.saveCount())
	assert.Equal(t, 1, lim.ActiveCount(now))
	assert.Equal(t, 1, st.saveCount())
}

func TestLimiter_ReadFailureStartsEmpty(t *testing.T) {
	st := &memStore{loadErr: errors.New("permission denied")}
	lim := NewLimiter(zap.NewNop(), st, syncWriter{}, LimiterConfig{})
	assert.Equal(t, 0, lim.ActiveCount(time.Now()))
	assert.True(t, lim.Status(time.Now()).Safe)
}

func TestLimiter_StatusLevels(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lim := NewLimiter(zap.NewNop(), &memStore{}, syncWriter{},
		LimiterConfig{MaxOrders: 4, SafetyThreshold: 2, SessionLimit: 3})

	assert.Equal(t, LevelSafe, lim.Status(now).Level)

	lim.RecordTrade(now)
	lim.RecordTrade(now)
	st := lim.Status(now)
	assert.Equal(t, LevelNearLimit, st.Level)
	assert.False(t, st.Safe)
	assert.False(t, lim.SessionExhausted())

	lim.RecordTrade(now)
	assert.True(t, lim.SessionExhausted())

	lim.RecordTrade(now)
	assert.Equal(t, LevelExhausted, lim.Status(now).Level)
	assert.Equal(t, 4, lim.Status(now).Max)
}

func TestLimiter_PersistsThroughFileStoreAndQueue(t *testing.T) {
	now := time.Now().UTC()
	dir := t.TempDir()
	fs, err := jsonfile.NewStore(dir, "trade_history", "shark1_2")
	require.NoError(t, err)

	q := asyncwriter.New(zap.NewNop(), 8)
	lim := NewLimiter(zap.NewNop(), fs, q, LimiterConfig{})
	lim.RecordTrade(now)
	lim.RecordTrade(now)
	require.NoError(t, q.Close(t.Context()))

	reloaded := NewLimiter(zap.NewNop(), fs, syncWriter{}, LimiterConfig{})
	assert.Equal(t, 2, reloaded.ActiveCount(now))
	count, _ := reloaded.Session()
	assert.Equal(t, 0, count, "session count is per run")
}

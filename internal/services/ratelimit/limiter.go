// Package ratelimit tracks order counts over a trailing 24h window and per session.
package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/spreadsniper/internal/storage/asyncwriter"
)

const (
	DefaultWindow          = 24 * time.Hour
	DefaultMaxOrders       = 1000
	DefaultSafetyThreshold = 950
	DefaultSessionLimit    = 300
)

// Level classifies how close the trailing window is to its cap.
type Level string

const (
	LevelSafe      Level = "safe"
	LevelNearLimit Level = "near_limit"
	LevelExhausted Level = "exhausted"
)

type store interface {
	Load(v any) (bool, error)
	Save(v any) error
}

type submitter interface {
	Submit(name string, fn asyncwriter.Job)
}

type historyRecord struct {
	Timestamps  []string `json:"timestamps"`
	LastUpdated string   `json:"last_updated"`
}

// Status is a point-in-time view of the limiter.
type Status struct {
	Active int
	Max    int
	Safe   bool
	Level  Level
}

// LimiterConfig holds limiter thresholds. Zero values fall back to defaults.
type LimiterConfig struct {
	Window          time.Duration
	MaxOrders       int
	SafetyThreshold int
	SessionLimit    int
}

func (c LimiterConfig) withDefaults() LimiterConfig {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.MaxOrders <= 0 {
		c.MaxOrders = DefaultMaxOrders
	}
	if c.SafetyThreshold <= 0 {
		c.SafetyThreshold = DefaultSafetyThreshold
	}
	if c.SessionLimit <= 0 {
		c.SessionLimit = DefaultSessionLimit
	}
	return c
}

// Limiter counts executed orders. The in-memory list mirrors the persisted history;
// writes go through the async writer and pruning only happens when counting.
type Limiter struct {
	l      *zap.Logger
	store  store
	writer submitter
	cfg    LimiterConfig

	mu           sync.Mutex
	timestamps   []time.Time
	dirty        bool
	sessionCount int
}

// NewLimiter loads the persisted history. Read failures start from an empty history.
func NewLimiter(l *zap.Logger, st store, writer submitter, cfg LimiterConfig) *Limiter {
	lim := &Limiter{
		l:      l,
		store:  st,
		writer: writer,
		cfg:    cfg.withDefaults(),
	}

	var rec historyRecord
	found, err := st.Load(&rec)
	if err != nil {
		l.Warn("failed to read trade history, starting empty", zap.Error(err))
		return lim
	}
	if !found {
		return lim
	}

	for _, raw := range rec.Timestamps {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			lim.dirty = true
			continue
		}
		lim.timestamps = append(lim.timestamps, ts)
	}

	return lim
}

// RecordTrade appends a timestamp and bumps the session count.
func (lim *Limiter) RecordTrade(now time.Time) {
	lim.mu.Lock()
	defer lim.mu.Unlock()

	lim.timestamps = append(lim.timestamps, now)
	lim.sessionCount++
	lim.persistLocked(now)
}

// ActiveCount returns the number of orders in the trailing window and compacts
// the history when entries expired.
func (lim *Limiter) ActiveCount(now time.Time) int {
	lim.mu.Lock()
	defer lim.mu.Unlock()

	return lim.activeLocked(now)
}

// Status summarises the trailing window.
func (lim *Limiter) Status(now time.Time) Status {
	active := lim.ActiveCount(now)

	level := LevelSafe
	switch {
	case active >= lim.cfg.MaxOrders:
		level = LevelExhausted
	case active >= lim.cfg.SafetyThreshold:
		level = LevelNearLimit
	}

	return Status{
		Active: active,
		Max:    lim.cfg.MaxOrders,
		Safe:   active < lim.cfg.SafetyThreshold,
		Level:  level,
	}
}

// SessionExhausted reports whether this run reached its session cap.
func (lim *Limiter) SessionExhausted() bool {
	lim.mu.Lock()
	defer lim.mu.Unlock()

	return lim.sessionCount >= lim.cfg.SessionLimit
}

// Session returns the session count and its limit.
func (lim *Limiter) Session() (count, limit int) {
	lim.mu.Lock()
	defer lim.mu.Unlock()

	return lim.sessionCount, lim.cfg.SessionLimit
}

func (lim *Limiter) activeLocked(now time.Time) int {
	active := make([]time.Time, 0, len(lim.timestamps))
	for _, ts := range lim.timestamps {
		if now.Sub(ts) < lim.cfg.Window {
			active = append(active, ts)
		}
	}

	if len(active) != len(lim.timestamps) || lim.dirty {
		lim.timestamps = active
		lim.persistLocked(now)
	}

	return len(lim.timestamps)
}

func (lim *Limiter) persistLocked(now time.Time) {
	lim.dirty = false

	rec := historyRecord{
		Timestamps:  make([]string, 0, len(lim.timestamps)),
		LastUpdated: now.UTC().Format(time.RFC3339),
	}
	for _, ts := range lim.timestamps {
		rec.Timestamps = append(rec.Timestamps, ts.UTC().Format(time.RFC3339Nano))
	}

	st, l := lim.store, lim.l
	lim.writer.Submit("trade_history", func() error {
		if err := st.Save(rec); err != nil {
			l.Warn("failed to persist trade history", zap.Error(err))
		}
		return nil
	})
}

package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxTrades is the daily cap of successful cycles.
const DefaultMaxTrades = 1000

type countRecord struct {
	Count     int       `json:"count"`
	ResetTime time.Time `json:"reset_time"`
}

// TradeCounter counts successful cycles against a daily cap with a 24h reset.
type TradeCounter struct {
	l      *zap.Logger
	store  store
	writer submitter
	window time.Duration

	mu        sync.Mutex
	count     int
	resetTime time.Time
}

// NewTradeCounter starts from zero and keeps the persisted reset time unless it expired.
func NewTradeCounter(l *zap.Logger, st store, writer submitter, now time.Time) *TradeCounter {
	c := &TradeCounter{
		l:      l,
		store:  st,
		writer: writer,
		window: DefaultWindow,
	}

	var rec countRecord
	if _, err := st.Load(&rec); err != nil {
		l.Warn("failed to read trade count, starting fresh", zap.Error(err))
	}

	c.resetTime = rec.ResetTime
	if c.resetTime.IsZero() || now.Sub(c.resetTime) >= c.window {
		c.resetTime = now
	}

	c.mu.Lock()
	c.persistLocked()
	c.mu.Unlock()

	return c
}

// Increment adds one successful cycle and returns the new count.
func (c *TradeCounter) Increment() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.count++
	c.persistLocked()

	return c.count
}

// Count returns the current count.
func (c *TradeCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.count
}

// DailyCapReached reports whether maxTrades is reached inside the current 24h window.
func (c *TradeCounter) DailyCapReached(now time.Time, maxTrades int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return maxTrades > 0 && c.count >= maxTrades && now.Sub(c.resetTime) < c.window
}

// ResetIfDue zeroes the count once the window elapsed.
func (c *TradeCounter) ResetIfDue(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.resetTime) < c.window {
		return false
	}

	c.count = 0
	c.resetTime = now
	c.persistLocked()

	return true
}

// NextReset returns when the current window ends.
func (c *TradeCounter) NextReset() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.resetTime.Add(c.window)
}

func (c *TradeCounter) persistLocked() {
	rec := countRecord{Count: c.count, ResetTime: c.resetTime.UTC()}
	st, l := c.store, c.l
	c.writer.Submit("trade_count", func() error {
		if err := st.Save(rec); err != nil {
			l.Warn("failed to persist trade count", zap.Error(err))
		}
		return nil
	})
}

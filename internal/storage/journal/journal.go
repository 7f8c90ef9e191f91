// Package journal keeps an append-only log of paired trades and balancer corrections.
package journal

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

const (
	pairedTradeKeyPrefix = "paired_trade_"
	correctionKeyPrefix  = "correction_"

	walSegmentThreshold = 1000
	walMaxSegments      = 100
	walDirPermissions   = 0o755
)

// LegRecord is the persisted form of one leg.
type LegRecord struct {
	Account   string `json:"account"`
	Side      string `json:"side,omitempty"`
	Attempted bool   `json:"attempted"`
	Succeeded bool   `json:"succeeded"`
}

// PairedTradeRecord is one fired cycle.
type PairedTradeRecord struct {
	ID     string          `json:"id"`
	Mode   string          `json:"mode"`
	Spread decimal.Decimal `json:"spread"`
	Legs   []LegRecord     `json:"legs"`
	Time   time.Time       `json:"time"`
}

// CorrectionRecord is one single-account order placed by the balancer.
type CorrectionRecord struct {
	ID        string          `json:"id"`
	Account   string          `json:"account"`
	Side      string          `json:"side"`
	Diff      decimal.Decimal `json:"diff"`
	Attempt   int             `json:"attempt"`
	Succeeded bool            `json:"succeeded"`
	Time      time.Time       `json:"time"`
}

// Journal writes records to a gowal log.
type Journal struct {
	l   *zap.Logger
	mu  sync.Mutex
	wal *gowal.Wal

	trades      []*PairedTradeRecord
	corrections []*CorrectionRecord
}

// Open opens (or creates) the journal in dir and replays existing records.
func Open(l *zap.Logger, dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, walDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure journal directory %s", dir)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "log_",
		SegmentThreshold: walSegmentThreshold,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open journal WAL")
	}

	j := &Journal{l: l, wal: wal}

	for msg := range wal.Iterator() {
		switch {
		case strings.HasPrefix(msg.Key, pairedTradeKeyPrefix):
			var rec PairedTradeRecord
			if err := json.Unmarshal(msg.Value, &rec); err != nil {
				l.Error("failed to unmarshal paired trade", zap.Error(err), zap.String("key", msg.Key))
				continue
			}
			j.trades = append(j.trades, &rec)
		case strings.HasPrefix(msg.Key, correctionKeyPrefix):
			var rec CorrectionRecord
			if err := json.Unmarshal(msg.Value, &rec); err != nil {
				l.Error("failed to unmarshal correction", zap.Error(err), zap.String("key", msg.Key))
				continue
			}
			j.corrections = append(j.corrections, &rec)
		}
	}

	return j, nil
}

// RecordTrade appends a paired trade.
func (j *Journal) RecordTrade(ev domain.PairedTradeEvent) error {
	rec := &PairedTradeRecord{
		ID:     uuid.New().String(),
		Mode:   ev.Mode.String(),
		Spread: ev.Spread,
		Time:   ev.Time,
	}

	for _, id := range domain.AllAccounts {
		leg := ev.Legs.Get(id)
		lr := LegRecord{Account: id.String(), Attempted: leg.Attempted, Succeeded: leg.Succeeded}
		if leg.Attempted {
			lr.Side = leg.Side.String()
		}
		rec.Legs = append(rec.Legs, lr)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.persist(pairedTradeKeyPrefix+rec.ID, rec); err != nil {
		return err
	}
	j.trades = append(j.trades, rec)

	return nil
}

// RecordCorrection appends a balancer order.
func (j *Journal) RecordCorrection(account domain.AccountID, side domain.Side, diff decimal.Decimal,
	attempt int, succeeded bool, at time.Time) error {
	rec := &CorrectionRecord{
		ID:        uuid.New().String(),
		Account:   account.String(),
		Side:      side.String(),
		Diff:      diff,
		Attempt:   attempt,
		Succeeded: succeeded,
		Time:      at,
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.persist(correctionKeyPrefix+rec.ID, rec); err != nil {
		return err
	}
	j.corrections = append(j.corrections, rec)

	return nil
}

// Trades returns all paired trades, replayed ones included.
func (j *Journal) Trades() []*PairedTradeRecord {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]*PairedTradeRecord, len(j.trades))
	copy(out, j.trades)

	return out
}

// Corrections returns all balancer orders, replayed ones included.
func (j *Journal) Corrections() []*CorrectionRecord {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]*CorrectionRecord, len(j.corrections))
	copy(out, j.corrections)

	return out
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Close()
}

func (j *Journal) persist(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal journal record")
	}

	nextIndex := j.wal.CurrentIndex() + 1
	if err := j.wal.Write(nextIndex, key, data); err != nil {
		return errors.Wrapf(err, "failed to write journal record %s", key)
	}

	return nil
}

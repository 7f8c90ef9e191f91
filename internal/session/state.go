package session

import (
	"time"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

// State is the loop's mutable view of the world. Only the loop goroutine writes it.
type State struct {
	StartedAt time.Time
	Snapshots domain.PerAccount[domain.AccountSnapshot]

	SpotterActive         bool
	ConsecutiveReadErrors int
	LastFeeCheck          int
	FeeValue              string

	SuccessfulCycles int
	FailedCycles     int
	Corrections      int
}

// Merge folds fresh readings into the cached snapshots.
func (s *State) Merge(readings domain.PerAccount[domain.AccountReading]) {
	for _, id := range domain.AllAccounts {
		s.Snapshots.Set(id, s.Snapshots.Get(id).Merge(readings.Get(id)))
	}
}

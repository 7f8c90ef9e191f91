package marketdata

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

var errScriptExhausted = errors.New("no scripted book")

type scriptedFetcher struct {
	mu     sync.Mutex
	frames []domain.BookDepth
	pos    int
}

// NewScripted replays the given books in order and then keeps returning the last one.
// An all-null frame simulates a failed read.
func NewScripted(l *zap.Logger, frames ...domain.BookDepth) *Source {
	s := newSource(l, &scriptedFetcher{frames: frames})
	s.ttl = 0
	return s
}

func (f *scriptedFetcher) name() string { return "scripted" }

func (f *scriptedFetcher) fetch(context.Context) (domain.BookDepth, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.frames) == 0 {
		return domain.BookDepth{}, errScriptExhausted
	}

	frame := f.frames[f.pos]
	if f.pos < len(f.frames)-1 {
		f.pos++
	}

	return frame, nil
}

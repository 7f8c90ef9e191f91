// Package rotation alternates open and close phases in auto mode: open_a, close, open_b, close, ...
package rotation

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

var (
	DefaultTarget  = decimal.RequireFromString("0.05")
	DefaultEpsilon = decimal.RequireFromString("0.01")
)

// Machine holds the active trade mode.
type Machine struct {
	mu       sync.Mutex
	auto     bool
	mode     domain.TradeMode
	lastOpen domain.TradeMode
	target   decimal.Decimal
	epsilon  decimal.Decimal
}

// New creates a machine starting in initial. A close start remembers open_a
// so the first open phase after it is open_b.
func New(auto bool, initial domain.TradeMode, target, epsilon decimal.Decimal) *Machine {
	lastOpen := initial
	if !initial.IsOpen() {
		lastOpen = domain.TradeModeOpenA
	}

	return &Machine{
		auto:     auto,
		mode:     initial,
		lastOpen: lastOpen,
		target:   target,
		epsilon:  epsilon,
	}
}

// Step applies the auto transition for the larger single-account position.
func (m *Machine) Step(maxSingle decimal.Decimal) (domain.TradeMode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.auto {
		return m.mode, false
	}

	switch {
	case m.mode.IsOpen() && maxSingle.GreaterThanOrEqual(m.target):
		m.lastOpen = m.mode
		m.mode = domain.TradeModeClose
		return m.mode, true
	case m.mode == domain.TradeModeClose && maxSingle.LessThan(m.epsilon):
		m.switchToNextOpenLocked()
		return m.mode, true
	}

	return m.mode, false
}

// OnCloseComplete is called when close mode finds nothing left to close.
// Auto switches to the next open mode, manual asks the session to stop.
func (m *Machine) OnCloseComplete() (domain.TradeMode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.auto {
		return m.mode, true
	}

	if m.mode == domain.TradeModeClose {
		m.switchToNextOpenLocked()
	}

	return m.mode, false
}

// Mode returns the active mode.
func (m *Machine) Mode() domain.TradeMode {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mode
}

// Auto reports whether rotation is enabled.
func (m *Machine) Auto() bool {
	return m.auto
}

func (m *Machine) switchToNextOpenLocked() {
	m.mode = m.lastOpen.Other()
	m.lastOpen = m.mode
}

package domain

import (
	"time"
)

// ExitReason is the single reason a session stopped.
type ExitReason string

const (
	ExitUserInterrupt     ExitReason = "user_interrupt"
	ExitFeeDetected       ExitReason = "fee_detected"
	ExitSessionLimit      ExitReason = "session_limit"
	ExitPositionCleared   ExitReason = "position_cleared"
	ExitBalanceLow        ExitReason = "balance_low"
	ExitPositionImbalance ExitReason = "position_imbalance"
	ExitManualLimit       ExitReason = "manual_exit"
	ExitError             ExitReason = "error"
	ExitUnknown           ExitReason = "unknown"
)

// String returns the string representation.
func (r ExitReason) String() string {
	return string(r)
}

// Fatal reports whether the reason is a safety stop rather than an expected end.
func (r ExitReason) Fatal() bool {
	switch r {
	case ExitFeeDetected, ExitBalanceLow, ExitPositionImbalance, ExitError:
		return true
	}
	return false
}

// Description returns the human readable reason.
func (r ExitReason) Description() string {
	switch r {
	case ExitUserInterrupt:
		return "interrupted by user"
	case ExitFeeDetected:
		return "trading fee detected"
	case ExitSessionLimit:
		return "session trade limit reached"
	case ExitPositionCleared:
		return "positions cleared"
	case ExitBalanceLow:
		return "available balance below floor"
	case ExitPositionImbalance:
		return "position imbalance above ceiling"
	case ExitManualLimit:
		return "manual mode trade cap reached"
	case ExitError:
		return "unexpected error"
	default:
		return "unknown reason"
	}
}

// ExitRecord is created once when the session decides to stop.
type ExitRecord struct {
	Reason   ExitReason
	Message  string
	FeeValue string
	At       time.Time

	StartedAt    time.Time
	Group        string
	AccountNames PerAccount[string]
	Mode         TradeMode
	AutoRotation bool

	Snapshots PerAccount[AccountSnapshot]

	// TradeCount successful cycles in this run.
	TradeCount int
	// SessionTrades rate limiter session count.
	SessionTrades   int
	SessionLimit    int
	ActiveOrders24h int
	MaxOrders24h    int
	FailedCycles    int
	Corrections     int
}

// Duration returns how long the session ran.
func (r ExitRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.At.IsZero() {
		return 0
	}
	return r.At.Sub(r.StartedAt)
}

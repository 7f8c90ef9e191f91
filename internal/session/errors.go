package session

import (
	"context"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
	"github.com/vadiminshakov/spreadsniper/internal/services/trigger"
)

var (
	// ErrTransientRead a collaborator returned no value; the loop retries.
	ErrTransientRead = errors.New("transient read failure")
	// ErrImbalanceUnresolved correction ended without balancing; no new trades this iteration.
	ErrImbalanceUnresolved = errors.New("position imbalance unresolved")
	// ErrUnknownMode the active trade mode has no action mapping.
	ErrUnknownMode = trigger.ErrUnknownMode

	ErrImbalanceCeiling  = errors.New("post-trade position diff above ceiling")
	ErrBalanceBelowFloor = errors.New("available balance below floor")
	ErrFeeAnomaly        = errors.New("non-zero trading fee detected")
	ErrSessionLimit      = errors.New("session trade limit reached")
	ErrManualCap         = errors.New("manual mode trade cap reached")
	ErrRotationComplete  = errors.New("positions cleared")
)

// transient reports whether the loop should log err and keep going.
func transient(err error) bool {
	return errors.Is(err, ErrTransientRead) ||
		errors.Is(err, ErrImbalanceUnresolved) ||
		errors.Is(err, ErrUnknownMode)
}

func reasonFor(err error) domain.ExitReason {
	switch {
	case err == nil:
		return domain.ExitUnknown
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.ExitUserInterrupt
	case errors.Is(err, ErrFeeAnomaly):
		return domain.ExitFeeDetected
	case errors.Is(err, ErrSessionLimit):
		return domain.ExitSessionLimit
	case errors.Is(err, ErrRotationComplete):
		return domain.ExitPositionCleared
	case errors.Is(err, ErrBalanceBelowFloor):
		return domain.ExitBalanceLow
	case errors.Is(err, ErrImbalanceCeiling):
		return domain.ExitPositionImbalance
	case errors.Is(err, ErrManualCap):
		return domain.ExitManualLimit
	default:
		return domain.ExitError
	}
}

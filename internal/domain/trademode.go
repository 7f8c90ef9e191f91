package domain

import "fmt"

// TradeMode selects which per-account actions a paired trade takes.
type TradeMode string

const (
	// TradeModeOpenA account A buys, account B sells.
	TradeModeOpenA TradeMode = "open_a"
	// TradeModeOpenB account A sells, account B buys.
	TradeModeOpenB TradeMode = "open_b"
	// TradeModeClose both accounts reduce toward zero.
	TradeModeClose TradeMode = "close"
)

// String returns the string representation.
func (m TradeMode) String() string {
	return string(m)
}

// IsValid checks if the TradeMode value is one of the known modes.
func (m TradeMode) IsValid() bool {
	return m == TradeModeOpenA || m == TradeModeOpenB || m == TradeModeClose
}

// IsOpen reports whether the mode opens exposure.
func (m TradeMode) IsOpen() bool {
	return m == TradeModeOpenA || m == TradeModeOpenB
}

// Other returns the alternate open mode. Close has no alternate and returns itself.
func (m TradeMode) Other() TradeMode {
	switch m {
	case TradeModeOpenA:
		return TradeModeOpenB
	case TradeModeOpenB:
		return TradeModeOpenA
	default:
		return m
	}
}

// Describe returns a label used in logs and reports.
func (m TradeMode) Describe() string {
	switch m {
	case TradeModeOpenA:
		return "open A (A buys, B sells)"
	case TradeModeOpenB:
		return "open B (A sells, B buys)"
	case TradeModeClose:
		return "close (auto-detect)"
	default:
		return fmt.Sprintf("unknown mode (%s)", string(m))
	}
}

// ParseTradeMode accepts the canonical names and the numeric aliases 1, 2, 3.
func ParseTradeMode(s string) (TradeMode, error) {
	switch s {
	case "open_a", "1":
		return TradeModeOpenA, nil
	case "open_b", "2":
		return TradeModeOpenB, nil
	case "close", "3":
		return TradeModeClose, nil
	}
	return "", fmt.Errorf("unknown trade mode %q", s)
}

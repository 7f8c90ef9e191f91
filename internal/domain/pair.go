// Package domain defines core data structures used throughout the sniper.
package domain

import (
	"fmt"
	"strings"
)

// Pair traded instrument.
type Pair struct {
	// From base currency symbol.
	From string
	// To quote currency symbol.
	To string
}

// String returns the string representation.
func (p *Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation.
func (p *Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}

// ParsePair parses BASE_QUOTE.
func ParsePair(s string) (Pair, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("invalid pair %q, expected BASE_QUOTE", s)
	}
	return Pair{From: strings.ToUpper(parts[0]), To: strings.ToUpper(parts[1])}, nil
}

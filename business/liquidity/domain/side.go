// Package domain contains the core liquidity types and the fill estimation engine.
package domain

import (
	"fmt"
	"strings"

	"github.com/fd1az/liquidity-engine/internal/asset"
	"github.com/shopspring/decimal"
)

// Side represents the side of a trade (buy or sell) from the taker's view.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide parses "buy" or "sell" (case-insensitive).
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("liquidity: unknown side %q", s)
	}
}

// Valid reports whether s is buy or sell.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Better reports whether price a is preferable to price b for this side.
// Buyers prefer lower prices and sellers higher ones. Equal prices are not better.
func (s Side) Better(a, b decimal.Decimal) bool {
	if s == SideBuy {
		return a.LessThan(b)
	}
	return a.GreaterThan(b)
}

// Pair is a market of a base issue priced in a quote issue.
type Pair struct {
	Base  asset.Issue
	Quote asset.Issue
}

// String returns the pair as "BASE/QUOTE".
func (p Pair) String() string {
	return p.Base.Code() + "/" + p.Quote.Code()
}

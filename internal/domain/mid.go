package domain

import (
	"github.com/shopspring/decimal"
)

// MidQuote latest mid price for a symbol plus its direction versus the
// previous tick of the all-mids stream.
type MidQuote struct {
	Mid decimal.Decimal
	// Dir is +1 when the mid rose since the previous tick, -1 when it fell,
	// 0 when unchanged or first seen.
	Dir int
}

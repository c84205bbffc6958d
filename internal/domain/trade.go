package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide aggressor side of a public trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Trade a single public fill. Immutable once received.
type Trade struct {
	Symbol string
	Price  decimal.Decimal
	Size   decimal.Decimal
	Side   TradeSide
	Time   time.Time
	// TxHash on-chain transaction reference, may be empty.
	TxHash string
}

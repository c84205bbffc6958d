package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle one OHLCV bucket. OpenTime identifies the bucket; a series never
// holds two candles with the same OpenTime.
type Candle struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// OpenTimeMs returns the bucket start as unix milliseconds, the form the
// exchange uses on the wire.
func (c Candle) OpenTimeMs() int64 {
	return c.OpenTime.UnixMilli()
}

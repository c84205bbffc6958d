// Package domain defines core data structures shared by the market-data pipelines.
package domain

// MarketKind distinguishes perpetual and spot markets. The two kinds carry
// different wire-precision caps on Hyperliquid.
type MarketKind string

const (
	MarketKindPerp MarketKind = "perp"
	MarketKindSpot MarketKind = "spot"
)

// MaxWireDecimals returns the exchange's decimal-place cap before the
// asset's size decimals are subtracted.
func (k MarketKind) MaxWireDecimals() int {
	if k == MarketKindSpot {
		return 8
	}
	return 6
}

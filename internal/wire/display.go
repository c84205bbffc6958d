package wire

import (
	"github.com/shopspring/decimal"
)

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
)

// DisplayPrice renders a price for the UI with a fixed number of decimals.
func DisplayPrice(px decimal.Decimal, decimals int) string {
	return px.StringFixed(int32(decimals))
}

// DisplaySize renders a size for the UI with four decimals.
func DisplaySize(sz decimal.Decimal) string {
	return sz.StringFixed(4)
}

// DisplayVolume renders a volume with a K/M/B suffix past each thousand step.
func DisplayVolume(v decimal.Decimal) string {
	switch {
	case v.GreaterThanOrEqual(billion):
		return v.Div(billion).StringFixed(2) + "B"
	case v.GreaterThanOrEqual(million):
		return v.Div(million).StringFixed(2) + "M"
	case v.GreaterThanOrEqual(thousand):
		return v.Div(thousand).StringFixed(2) + "K"
	default:
		return v.StringFixed(2)
	}
}

// DisplayPercentChange renders a signed percentage with two decimals, keeping
// the explicit plus on gains.
func DisplayPercentChange(change decimal.Decimal) string {
	sign := ""
	if change.GreaterThanOrEqual(decimal.Zero) {
		sign = "+"
	}
	return sign + change.StringFixed(2) + "%"
}

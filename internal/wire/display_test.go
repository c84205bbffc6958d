package wire

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDisplayVolume(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"999.994", "999.99"},
		{"1000", "1.00K"},
		{"1534000", "1.53M"},
		{"2100000000", "2.10B"},
		{"12.3", "12.30"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DisplayVolume(decimal.RequireFromString(tc.in)), tc.in)
	}
}

func TestDisplayPercentChange(t *testing.T) {
	assert.Equal(t, "+1.25%", DisplayPercentChange(decimal.RequireFromString("1.253")))
	assert.Equal(t, "+0.00%", DisplayPercentChange(decimal.Zero))
	assert.Equal(t, "-4.20%", DisplayPercentChange(decimal.RequireFromString("-4.2")))
}

func TestDisplayPriceAndSize(t *testing.T) {
	assert.Equal(t, "100.50", DisplayPrice(decimal.RequireFromString("100.5"), 2))
	assert.Equal(t, "0.1235", DisplaySize(decimal.RequireFromString("0.12345")))
}

package submit

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/hyperdash/internal/domain"
	"github.com/vadiminshakov/hyperdash/internal/wire"
)

func TestBuildOrderRequest_WireFormatsPrice(t *testing.T) {
	req, cloid, err := buildOrderRequest(OrderParams{
		Coin:       "BTC",
		Kind:       domain.MarketKindPerp,
		SzDecimals: 2,
		IsBuy:      true,
		Price:      decimal.RequireFromString("123.456789"),
		Size:       decimal.RequireFromString("0.123456"),
		Tif:        TimeInForceGTC,
	})
	require.NoError(t, err)

	// price passed to the SDK is the wire-formatted value, not the raw input
	assert.Equal(t, 123.46, req.Price)
	assert.Equal(t, 0.12, req.Size)
	assert.True(t, req.IsBuy)
	require.NotNil(t, req.OrderType.Limit)
	assert.Equal(t, hyperliquid.TifGtc, req.OrderType.Limit.Tif)

	require.NotNil(t, req.ClientOrderID)
	assert.Equal(t, cloid, *req.ClientOrderID)
	assert.True(t, strings.HasPrefix(cloid, "0x"))
	assert.Len(t, cloid, 34)
}

func TestBuildOrderRequest_IOC(t *testing.T) {
	req, _, err := buildOrderRequest(OrderParams{
		Coin:       "ETH",
		Kind:       domain.MarketKindPerp,
		SzDecimals: 4,
		Price:      decimal.NewFromInt(3000),
		Size:       decimal.NewFromInt(1),
		Tif:        TimeInForceIOC,
	})
	require.NoError(t, err)
	assert.Equal(t, hyperliquid.TifIoc, req.OrderType.Limit.Tif)
}

func TestBuildOrderRequest_StableCloid(t *testing.T) {
	params := OrderParams{
		Coin:          "BTC",
		Kind:          domain.MarketKindPerp,
		Price:         decimal.NewFromInt(100),
		Size:          decimal.NewFromInt(1),
		ClientOrderID: "my-order-1",
	}
	_, first, err := buildOrderRequest(params)
	require.NoError(t, err)
	_, second, err := buildOrderRequest(params)
	require.NoError(t, err)
	assert.Equal(t, first, second, "same client ID must map to the same cloid")
}

func TestBuildOrderRequest_RejectsBadInput(t *testing.T) {
	_, _, err := buildOrderRequest(OrderParams{
		Coin:  "BTC",
		Kind:  domain.MarketKindPerp,
		Price: decimal.NewFromInt(100),
		Size:  decimal.Zero,
	})
	assert.Error(t, err)

	_, _, err = buildOrderRequest(OrderParams{
		Kind:  domain.MarketKindPerp,
		Price: decimal.NewFromInt(100),
		Size:  decimal.NewFromInt(1),
	})
	assert.Error(t, err)
}

func TestBuildOrderRequest_UnformattablePriceBlocksSubmission(t *testing.T) {
	// szDecimals beyond the kind's cap still yields a valid zero-decimal
	// format; a genuinely unformattable price can only come from a
	// non-finite decimal, which the decimal type excludes. Verify the
	// formatter is actually in the path by checking the rounded output.
	req, _, err := buildOrderRequest(OrderParams{
		Coin:       "BTC",
		Kind:       domain.MarketKindPerp,
		SzDecimals: 0,
		Price:      decimal.RequireFromString("1234567"),
		Size:       decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, 1234600.0, req.Price, "7-digit price must be cut to 5 significant digits")

	s, err := wire.FormatPrice("1234567", domain.MarketKindPerp, 0)
	require.NoError(t, err)
	assert.False(t, errors.Is(err, wire.ErrInvalidNumber))
	assert.Equal(t, "1234600", s)
}

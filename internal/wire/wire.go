// Package wire converts numeric values to the exchange's canonical wire
// strings. The same string that is rendered must be the one submitted with an
// order; any divergence between the two is the defect class this package
// exists to prevent.
package wire

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/hyperdash/internal/domain"
)

// ErrInvalidNumber is returned when a value does not parse to a finite number.
var ErrInvalidNumber = errors.New("invalid number")

const maxSignificantDigits = 5

// MaxPriceDecimals returns the decimal-place cap for a price: the market
// kind's cap (8 for spot, 6 for perp) minus the asset's size decimals,
// floored at zero.
func MaxPriceDecimals(kind domain.MarketKind, szDecimals int) int {
	d := kind.MaxWireDecimals() - szDecimals
	if d < 0 {
		return 0
	}
	return d
}

// FormatPrice renders a price in wire format: rounded to the decimal-place
// cap, trailing zeros stripped, and at most 5 significant digits. Idempotent:
// formatting an already formatted price returns it unchanged.
func FormatPrice(px string, kind domain.MarketKind, szDecimals int) (string, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(px), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return "", errors.Wrapf(ErrInvalidNumber, "price %q", px)
	}

	maxDec := MaxPriceDecimals(kind, szDecimals)
	s := stripTrailingZeros(strconv.FormatFloat(n, 'f', maxDec, 64))

	if significantDigits(s) <= maxSignificantDigits {
		return s, nil
	}

	rounded := roundSignificant(n, maxSignificantDigits)
	dec := maxSignificantDigits - int(math.Floor(math.Log10(math.Abs(n)))) - 1
	if dec < 0 {
		dec = 0
	}
	if dec > maxDec {
		dec = maxDec
	}
	return stripTrailingZeros(strconv.FormatFloat(rounded, 'f', dec, 64)), nil
}

// FormatPriceDecimal renders a decimal price in wire format.
func FormatPriceDecimal(px decimal.Decimal, kind domain.MarketKind, szDecimals int) (string, error) {
	return FormatPrice(px.String(), kind, szDecimals)
}

// FormatSize renders an order size rounded to the asset's size decimals,
// trailing zeros stripped.
func FormatSize(sz string, szDecimals int) (string, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(sz), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return "", errors.Wrapf(ErrInvalidNumber, "size %q", sz)
	}
	if szDecimals < 0 {
		szDecimals = 0
	}
	return stripTrailingZeros(strconv.FormatFloat(n, 'f', szDecimals, 64)), nil
}

// FormatSizeDecimal renders a decimal size in wire format.
func FormatSizeDecimal(sz decimal.Decimal, szDecimals int) (string, error) {
	return FormatSize(sz.String(), szDecimals)
}

// roundSignificant rounds n to the given number of significant digits.
func roundSignificant(n float64, sig int) float64 {
	if n == 0 {
		return 0
	}
	exp := math.Floor(math.Log10(math.Abs(n)))
	scale := math.Pow(10, float64(sig-1)-exp)
	return math.Round(n*scale) / scale
}

// significantDigits counts digits ignoring sign, the decimal point and
// leading zeros.
func significantDigits(s string) int {
	s = strings.TrimPrefix(s, "-")
	s = strings.Replace(s, ".", "", 1)
	s = strings.TrimLeft(s, "0")
	return len(s)
}

func stripTrailingZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

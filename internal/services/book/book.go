// Package book builds display-ready order book snapshots from raw depth
// updates. The upstream feed delivers full snapshots on every tick, so each
// build starts from scratch; there is no incremental diffing.
package book

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/hyperdash/internal/domain"
	"github.com/vadiminshakov/hyperdash/internal/wire"
	"go.uber.org/zap"
)

// DefaultMaxRows visible depth per side.
const DefaultMaxRows = 15

var oneHundred = decimal.NewFromInt(100)

// Builder transforms raw two-sided depth into ranked, total-weighted rows.
type Builder struct {
	maxRows int
	logger  *zap.Logger
}

// NewBuilder creates a Builder. maxRows <= 0 falls back to DefaultMaxRows.
func NewBuilder(maxRows int, logger *zap.Logger) *Builder {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{maxRows: maxRows, logger: logger}
}

// Build recomputes the full snapshot for one depth tick. Bids must arrive
// sorted descending by price and asks ascending, which is how the exchange
// delivers them. An empty side yields an empty ranked slice and an
// unavailable spread; Build never fails.
func (b *Builder) Build(symbol string, kind domain.MarketKind, szDecimals int, bids, asks []domain.PriceLevel) domain.BookSnapshot {
	snapshot := domain.BookSnapshot{
		Symbol:    symbol,
		Bids:      rankSide(bids, b.maxRows),
		Asks:      rankSide(asks, b.maxRows),
		UpdatedAt: time.Now(),
	}
	snapshot.Spread = b.spread(symbol, kind, szDecimals, bids, asks)
	return snapshot
}

// rankSide truncates a side to the visible row count and computes running
// totals over the visible depth only, from the best price outward.
func rankSide(levels []domain.PriceLevel, maxRows int) []domain.RankedLevel {
	if len(levels) > maxRows {
		levels = levels[:maxRows]
	}
	ranked := make([]domain.RankedLevel, 0, len(levels))
	total := decimal.Zero
	for _, lvl := range levels {
		total = total.Add(lvl.Size)
		ranked = append(ranked, domain.RankedLevel{PriceLevel: lvl, Total: total})
	}
	return ranked
}

func (b *Builder) spread(symbol string, kind domain.MarketKind, szDecimals int, bids, asks []domain.PriceLevel) domain.Spread {
	if len(bids) == 0 || len(asks) == 0 {
		return domain.Spread{Unavailable: true}
	}

	bestBid := bids[0].Price
	bestAsk := asks[0].Price
	absolute := bestAsk.Sub(bestBid)
	if absolute.IsNegative() {
		// crossed book: upstream data fault, keep rendering the sides but
		// never publish a negative spread
		b.logger.Warn("crossed book in depth snapshot",
			zap.String("coin", symbol),
			zap.String("best_bid", bestBid.String()),
			zap.String("best_ask", bestAsk.String()))
		return domain.Spread{Unavailable: true}
	}

	formatted, err := wire.FormatPriceDecimal(absolute, kind, szDecimals)
	if err != nil {
		// decimal strings always parse; treat as unavailable just in case
		return domain.Spread{Unavailable: true}
	}

	if !bestBid.IsPositive() {
		return domain.Spread{Unavailable: true}
	}
	percent := absolute.Div(bestBid).Mul(oneHundred)

	return domain.Spread{
		Absolute: formatted,
		Percent:  percent.StringFixed(3) + "%",
	}
}

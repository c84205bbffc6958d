// Package tradefeed keeps the most recent public trades for the active
// symbol, newest first.
package tradefeed

import (
	"github.com/vadiminshakov/hyperdash/internal/domain"
	"go.uber.org/zap"
)

// DefaultCapacity most-recent trades kept per symbol.
const DefaultCapacity = 50

// Buffer a bounded most-recent-first trade list. Oldest entries are evicted
// silently past capacity. Not safe for concurrent use; callers serialize.
type Buffer struct {
	capacity int
	trades   []domain.Trade
	logger   *zap.Logger
}

// NewBuffer creates a Buffer. capacity <= 0 falls back to DefaultCapacity.
func NewBuffer(capacity int, logger *zap.Logger) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Buffer{capacity: capacity, logger: logger}
}

// Ingest prepends a batch in the order received and truncates to capacity.
// Same-timestamp trades keep arrival order; there is no re-sort. Entries with
// a non-positive price or size are dropped with a diagnostic log and never
// block the rest of the batch.
func (b *Buffer) Ingest(trades []domain.Trade) {
	if len(trades) == 0 {
		return
	}

	accepted := make([]domain.Trade, 0, len(trades))
	for _, tr := range trades {
		if !tr.Price.IsPositive() || !tr.Size.IsPositive() {
			b.logger.Debug("dropping malformed trade",
				zap.String("coin", tr.Symbol),
				zap.String("price", tr.Price.String()),
				zap.String("size", tr.Size.String()))
			continue
		}
		accepted = append(accepted, tr)
	}
	if len(accepted) == 0 {
		return
	}

	merged := make([]domain.Trade, 0, len(accepted)+len(b.trades))
	merged = append(merged, accepted...)
	merged = append(merged, b.trades...)
	if len(merged) > b.capacity {
		merged = merged[:b.capacity]
	}
	b.trades = merged
}

// Trades returns a copy of the buffer, newest first.
func (b *Buffer) Trades() []domain.Trade {
	out := make([]domain.Trade, len(b.trades))
	copy(out, b.trades)
	return out
}

// Len returns the number of buffered trades.
func (b *Buffer) Len() int {
	return len(b.trades)
}

// Reset drops everything. Called on symbol change so trades from different
// symbols never mix.
func (b *Buffer) Reset() {
	b.trades = nil
}

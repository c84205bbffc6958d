package candles

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/hyperdash/internal/domain"
	"go.uber.org/zap"
)

const (
	// ChunkCandles buckets fetched per backfill request.
	ChunkCandles = 1200
	// leftEdgeMarginBuckets how close (in buckets) the visible left edge may
	// come to the earliest held candle before a backfill fires.
	leftEdgeMarginBuckets = 50
	// extendThrottle minimum gap between backfill fetches while the user is
	// dragging the chart.
	extendThrottle = 500 * time.Millisecond
)

// Provider fetches historical candles for a closed time range.
type Provider interface {
	CandleSnapshot(ctx context.Context, coin string, interval domain.Interval, start, end time.Time) ([]domain.Candle, error)
}

// Backfiller extends a series cache backward when the viewer scrolls toward
// the earliest held candle. One backfiller serves exactly one
// (symbol, interval) selection and dies with it.
type Backfiller struct {
	provider Provider
	cache    *SeriesCache
	coin     string
	interval domain.Interval
	logger   *zap.Logger

	mu         sync.Mutex
	fetching   bool
	lastExtend time.Time
}

// NewBackfiller creates a backfiller bound to one cache and selection.
func NewBackfiller(provider Provider, cache *SeriesCache, coin string, interval domain.Interval, logger *zap.Logger) *Backfiller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backfiller{
		provider: provider,
		cache:    cache,
		coin:     coin,
		interval: interval,
		logger:   logger,
	}
}

// MaybeExtendLeft fetches one older chunk when visibleFrom is within the
// margin of the earliest held candle. Returns the number of prepended rows.
// A failed fetch leaves the series unchanged; the old data stays on screen.
func (b *Backfiller) MaybeExtendLeft(ctx context.Context, visibleFrom time.Time) (int, error) {
	earliest, ok := b.cache.Earliest()
	if !ok {
		return 0, nil
	}

	margin := time.Duration(leftEdgeMarginBuckets) * b.interval.Duration()
	if visibleFrom.After(earliest.OpenTime.Add(margin)) {
		return 0, nil
	}

	now := time.Now()
	b.mu.Lock()
	if b.fetching || now.Sub(b.lastExtend) < extendThrottle {
		b.mu.Unlock()
		return 0, nil
	}
	b.lastExtend = now
	b.fetching = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.fetching = false
		b.mu.Unlock()
	}()

	// end boundary one millisecond before the earliest held bucket, so the
	// fetched range cannot overlap by construction
	end := earliest.OpenTime.Add(-time.Millisecond)
	start := end.Add(-time.Duration(ChunkCandles) * b.interval.Duration())
	if start.Before(time.UnixMilli(0)) {
		start = time.UnixMilli(0)
	}

	rows, err := b.provider.CandleSnapshot(ctx, b.coin, b.interval, start, end)
	if err != nil {
		return 0, errors.Wrapf(err, "backfill %s %s", b.coin, b.interval)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	added := b.cache.Backfill(rows)
	b.logger.Debug("extended candle series left",
		zap.String("coin", b.coin),
		zap.String("interval", b.interval.String()),
		zap.Int("fetched", len(rows)),
		zap.Int("prepended", added))
	return added, nil
}

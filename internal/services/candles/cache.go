// Package candles owns the rolling candle series for one (symbol, interval)
// selection: seeded by a historical fetch, extended forward by live ticks and
// backward by backfill fetches.
package candles

import (
	"sync"

	"github.com/vadiminshakov/hyperdash/internal/domain"
)

// SeriesCache holds a time-ascending candle array with unique bucket start
// times. Three write paths exist and none of them may corrupt ordering or
// duplicate buckets: Seed replaces, ApplyLiveTick writes the tail, Backfill
// writes the head. Safe for concurrent use; each write is atomic and readers
// get copies.
type SeriesCache struct {
	mu     sync.RWMutex
	series []domain.Candle
}

// NewSeriesCache creates an empty cache.
func NewSeriesCache() *SeriesCache {
	return &SeriesCache{}
}

// Seed replaces the series wholesale. Used on selection change and initial
// load; the caller is responsible for fetching a contiguous range.
func (c *SeriesCache) Seed(rows []domain.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series = make([]domain.Candle, len(rows))
	copy(c.series, rows)
}

// ApplyLiveTick merges one live candle at the tail. A tick for the still-open
// bucket replaces the last element; a tick for a newer bucket appends; a tick
// older than the tail is stale out-of-order delivery and is discarded, which
// keeps the series strictly ascending.
func (c *SeriesCache) ApplyLiveTick(candle domain.Candle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.series) == 0 {
		c.series = append(c.series, candle)
		return true
	}

	last := c.series[len(c.series)-1]
	switch {
	case candle.OpenTimeMs() == last.OpenTimeMs():
		c.series[len(c.series)-1] = candle
		return true
	case candle.OpenTimeMs() > last.OpenTimeMs():
		c.series = append(c.series, candle)
		return true
	default:
		return false
	}
}

// Backfill merges older rows (ascending) at the head. Buckets already held
// keep their existing entry; incoming duplicates are dropped, which protects
// the seam where a refetch's end boundary overlaps the earliest held bucket.
// Rows at or after the earliest held bucket are ignored so the head write can
// never interleave with the body. Returns the number of rows prepended.
func (c *SeriesCache) Backfill(older []domain.Candle) int {
	if len(older) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.series) == 0 {
		c.series = make([]domain.Candle, len(older))
		copy(c.series, older)
		return len(older)
	}

	earliest := c.series[0].OpenTimeMs()
	fresh := make([]domain.Candle, 0, len(older))
	for _, row := range older {
		if row.OpenTimeMs() >= earliest {
			continue
		}
		fresh = append(fresh, row)
	}
	if len(fresh) == 0 {
		return 0
	}

	merged := make([]domain.Candle, 0, len(fresh)+len(c.series))
	merged = append(merged, fresh...)
	merged = append(merged, c.series...)
	c.series = merged
	return len(fresh)
}

// Candles returns a copy of the series, ascending by bucket start.
func (c *SeriesCache) Candles() []domain.Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Candle, len(c.series))
	copy(out, c.series)
	return out
}

// Earliest returns the oldest held candle.
func (c *SeriesCache) Earliest() (domain.Candle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.series) == 0 {
		return domain.Candle{}, false
	}
	return c.series[0], true
}

// Latest returns the newest held candle.
func (c *SeriesCache) Latest() (domain.Candle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.series) == 0 {
		return domain.Candle{}, false
	}
	return c.series[len(c.series)-1], true
}

// Len returns the number of held candles.
func (c *SeriesCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.series)
}

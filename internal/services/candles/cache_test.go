package candles

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/hyperdash/internal/domain"
)

func candle(openMs int64, close string) domain.Candle {
	px := decimal.RequireFromString(close)
	return domain.Candle{
		OpenTime: time.UnixMilli(openMs),
		Open:     px,
		High:     px,
		Low:      px,
		Close:    px,
		Volume:   decimal.NewFromInt(1),
	}
}

func openTimes(rows []domain.Candle) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.OpenTimeMs()
	}
	return out
}

func TestSeriesCache_LiveTickReplacesOpenBucket(t *testing.T) {
	c := NewSeriesCache()
	c.Seed([]domain.Candle{candle(100, "1"), candle(200, "2")})

	applied := c.ApplyLiveTick(candle(200, "5"))
	require.True(t, applied)

	rows := c.Candles()
	require.Len(t, rows, 2)
	assert.Equal(t, []int64{100, 200}, openTimes(rows))
	assert.True(t, rows[1].Close.Equal(decimal.NewFromInt(5)))
}

func TestSeriesCache_LiveTickAppendsNewBucket(t *testing.T) {
	c := NewSeriesCache()
	c.Seed([]domain.Candle{candle(100, "1"), candle(200, "2")})

	applied := c.ApplyLiveTick(candle(300, "3"))
	require.True(t, applied)
	assert.Equal(t, []int64{100, 200, 300}, openTimes(c.Candles()))
}

func TestSeriesCache_LiveTickDiscardsStale(t *testing.T) {
	c := NewSeriesCache()
	c.Seed([]domain.Candle{candle(100, "1"), candle(200, "2")})

	applied := c.ApplyLiveTick(candle(100, "9"))
	assert.False(t, applied)

	rows := c.Candles()
	assert.Equal(t, []int64{100, 200}, openTimes(rows))
	assert.True(t, rows[0].Close.Equal(decimal.NewFromInt(1)))
}

func TestSeriesCache_LiveTickOnEmptySeries(t *testing.T) {
	c := NewSeriesCache()
	require.True(t, c.ApplyLiveTick(candle(100, "1")))
	assert.Equal(t, 1, c.Len())
}

func TestSeriesCache_BackfillDedupsSeam(t *testing.T) {
	c := NewSeriesCache()
	c.Seed([]domain.Candle{candle(200, "2"), candle(300, "3")})

	added := c.Backfill([]domain.Candle{candle(100, "1"), candle(200, "9")})
	assert.Equal(t, 1, added)

	rows := c.Candles()
	require.Len(t, rows, 3)
	assert.Equal(t, []int64{100, 200, 300}, openTimes(rows))
	// the existing entry wins at the seam
	assert.True(t, rows[1].Close.Equal(decimal.NewFromInt(2)))
}

func TestSeriesCache_BackfillIgnoresRowsInsideHeldRange(t *testing.T) {
	c := NewSeriesCache()
	c.Seed([]domain.Candle{candle(200, "2"), candle(400, "4")})

	added := c.Backfill([]domain.Candle{candle(100, "1"), candle(300, "3")})
	assert.Equal(t, 1, added)
	assert.Equal(t, []int64{100, 200, 400}, openTimes(c.Candles()))
}

func TestSeriesCache_BackfillIntoEmptySeries(t *testing.T) {
	c := NewSeriesCache()
	added := c.Backfill([]domain.Candle{candle(100, "1"), candle(200, "2")})
	assert.Equal(t, 2, added)
	assert.Equal(t, []int64{100, 200}, openTimes(c.Candles()))
}

func TestSeriesCache_SeedReplacesWholesale(t *testing.T) {
	c := NewSeriesCache()
	c.Seed([]domain.Candle{candle(100, "1")})
	c.Seed([]domain.Candle{candle(500, "5"), candle(600, "6")})
	assert.Equal(t, []int64{500, 600}, openTimes(c.Candles()))
}

package tradefeed

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/hyperdash/internal/domain"
	"go.uber.org/zap"
)

func trade(price string, at int64) domain.Trade {
	return domain.Trade{
		Symbol: "BTC",
		Price:  decimal.RequireFromString(price),
		Size:   decimal.NewFromInt(1),
		Side:   domain.TradeSideBuy,
		Time:   time.UnixMilli(at),
	}
}

func TestBuffer_NewestFirst(t *testing.T) {
	b := NewBuffer(DefaultCapacity, zap.NewNop())

	b.Ingest([]domain.Trade{trade("100", 1)})
	b.Ingest([]domain.Trade{trade("101", 2), trade("102", 2)})

	got := b.Trades()
	require.Len(t, got, 3)
	// the latest batch sits at the front, in arrival order
	assert.True(t, got[0].Price.Equal(decimal.NewFromInt(101)))
	assert.True(t, got[1].Price.Equal(decimal.NewFromInt(102)))
	assert.True(t, got[2].Price.Equal(decimal.NewFromInt(100)))
}

func TestBuffer_EvictsPastCapacity(t *testing.T) {
	b := NewBuffer(5, zap.NewNop())

	for i := 0; i < 8; i++ {
		b.Ingest([]domain.Trade{trade(decimal.NewFromInt(int64(100 + i)).String(), int64(i))})
	}

	got := b.Trades()
	require.Len(t, got, 5)
	assert.True(t, got[0].Price.Equal(decimal.NewFromInt(107)))
	assert.True(t, got[4].Price.Equal(decimal.NewFromInt(103)))
}

func TestBuffer_DropsMalformedEntries(t *testing.T) {
	b := NewBuffer(DefaultCapacity, zap.NewNop())

	bad := trade("100", 1)
	bad.Size = decimal.Zero

	b.Ingest([]domain.Trade{bad, trade("101", 1)})

	got := b.Trades()
	require.Len(t, got, 1)
	assert.True(t, got[0].Price.Equal(decimal.NewFromInt(101)))
}

func TestBuffer_Reset(t *testing.T) {
	b := NewBuffer(DefaultCapacity, zap.NewNop())
	b.Ingest([]domain.Trade{trade("100", 1)})
	require.Equal(t, 1, b.Len())

	b.Reset()
	assert.Zero(t, b.Len())
	assert.Empty(t, b.Trades())
}

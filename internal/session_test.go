package internal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/hyperdash/internal/domain"
	"github.com/vadiminshakov/hyperdash/internal/services/feed"
)

type fakeSub struct {
	mu        sync.Mutex
	cancelled bool
}

func (f *fakeSub) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = true
	return nil
}

func (f *fakeSub) isCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

type fakeFeed struct {
	mu      sync.Mutex
	bookH   map[string]func(feed.BookUpdate)
	tradeH  map[string]func([]domain.Trade)
	candleH map[string]func(domain.Candle)
	midsH   func(map[string]decimal.Decimal)
	subs    []*fakeSub
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		bookH:   make(map[string]func(feed.BookUpdate)),
		tradeH:  make(map[string]func([]domain.Trade)),
		candleH: make(map[string]func(domain.Candle)),
	}
}

func (f *fakeFeed) track() *fakeSub {
	sub := &fakeSub{}
	f.subs = append(f.subs, sub)
	return sub
}

func (f *fakeFeed) SubscribeBook(coin string, h func(feed.BookUpdate)) (Cancelable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookH[coin] = h
	return f.track(), nil
}

func (f *fakeFeed) SubscribeTrades(coin string, h func([]domain.Trade)) (Cancelable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tradeH[coin] = h
	return f.track(), nil
}

func (f *fakeFeed) SubscribeCandles(coin string, interval domain.Interval, h func(domain.Candle)) (Cancelable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candleH[coin] = h
	return f.track(), nil
}

func (f *fakeFeed) SubscribeAllMids(h func(map[string]decimal.Decimal)) (Cancelable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.midsH = h
	return f.track(), nil
}

func (f *fakeFeed) IsConnected() bool { return true }

func (f *fakeFeed) emitBook(coin string, upd feed.BookUpdate) {
	f.mu.Lock()
	h := f.bookH[coin]
	f.mu.Unlock()
	if h != nil {
		h(upd)
	}
}

func (f *fakeFeed) emitTrades(coin string, trades []domain.Trade) {
	f.mu.Lock()
	h := f.tradeH[coin]
	f.mu.Unlock()
	if h != nil {
		h(trades)
	}
}

func (f *fakeFeed) emitCandle(coin string, candle domain.Candle) {
	f.mu.Lock()
	h := f.candleH[coin]
	f.mu.Unlock()
	if h != nil {
		h(candle)
	}
}

// gatedProvider blocks each CandleSnapshot call until the test releases rows
// for that coin, so fetch completion order is fully controlled.
type gatedProvider struct {
	mu    sync.Mutex
	gates map[string]chan []domain.Candle
	calls map[string]int
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{
		gates: make(map[string]chan []domain.Candle),
		calls: make(map[string]int),
	}
}

func (p *gatedProvider) gate(coin string) chan []domain.Candle {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gates[coin] == nil {
		p.gates[coin] = make(chan []domain.Candle, 4)
	}
	return p.gates[coin]
}

func (p *gatedProvider) CandleSnapshot(_ context.Context, coin string, _ domain.Interval, _, _ time.Time) ([]domain.Candle, error) {
	p.mu.Lock()
	p.calls[coin]++
	p.mu.Unlock()
	return <-p.gate(coin), nil
}

func (p *gatedProvider) callCount(coin string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[coin]
}

func (p *gatedProvider) release(coin string, rows []domain.Candle) {
	p.gate(coin) <- rows
}

func testAssets() []domain.Asset {
	return []domain.Asset{
		{Name: "BTC", SzDecimals: 5, MaxLeverage: 50},
		{Name: "ETH", SzDecimals: 4, MaxLeverage: 50},
	}
}

func candleAt(ms int64, close string) domain.Candle {
	px := decimal.RequireFromString(close)
	return domain.Candle{
		OpenTime: time.UnixMilli(ms),
		Open:     px,
		High:     px,
		Low:      px,
		Close:    px,
		Volume:   decimal.NewFromInt(1),
	}
}

func level(px, sz string) domain.PriceLevel {
	return domain.PriceLevel{
		Price: decimal.RequireFromString(px),
		Size:  decimal.RequireFromString(sz),
	}
}

func TestSession_SelectRoutesFeedIntoViews(t *testing.T) {
	fd := newFakeFeed()
	provider := newGatedProvider()
	session := NewMarketSession(fd, provider, testAssets(), 0, 10, nil)
	defer session.Close()

	require.NoError(t, session.Select(context.Background(), "BTC", domain.Interval1m))
	provider.release("BTC", []domain.Candle{candleAt(60_000, "100")})

	require.Eventually(t, func() bool {
		return len(session.Candles()) == 1
	}, time.Second, 5*time.Millisecond)

	fd.emitBook("BTC", feed.BookUpdate{
		Coin: "BTC",
		Bids: []domain.PriceLevel{level("1000", "2")},
		Asks: []domain.PriceLevel{level("1001", "1")},
	})
	snap := session.BookSnapshot()
	require.Len(t, snap.Bids, 1)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, "1", snap.Spread.Absolute)

	fd.emitTrades("BTC", []domain.Trade{{
		Symbol: "BTC",
		Price:  decimal.RequireFromString("1000.5"),
		Size:   decimal.NewFromInt(1),
		Side:   domain.TradeSideBuy,
		Time:   time.Now(),
	}})
	assert.Len(t, session.RecentTrades(), 1)

	fd.emitCandle("BTC", candleAt(120_000, "101"))
	assert.Len(t, session.Candles(), 2)
}

func TestSession_SelectUnknownSymbol(t *testing.T) {
	session := NewMarketSession(newFakeFeed(), newGatedProvider(), testAssets(), 0, 10, nil)
	assert.Error(t, session.Select(context.Background(), "DOGE", domain.Interval1m))
}

func TestSession_SwitchCancelsAndResets(t *testing.T) {
	fd := newFakeFeed()
	provider := newGatedProvider()
	session := NewMarketSession(fd, provider, testAssets(), 0, 10, nil)
	defer session.Close()

	require.NoError(t, session.Select(context.Background(), "BTC", domain.Interval1m))
	provider.release("BTC", []domain.Candle{candleAt(60_000, "100")})
	fd.emitTrades("BTC", []domain.Trade{{
		Symbol: "BTC",
		Price:  decimal.NewFromInt(100),
		Size:   decimal.NewFromInt(1),
		Time:   time.Now(),
	}})
	require.Len(t, session.RecentTrades(), 1)

	require.NoError(t, session.Select(context.Background(), "ETH", domain.Interval5m))

	for _, sub := range fd.subs[:3] {
		assert.True(t, sub.isCancelled(), "old selection subscriptions must be cancelled")
	}
	assert.Empty(t, session.RecentTrades(), "trade buffer must reset on symbol change")
	assert.Equal(t, Selection{Symbol: "ETH", Interval: domain.Interval5m}, session.Selection())

	// handlers registered under the old epoch no longer mutate state
	fd.emitTrades("BTC", []domain.Trade{{
		Symbol: "BTC",
		Price:  decimal.NewFromInt(100),
		Size:   decimal.NewFromInt(1),
		Time:   time.Now(),
	}})
	assert.Empty(t, session.RecentTrades())

	fd.emitBook("BTC", feed.BookUpdate{
		Coin: "BTC",
		Bids: []domain.PriceLevel{level("1", "1")},
		Asks: []domain.PriceLevel{level("2", "1")},
	})
	assert.Empty(t, session.BookSnapshot().Bids)

	provider.release("ETH", nil)
}

func TestSession_LateFetchForOldSymbolDoesNotTouchNewSeries(t *testing.T) {
	fd := newFakeFeed()
	provider := newGatedProvider()
	session := NewMarketSession(fd, provider, testAssets(), 0, 10, nil)
	defer session.Close()

	// seed BTC, then start a backfill that stays in flight
	require.NoError(t, session.Select(context.Background(), "BTC", domain.Interval1m))
	seedTime := time.Now().Truncate(time.Minute)
	provider.release("BTC", []domain.Candle{candleAt(seedTime.UnixMilli(), "100")})
	require.Eventually(t, func() bool {
		return len(session.Candles()) == 1
	}, time.Second, 5*time.Millisecond)

	backfillDone := make(chan struct{})
	go func() {
		defer close(backfillDone)
		_, _ = session.ExtendLeft(context.Background(), seedTime)
	}()
	require.Eventually(t, func() bool {
		return provider.callCount("BTC") == 2
	}, time.Second, 5*time.Millisecond, "backfill fetch must be in flight before switching")

	// switch while the BTC backfill is still pending
	require.NoError(t, session.Select(context.Background(), "ETH", domain.Interval1m))
	ethRow := candleAt(time.Now().Truncate(time.Minute).UnixMilli(), "2000")
	provider.release("ETH", []domain.Candle{ethRow})
	require.Eventually(t, func() bool {
		return len(session.Candles()) == 1
	}, time.Second, 5*time.Millisecond)

	// now let the stale BTC backfill resolve with a pile of rows
	old := make([]domain.Candle, 0, 5)
	for i := int64(5); i >= 1; i-- {
		old = append(old, candleAt(seedTime.Add(-time.Duration(i)*time.Minute).UnixMilli(), "99"))
	}
	provider.release("BTC", old)
	<-backfillDone

	got := session.Candles()
	require.Len(t, got, 1, "stale backfill must not reach the new selection's series")
	assert.True(t, got[0].Close.Equal(ethRow.Close))
}

func TestSession_StaleCandleTickDiscarded(t *testing.T) {
	fd := newFakeFeed()
	provider := newGatedProvider()
	session := NewMarketSession(fd, provider, testAssets(), 0, 10, nil)
	defer session.Close()

	require.NoError(t, session.Select(context.Background(), "BTC", domain.Interval1m))
	provider.release("BTC", []domain.Candle{candleAt(120_000, "100")})
	require.Eventually(t, func() bool {
		return len(session.Candles()) == 1
	}, time.Second, 5*time.Millisecond)

	// older than the tail: dropped
	fd.emitCandle("BTC", candleAt(60_000, "99"))
	require.Len(t, session.Candles(), 1)

	// same bucket: replaced in place
	fd.emitCandle("BTC", candleAt(120_000, "105"))
	got := session.Candles()
	require.Len(t, got, 1)
	assert.True(t, got[0].Close.Equal(decimal.RequireFromString("105")))
}

func TestSession_MidsFlow(t *testing.T) {
	fd := newFakeFeed()
	session := NewMarketSession(fd, newGatedProvider(), testAssets(), 0, 10, nil)
	defer session.Close()

	require.NoError(t, session.Start())
	fd.midsH(map[string]decimal.Decimal{"BTC": decimal.NewFromInt(50000)})

	mids := session.Mids()
	require.Contains(t, mids, "BTC")
	assert.True(t, mids["BTC"].Mid.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, 0, mids["BTC"].Dir, "first tick has no direction")

	fd.midsH(map[string]decimal.Decimal{"BTC": decimal.NewFromInt(50100)})
	assert.Equal(t, 1, session.Mids()["BTC"].Dir)

	fd.midsH(map[string]decimal.Decimal{"BTC": decimal.NewFromInt(50050)})
	assert.Equal(t, -1, session.Mids()["BTC"].Dir)
}

func TestKindForSymbol(t *testing.T) {
	assert.Equal(t, domain.MarketKindPerp, kindForSymbol("BTC"))
	assert.Equal(t, domain.MarketKindSpot, kindForSymbol("@107"))
	assert.Equal(t, domain.MarketKindSpot, kindForSymbol("PURR/USDC"))
}

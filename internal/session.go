// Package internal wires the feed, book, trade and candle services into one
// live market session driven by a (symbol, interval) selection.
package internal

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/hyperdash/internal/domain"
	"github.com/vadiminshakov/hyperdash/internal/services/book"
	"github.com/vadiminshakov/hyperdash/internal/services/candles"
	"github.com/vadiminshakov/hyperdash/internal/services/feed"
	"github.com/vadiminshakov/hyperdash/internal/services/tradefeed"
	"go.uber.org/zap"
)

// DefaultSeedBuckets candle buckets fetched when a selection is made.
const DefaultSeedBuckets = 500

// Cancelable a live subscription handle.
type Cancelable interface {
	Cancel() error
}

// MarketFeed is the slice of the realtime feed the session consumes.
type MarketFeed interface {
	SubscribeBook(coin string, h func(feed.BookUpdate)) (Cancelable, error)
	SubscribeTrades(coin string, h func([]domain.Trade)) (Cancelable, error)
	SubscribeCandles(coin string, interval domain.Interval, h func(domain.Candle)) (Cancelable, error)
	SubscribeAllMids(h func(map[string]decimal.Decimal)) (Cancelable, error)
	IsConnected() bool
}

// FeedAdapter lifts *feed.Client to the MarketFeed interface.
type FeedAdapter struct {
	Client *feed.Client
}

func (a FeedAdapter) SubscribeBook(coin string, h func(feed.BookUpdate)) (Cancelable, error) {
	return a.Client.SubscribeBook(coin, h)
}

func (a FeedAdapter) SubscribeTrades(coin string, h func([]domain.Trade)) (Cancelable, error) {
	return a.Client.SubscribeTrades(coin, h)
}

func (a FeedAdapter) SubscribeCandles(coin string, interval domain.Interval, h func(domain.Candle)) (Cancelable, error) {
	return a.Client.SubscribeCandles(coin, interval, h)
}

func (a FeedAdapter) SubscribeAllMids(h func(map[string]decimal.Decimal)) (Cancelable, error) {
	return a.Client.SubscribeAllMids(h)
}

func (a FeedAdapter) IsConnected() bool { return a.Client.IsConnected() }

// Selection the active symbol and candle interval.
type Selection struct {
	Symbol   string
	Interval domain.Interval
}

// MarketSession owns the state behind the dashboard for one selection at a
// time. Every selection change bumps an epoch; feed callbacks and seed
// fetches created under an older epoch are discarded on arrival, so data from
// an abandoned selection can never leak into the current one.
type MarketSession struct {
	feed        MarketFeed
	provider    candles.Provider
	books       *book.Builder
	seedBuckets int
	logger      *zap.Logger

	mu         sync.Mutex
	epoch      uint64
	selection  Selection
	asset      domain.Asset
	kind       domain.MarketKind
	assets     map[string]domain.Asset
	subs       []Cancelable
	midsSub    Cancelable
	bookSnap   domain.BookSnapshot
	trades     *tradefeed.Buffer
	cache      *candles.SeriesCache
	backfiller *candles.Backfiller
	mids       map[string]domain.MidQuote
}

// NewMarketSession creates a session over a connected feed. assets is the
// tradeable universe from the exchange meta; bookRows and seedBuckets fall
// back to their defaults when non-positive.
func NewMarketSession(marketFeed MarketFeed, provider candles.Provider, assets []domain.Asset, bookRows, seedBuckets int, logger *zap.Logger) *MarketSession {
	if seedBuckets <= 0 {
		seedBuckets = DefaultSeedBuckets
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	byName := make(map[string]domain.Asset, len(assets))
	for _, asset := range assets {
		byName[asset.Name] = asset
	}

	return &MarketSession{
		feed:        marketFeed,
		provider:    provider,
		books:       book.NewBuilder(bookRows, logger),
		seedBuckets: seedBuckets,
		logger:      logger,
		assets:      byName,
		trades:      tradefeed.NewBuffer(tradefeed.DefaultCapacity, logger),
		mids:        make(map[string]domain.MidQuote),
	}
}

// Start subscribes the selection-independent streams. Call once after the
// feed is connected.
func (s *MarketSession) Start() error {
	sub, err := s.feed.SubscribeAllMids(func(mids map[string]decimal.Decimal) {
		s.mu.Lock()
		next := make(map[string]domain.MidQuote, len(mids))
		for coin, mid := range mids {
			dir := 0
			if prev, ok := s.mids[coin]; ok {
				switch {
				case mid.GreaterThan(prev.Mid):
					dir = 1
				case mid.LessThan(prev.Mid):
					dir = -1
				}
			}
			next[coin] = domain.MidQuote{Mid: mid, Dir: dir}
		}
		s.mids = next
		s.mu.Unlock()
	})
	if err != nil {
		return errors.Wrap(err, "subscribe allMids")
	}

	s.mu.Lock()
	s.midsSub = sub
	s.mu.Unlock()
	return nil
}

// Select switches the session to a new (symbol, interval). The previous
// selection's subscriptions are cancelled, its trade buffer is cleared and a
// fresh candle cache is seeded asynchronously. In-flight fetches for the old
// selection keep writing into the old cache object, which nothing reads
// anymore.
func (s *MarketSession) Select(ctx context.Context, symbol string, interval domain.Interval) error {
	asset, ok := s.lookupAsset(symbol)
	if !ok {
		return errors.Errorf("unknown symbol %q", symbol)
	}
	kind := kindForSymbol(symbol)

	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	for _, sub := range s.subs {
		_ = sub.Cancel()
	}
	s.subs = nil
	s.selection = Selection{Symbol: symbol, Interval: interval}
	s.asset = asset
	s.kind = kind
	s.bookSnap = domain.BookSnapshot{Symbol: symbol, Spread: domain.Spread{Unavailable: true}}
	s.trades.Reset()
	cache := candles.NewSeriesCache()
	s.cache = cache
	s.backfiller = candles.NewBackfiller(s.provider, cache, symbol, interval, s.logger)
	s.mu.Unlock()

	bookSub, err := s.feed.SubscribeBook(symbol, func(upd feed.BookUpdate) {
		snap := s.books.Build(symbol, kind, asset.SzDecimals, upd.Bids, upd.Asks)
		s.mu.Lock()
		if s.epoch == epoch {
			s.bookSnap = snap
		}
		s.mu.Unlock()
	})
	if err != nil {
		return errors.Wrapf(err, "subscribe book for %s", symbol)
	}

	tradesSub, err := s.feed.SubscribeTrades(symbol, func(trades []domain.Trade) {
		s.mu.Lock()
		if s.epoch == epoch {
			s.trades.Ingest(trades)
		}
		s.mu.Unlock()
	})
	if err != nil {
		_ = bookSub.Cancel()
		return errors.Wrapf(err, "subscribe trades for %s", symbol)
	}

	logger := s.logger
	candleSub, err := s.feed.SubscribeCandles(symbol, interval, func(candle domain.Candle) {
		s.mu.Lock()
		stale := s.epoch != epoch
		s.mu.Unlock()
		if stale {
			return
		}
		if !cache.ApplyLiveTick(candle) {
			logger.Debug("discarded out-of-order candle tick",
				zap.String("coin", symbol),
				zap.Int64("open_time_ms", candle.OpenTimeMs()))
		}
	})
	if err != nil {
		_ = bookSub.Cancel()
		_ = tradesSub.Cancel()
		return errors.Wrapf(err, "subscribe candles for %s", symbol)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		_ = bookSub.Cancel()
		_ = tradesSub.Cancel()
		_ = candleSub.Cancel()
		return nil
	}
	s.subs = []Cancelable{bookSub, tradesSub, candleSub}
	s.mu.Unlock()

	go s.seed(ctx, epoch, symbol, interval, cache)
	return nil
}

// seed fetches the initial candle window. The cache belongs to one epoch, so
// a late seed for an abandoned selection lands in an object nobody reads.
func (s *MarketSession) seed(ctx context.Context, epoch uint64, symbol string, interval domain.Interval, cache *candles.SeriesCache) {
	end := time.Now()
	start := end.Add(-time.Duration(s.seedBuckets) * interval.Duration())

	rows, err := s.provider.CandleSnapshot(ctx, symbol, interval, start, end)
	if err != nil {
		s.logger.Warn("candle seed failed",
			zap.String("coin", symbol),
			zap.String("interval", interval.String()),
			zap.Error(err))
		return
	}

	cache.Seed(rows)

	s.mu.Lock()
	current := s.epoch == epoch
	s.mu.Unlock()
	if current {
		s.logger.Info("candle series seeded",
			zap.String("coin", symbol),
			zap.String("interval", interval.String()),
			zap.Int("rows", len(rows)))
	}
}

// ExtendLeft backfills older candles when the visible left edge approaches
// the earliest held bucket. Returns the number of prepended rows.
func (s *MarketSession) ExtendLeft(ctx context.Context, visibleFrom time.Time) (int, error) {
	s.mu.Lock()
	bf := s.backfiller
	s.mu.Unlock()
	if bf == nil {
		return 0, nil
	}
	return bf.MaybeExtendLeft(ctx, visibleFrom)
}

// Close cancels every live subscription.
func (s *MarketSession) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	midsSub := s.midsSub
	s.midsSub = nil
	s.epoch++
	s.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Cancel()
	}
	if midsSub != nil {
		_ = midsSub.Cancel()
	}
}

// Selection returns the active symbol and interval.
func (s *MarketSession) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// Asset returns the metadata of the selected symbol.
func (s *MarketSession) Asset() domain.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asset
}

// MarketKind returns the market kind of the selected symbol.
func (s *MarketSession) MarketKind() domain.MarketKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

// BookSnapshot returns the latest built order book.
func (s *MarketSession) BookSnapshot() domain.BookSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookSnap
}

// RecentTrades returns the buffered trades, newest first.
func (s *MarketSession) RecentTrades() []domain.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trades.Trades()
}

// Candles returns the held candle series, ascending by bucket start.
func (s *MarketSession) Candles() []domain.Candle {
	s.mu.Lock()
	cache := s.cache
	s.mu.Unlock()
	if cache == nil {
		return nil
	}
	return cache.Candles()
}

// Mids returns a copy of the latest per-symbol mid quotes.
func (s *MarketSession) Mids() map[string]domain.MidQuote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.MidQuote, len(s.mids))
	for coin, quote := range s.mids {
		out[coin] = quote
	}
	return out
}

// Assets returns the tradeable universe sorted by name.
func (s *MarketSession) Assets() []domain.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Asset, 0, len(s.assets))
	for _, asset := range s.assets {
		out = append(out, asset)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsConnected reports whether the realtime feed is up.
func (s *MarketSession) IsConnected() bool {
	return s.feed.IsConnected()
}

func (s *MarketSession) lookupAsset(symbol string) (domain.Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.assets[symbol]
	return asset, ok
}

// kindForSymbol spot pairs are addressed as "@<index>" or "BASE/QUOTE";
// everything else in the universe is a perp.
func kindForSymbol(symbol string) domain.MarketKind {
	if strings.HasPrefix(symbol, "@") || strings.Contains(symbol, "/") {
		return domain.MarketKindSpot
	}
	return domain.MarketKindPerp
}

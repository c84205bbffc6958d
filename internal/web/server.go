// Package web exposes the market session over HTTP: an HTML page and an SSE
// stream carrying book, trade, candle and mid-price events.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/hyperdash/internal"
	"github.com/vadiminshakov/hyperdash/internal/domain"
	"github.com/vadiminshakov/hyperdash/internal/services/submit"
	"github.com/vadiminshakov/hyperdash/internal/wire"
	"go.uber.org/zap"
)

const streamPollInterval = time.Second

var oneHundred = decimal.NewFromInt(100)

// marketReader is the slice of the session the server consumes.
type marketReader interface {
	Selection() internal.Selection
	Asset() domain.Asset
	MarketKind() domain.MarketKind
	BookSnapshot() domain.BookSnapshot
	RecentTrades() []domain.Trade
	Candles() []domain.Candle
	Mids() map[string]domain.MidQuote
	Assets() []domain.Asset
	IsConnected() bool
	Select(ctx context.Context, symbol string, interval domain.Interval) error
	ExtendLeft(ctx context.Context, visibleFrom time.Time) (int, error)
}

// orderPlacer places limit orders. Nil when no agent credential is configured.
type orderPlacer interface {
	PlaceLimitOrder(ctx context.Context, params submit.OrderParams) (string, error)
}

// Server exposes HTTP endpoints serving the HTML UI and an SSE stream.
type Server struct {
	Addr   string
	Market marketReader
	Orders orderPlacer
	Logger *zap.Logger
}

// NewServer creates a new web server instance. orders may be nil; the order
// endpoint then reports that trading is not configured.
func NewServer(addr string, market marketReader, orders orderPlacer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, Market: market, Orders: orders, Logger: logger}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/market/stream", s.handleMarketStream)
	mux.HandleFunc("/selection", s.handleSelection)
	mux.HandleFunc("/candles/extend", s.handleExtend)
	mux.HandleFunc("/orders", s.handleOrder)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

type levelDTO struct {
	Price string `json:"px"`
	Size  string `json:"sz"`
	Total string `json:"total"`
}

type spreadDTO struct {
	Absolute    string `json:"absolute,omitempty"`
	Percent     string `json:"percent,omitempty"`
	Unavailable bool   `json:"unavailable,omitempty"`
}

type bookDTO struct {
	Symbol    string     `json:"symbol"`
	Bids      []levelDTO `json:"bids"`
	Asks      []levelDTO `json:"asks"`
	Spread    spreadDTO  `json:"spread"`
	UpdatedAt int64      `json:"updatedAt"`
}

type tradeDTO struct {
	Price  string `json:"px"`
	Size   string `json:"sz"`
	Side   string `json:"side"`
	Time   int64  `json:"time"`
	TxHash string `json:"hash,omitempty"`
}

type candleDTO struct {
	Time   int64  `json:"t"`
	Open   string `json:"o"`
	High   string `json:"h"`
	Low    string `json:"l"`
	Close  string `json:"c"`
	Volume string `json:"v"`
}

type midDTO struct {
	Mid string `json:"mid"`
	Dir int    `json:"dir"`
}

type statusDTO struct {
	Connected bool   `json:"connected"`
	Symbol    string `json:"symbol"`
	Interval  string `json:"interval"`
	Last      string `json:"last,omitempty"`
	Change    string `json:"change,omitempty"`
}

func rankedLevels(levels []domain.RankedLevel) []levelDTO {
	out := make([]levelDTO, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, levelDTO{
			Price: lvl.Price.String(),
			Size:  wire.DisplaySize(lvl.Size),
			Total: wire.DisplaySize(lvl.Total),
		})
	}
	return out
}

func (s *Server) handleMarketStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// comment heartbeat so proxies keep the connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(streamPollInterval)
	defer pollTicker.Stop()

	send := func(event string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			s.Logger.Warn("marshal stream event", zap.String("event", event), zap.Error(err))
			return
		}
		fmt.Fprintf(w, "event: %s\n", event)
		fmt.Fprintf(w, "data: %s\n\n", data)
	}

	sendAll := func() {
		selection := s.Market.Selection()
		asset := s.Market.Asset()
		series := s.Market.Candles()

		status := statusDTO{
			Connected: s.Market.IsConnected(),
			Symbol:    selection.Symbol,
			Interval:  selection.Interval.String(),
		}
		if len(series) > 0 {
			first, last := series[0], series[len(series)-1]
			status.Last = wire.DisplayPrice(last.Close, wire.MaxPriceDecimals(s.Market.MarketKind(), asset.SzDecimals))
			if first.Open.IsPositive() {
				change := last.Close.Sub(first.Open).Div(first.Open).Mul(oneHundred)
				status.Change = wire.DisplayPercentChange(change)
			}
		}
		send("status", status)

		snap := s.Market.BookSnapshot()
		send("book", bookDTO{
			Symbol: snap.Symbol,
			Bids:   rankedLevels(snap.Bids),
			Asks:   rankedLevels(snap.Asks),
			Spread: spreadDTO{
				Absolute:    snap.Spread.Absolute,
				Percent:     snap.Spread.Percent,
				Unavailable: snap.Spread.Unavailable,
			},
			UpdatedAt: snap.UpdatedAt.UnixMilli(),
		})

		trades := s.Market.RecentTrades()
		tradeRows := make([]tradeDTO, 0, len(trades))
		for _, tr := range trades {
			tradeRows = append(tradeRows, tradeDTO{
				Price:  tr.Price.String(),
				Size:   wire.DisplaySize(tr.Size),
				Side:   string(tr.Side),
				Time:   tr.Time.UnixMilli(),
				TxHash: tr.TxHash,
			})
		}
		send("trades", tradeRows)

		candleRows := make([]candleDTO, 0, len(series))
		for _, row := range series {
			candleRows = append(candleRows, candleDTO{
				Time:   row.OpenTimeMs(),
				Open:   row.Open.String(),
				High:   row.High.String(),
				Low:    row.Low.String(),
				Close:  row.Close.String(),
				Volume: wire.DisplayVolume(row.Volume),
			})
		}
		send("candles", candleRows)

		mids := s.Market.Mids()
		midRows := make(map[string]midDTO, len(mids))
		for coin, quote := range mids {
			midRows[coin] = midDTO{Mid: quote.Mid.String(), Dir: quote.Dir}
		}
		send("mids", midRows)

		flusher.Flush()
	}

	sendAll()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			sendAll()
		}
	}
}

type selectionResponse struct {
	Symbol   string         `json:"symbol"`
	Interval string         `json:"interval"`
	Assets   []domain.Asset `json:"assets"`
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		selection := s.Market.Selection()
		writeJSON(w, http.StatusOK, selectionResponse{
			Symbol:   selection.Symbol,
			Interval: selection.Interval.String(),
			Assets:   s.Market.Assets(),
		})
	case http.MethodPost:
		var req struct {
			Symbol   string `json:"symbol"`
			Interval string `json:"interval"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		interval, err := domain.ParseInterval(req.Interval)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.Market.Select(r.Context(), req.Symbol, interval); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.Logger.Info("selection changed",
			zap.String("symbol", req.Symbol),
			zap.String("interval", req.Interval))
		writeJSON(w, http.StatusOK, map[string]string{"symbol": req.Symbol, "interval": req.Interval})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	fromMs, err := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
	if err != nil {
		http.Error(w, "from must be unix milliseconds", http.StatusBadRequest)
		return
	}

	added, err := s.Market.ExtendLeft(r.Context(), time.UnixMilli(fromMs))
	if err != nil {
		s.Logger.Warn("candle extend failed", zap.Error(err))
		http.Error(w, "backfill failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

type orderRequest struct {
	Symbol        string `json:"symbol"`
	IsBuy         bool   `json:"isBuy"`
	Price         string `json:"price"`
	Size          string `json:"size"`
	Tif           string `json:"tif"`
	ReduceOnly    bool   `json:"reduceOnly"`
	ClientOrderID string `json:"clientOrderId"`
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Orders == nil {
		http.Error(w, "trading not configured", http.StatusServiceUnavailable)
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		http.Error(w, "invalid price", http.StatusBadRequest)
		return
	}
	size, err := decimal.NewFromString(req.Size)
	if err != nil {
		http.Error(w, "invalid size", http.StatusBadRequest)
		return
	}

	tif := submit.TimeInForceGTC
	if req.Tif == string(submit.TimeInForceIOC) {
		tif = submit.TimeInForceIOC
	}

	asset := s.Market.Asset()
	if req.Symbol != "" && req.Symbol != asset.Name {
		http.Error(w, "order symbol must match the selected market", http.StatusBadRequest)
		return
	}

	cloid, err := s.Orders.PlaceLimitOrder(r.Context(), submit.OrderParams{
		Coin:          asset.Name,
		Kind:          s.Market.MarketKind(),
		SzDecimals:    asset.SzDecimals,
		IsBuy:         req.IsBuy,
		Price:         price,
		Size:          size,
		Tif:           tif,
		ReduceOnly:    req.ReduceOnly,
		ClientOrderID: req.ClientOrderID,
	})
	if err != nil {
		s.Logger.Warn("order rejected", zap.Error(err))
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"cloid": cloid})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

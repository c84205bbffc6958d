// Package submit is the order-submission boundary. Prices and sizes pass
// through the wire formatter before they reach the SDK, so the submitted
// value is always the value that was displayed.
package submit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/hyperdash/internal/clients"
	"github.com/vadiminshakov/hyperdash/internal/domain"
	"github.com/vadiminshakov/hyperdash/internal/wire"
	"go.uber.org/zap"
)

// CredentialStore provides agent records keyed by wallet owner. Injected
// rather than read from ambient storage so the local-only contract of the
// keys stays visible at the boundary.
type CredentialStore interface {
	Get(owner string) (*domain.AgentRecord, error)
	Put(record domain.AgentRecord) error
	Clear(owner string) error
}

// TimeInForce supported order lifetimes.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "gtc"
	TimeInForceIOC TimeInForce = "ioc"
)

// OrderParams one limit order to place.
type OrderParams struct {
	Coin       string
	Kind       domain.MarketKind
	SzDecimals int
	IsBuy      bool
	Price      decimal.Decimal
	Size       decimal.Decimal
	Tif        TimeInForce
	ReduceOnly bool
	// ClientOrderID free-form idempotency label; generated when empty.
	ClientOrderID string
}

// marketSlippage tolerance used to turn a market order into an IOC limit.
const marketSlippage = 0.005

// Submitter places orders through the SDK exchange.
type Submitter struct {
	ex          *hyperliquid.Exchange
	info        *hyperliquid.Info
	accountAddr string
	logger      *zap.Logger
}

// NewSubmitter creates a submitter over a configured exchange client.
// accountAddr is the wallet the orders trade for.
func NewSubmitter(ex *hyperliquid.Exchange, accountAddr string, logger *zap.Logger) (*Submitter, error) {
	if ex == nil {
		return nil, errors.New("hyperliquid exchange is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{ex: ex, info: ex.Info(), accountAddr: accountAddr, logger: logger}, nil
}

// NewSubmitterFromStore builds a submitter for the owner's stored agent
// credential. The record stays local; only signed payloads go out.
func NewSubmitterFromStore(store CredentialStore, owner, baseURL string, logger *zap.Logger) (*Submitter, error) {
	record, err := store.Get(owner)
	if err != nil {
		return nil, errors.Wrapf(err, "load agent record for %s", owner)
	}
	if record == nil {
		return nil, errors.Errorf("no agent record for %s", owner)
	}

	client, err := clients.NewHyperliquidClient(*record, baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "build exchange client")
	}
	return NewSubmitter(client.Exchange(), client.OwnerAddress(), logger)
}

// PlaceLimitOrder wire-formats the order and submits it. A price or size
// that fails wire formatting aborts the submission; nothing unformattable is
// ever sent.
func (s *Submitter) PlaceLimitOrder(ctx context.Context, params OrderParams) (string, error) {
	req, cloid, err := buildOrderRequest(params)
	if err != nil {
		return "", err
	}

	s.logger.Info("placing order",
		zap.String("coin", params.Coin),
		zap.Bool("is_buy", params.IsBuy),
		zap.Float64("price", req.Price),
		zap.Float64("size", req.Size),
		zap.String("cloid", cloid))

	if _, err := s.ex.Order(ctx, req, nil); err != nil {
		return "", errors.Wrapf(err, "place order for %s", params.Coin)
	}
	return cloid, nil
}

// MarketOrderParams one market-style order: an IOC limit priced with a small
// slippage tolerance around the current mid.
type MarketOrderParams struct {
	Coin          string
	Kind          domain.MarketKind
	SzDecimals    int
	IsBuy         bool
	Size          decimal.Decimal
	ReduceOnly    bool
	ClientOrderID string
}

// PlaceMarketOrder emulates a market order with a slippage-priced IOC limit.
func (s *Submitter) PlaceMarketOrder(ctx context.Context, params MarketOrderParams) (string, error) {
	if params.Coin == "" {
		return "", errors.New("order needs a coin")
	}
	if !params.Size.IsPositive() {
		return "", errors.Errorf("order size must be positive, got %s", params.Size)
	}

	px, err := s.ex.SlippagePrice(ctx, params.Coin, params.IsBuy, marketSlippage, nil)
	if err != nil {
		return "", errors.Wrap(err, "slippage price")
	}

	return s.PlaceLimitOrder(ctx, OrderParams{
		Coin:          params.Coin,
		Kind:          params.Kind,
		SzDecimals:    params.SzDecimals,
		IsBuy:         params.IsBuy,
		Price:         decimal.NewFromFloat(px),
		Size:          params.Size,
		Tif:           TimeInForceIOC,
		ReduceOnly:    params.ReduceOnly,
		ClientOrderID: params.ClientOrderID,
	})
}

// SetLeverage configures cross leverage for a coin. Values of one or lower
// are a no-op.
func (s *Submitter) SetLeverage(ctx context.Context, coin string, leverage int) error {
	if leverage <= 1 {
		return nil
	}
	if _, err := s.ex.UpdateLeverage(ctx, leverage, coin, true); err != nil {
		return errors.Wrapf(err, "set leverage %d for %s", leverage, coin)
	}
	return nil
}

// OrderFilled reports whether the order placed under cloid was filled, and
// the filled size when known.
func (s *Submitter) OrderFilled(ctx context.Context, cloid string) (bool, decimal.Decimal, error) {
	if cloid == "" {
		return false, decimal.Zero, nil
	}

	res, err := s.info.QueryOrderByCloid(ctx, s.accountAddr, cloid)
	if err != nil {
		return false, decimal.Zero, errors.Wrap(err, "query order by cloid")
	}
	if res == nil || res.Status != hyperliquid.OrderQueryStatusSuccess {
		return false, decimal.Zero, nil
	}
	if res.Order.Status != hyperliquid.OrderStatusValueFilled {
		return false, decimal.Zero, nil
	}

	if res.Order.Order.OrigSz != "" {
		if filled, err := decimal.NewFromString(res.Order.Order.OrigSz); err == nil {
			return true, filled, nil
		}
	}
	return true, decimal.Zero, nil
}

// buildOrderRequest converts params into an SDK request with wire-formatted
// price and size.
func buildOrderRequest(params OrderParams) (hyperliquid.CreateOrderRequest, string, error) {
	if params.Coin == "" {
		return hyperliquid.CreateOrderRequest{}, "", errors.New("order needs a coin")
	}
	if !params.Size.IsPositive() {
		return hyperliquid.CreateOrderRequest{}, "", errors.Errorf("order size must be positive, got %s", params.Size)
	}

	priceWire, err := wire.FormatPriceDecimal(params.Price, params.Kind, params.SzDecimals)
	if err != nil {
		return hyperliquid.CreateOrderRequest{}, "", errors.Wrap(err, "format order price")
	}
	sizeWire, err := wire.FormatSizeDecimal(params.Size, params.SzDecimals)
	if err != nil {
		return hyperliquid.CreateOrderRequest{}, "", errors.Wrap(err, "format order size")
	}

	// the SDK takes floats; parse the wire strings back so the submitted
	// values are exactly the formatted ones
	price, err := strconv.ParseFloat(priceWire, 64)
	if err != nil {
		return hyperliquid.CreateOrderRequest{}, "", errors.Wrap(err, "parse wire price")
	}
	size, err := strconv.ParseFloat(sizeWire, 64)
	if err != nil {
		return hyperliquid.CreateOrderRequest{}, "", errors.Wrap(err, "parse wire size")
	}

	tif := hyperliquid.TifGtc
	if params.Tif == TimeInForceIOC {
		tif = hyperliquid.TifIoc
	}

	id := params.ClientOrderID
	if id == "" {
		id = uuid.New().String()
	}
	cloid := cloidFromID(id)

	return hyperliquid.CreateOrderRequest{
		Coin:          params.Coin,
		IsBuy:         params.IsBuy,
		Price:         price,
		Size:          size,
		ReduceOnly:    params.ReduceOnly,
		ClientOrderID: &cloid,
		OrderType: hyperliquid.OrderType{
			Limit: &hyperliquid.LimitOrderType{Tif: tif},
		},
	}, cloid, nil
}

// cloidFromID converts a free-form client ID into a valid cloid
// (0x + 32 hex chars).
func cloidFromID(id string) string {
	s := strings.TrimSpace(id)
	if s == "" {
		s = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	sum := sha256.Sum256([]byte(s))
	return "0x" + hex.EncodeToString(sum[:16])
}

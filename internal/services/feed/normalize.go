// Package feed connects to the exchange WebSocket stream and normalizes its
// payloads into domain types. All payload shape-sniffing lives here; nothing
// outside this package ever sees a raw level or candle record.
package feed

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/hyperdash/internal/domain"
	"go.uber.org/zap"
)

// BookUpdate one full depth snapshot for a symbol, already normalized.
type BookUpdate struct {
	Coin string
	Bids []domain.PriceLevel
	Asks []domain.PriceLevel
	Time time.Time
}

// flexString accepts a JSON string or number and keeps the textual form, so
// decimals never round-trip through float64.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errors.New("empty value")
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// rawLevel accepts both level encodings seen across server and SDK versions:
// the tuple form ["price", "size", ...] and the object form
// {"px": ..., "sz": ...} (or legacy {"price": ..., "size": ...}).
type rawLevel struct {
	Px flexString
	Sz flexString
}

func (l *rawLevel) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var tuple []flexString
		if err := json.Unmarshal(trimmed, &tuple); err != nil {
			return err
		}
		if len(tuple) < 2 {
			return errors.New("level tuple needs price and size")
		}
		l.Px, l.Sz = tuple[0], tuple[1]
		return nil
	}

	var obj struct {
		Px    flexString `json:"px"`
		Sz    flexString `json:"sz"`
		Price flexString `json:"price"`
		Size  flexString `json:"size"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	if obj.Px == "" {
		obj.Px = obj.Price
	}
	if obj.Sz == "" {
		obj.Sz = obj.Size
	}
	l.Px, l.Sz = obj.Px, obj.Sz
	return nil
}

func (l rawLevel) toDomain() (domain.PriceLevel, error) {
	price, err := decimal.NewFromString(string(l.Px))
	if err != nil {
		return domain.PriceLevel{}, errors.Wrapf(err, "level price %q", l.Px)
	}
	size, err := decimal.NewFromString(string(l.Sz))
	if err != nil {
		return domain.PriceLevel{}, errors.Wrapf(err, "level size %q", l.Sz)
	}
	return domain.PriceLevel{Price: price, Size: size}, nil
}

type rawBook struct {
	Coin   string       `json:"coin"`
	Time   int64        `json:"time"`
	Levels [][]rawLevel `json:"levels"`
}

// ParseBookUpdate normalizes a depth snapshot payload. Malformed levels are
// dropped with a diagnostic log and never fail the snapshot.
func ParseBookUpdate(data []byte, logger *zap.Logger) (BookUpdate, error) {
	var raw rawBook
	if err := json.Unmarshal(data, &raw); err != nil {
		return BookUpdate{}, errors.Wrap(err, "decode l2Book payload")
	}

	upd := BookUpdate{Coin: raw.Coin, Time: time.UnixMilli(raw.Time)}
	if len(raw.Levels) > 0 {
		upd.Bids = parseLevels(raw.Coin, raw.Levels[0], logger)
	}
	if len(raw.Levels) > 1 {
		upd.Asks = parseLevels(raw.Coin, raw.Levels[1], logger)
	}
	return upd, nil
}

func parseLevels(coin string, raw []rawLevel, logger *zap.Logger) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		parsed, err := lvl.toDomain()
		if err != nil {
			if logger != nil {
				logger.Debug("dropping malformed book level", zap.String("coin", coin), zap.Error(err))
			}
			continue
		}
		out = append(out, parsed)
	}
	return out
}

type rawTrade struct {
	Coin string     `json:"coin"`
	Side string     `json:"side"`
	Px   flexString `json:"px"`
	Sz   flexString `json:"sz"`
	Time int64      `json:"time"`
	Hash string     `json:"hash"`
}

// ParseTrades normalizes a trade batch. The exchange encodes the aggressor
// side as "A" (resting ask hit, a sell) or "B" (resting bid hit, a buy).
// Malformed records are dropped with a log; the rest of the batch survives.
func ParseTrades(data []byte, logger *zap.Logger) ([]domain.Trade, error) {
	var raw []rawTrade
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decode trades payload")
	}

	out := make([]domain.Trade, 0, len(raw))
	for _, tr := range raw {
		price, err := decimal.NewFromString(string(tr.Px))
		if err != nil {
			if logger != nil {
				logger.Debug("dropping malformed trade", zap.String("coin", tr.Coin), zap.Error(err))
			}
			continue
		}
		size, err := decimal.NewFromString(string(tr.Sz))
		if err != nil {
			if logger != nil {
				logger.Debug("dropping malformed trade", zap.String("coin", tr.Coin), zap.Error(err))
			}
			continue
		}
		side := domain.TradeSideBuy
		if tr.Side == "A" {
			side = domain.TradeSideSell
		}
		out = append(out, domain.Trade{
			Symbol: tr.Coin,
			Price:  price,
			Size:   size,
			Side:   side,
			Time:   time.UnixMilli(tr.Time),
			TxHash: tr.Hash,
		})
	}
	return out, nil
}

type rawCandle struct {
	OpenMs   int64      `json:"t"`
	CloseMs  int64      `json:"T"`
	Coin     string     `json:"s"`
	Interval string     `json:"i"`
	Open     flexString `json:"o"`
	Close    flexString `json:"c"`
	High     flexString `json:"h"`
	Low      flexString `json:"l"`
	Volume   flexString `json:"v"`
}

func (r rawCandle) toDomain() (domain.Candle, error) {
	open, err := decimal.NewFromString(string(r.Open))
	if err != nil {
		return domain.Candle{}, errors.Wrapf(err, "candle open %q", r.Open)
	}
	high, err := decimal.NewFromString(string(r.High))
	if err != nil {
		return domain.Candle{}, errors.Wrapf(err, "candle high %q", r.High)
	}
	low, err := decimal.NewFromString(string(r.Low))
	if err != nil {
		return domain.Candle{}, errors.Wrapf(err, "candle low %q", r.Low)
	}
	closePx, err := decimal.NewFromString(string(r.Close))
	if err != nil {
		return domain.Candle{}, errors.Wrapf(err, "candle close %q", r.Close)
	}
	volume := decimal.Zero
	if r.Volume != "" {
		volume, err = decimal.NewFromString(string(r.Volume))
		if err != nil {
			return domain.Candle{}, errors.Wrapf(err, "candle volume %q", r.Volume)
		}
	}
	return domain.Candle{
		OpenTime: time.UnixMilli(r.OpenMs),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePx,
		Volume:   volume,
	}, nil
}

// ParseCandle normalizes a single live candle tick.
func ParseCandle(data []byte) (domain.Candle, error) {
	var raw rawCandle
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Candle{}, errors.Wrap(err, "decode candle payload")
	}
	return raw.toDomain()
}

// ParseCandles normalizes a historical candle snapshot response. Malformed
// rows are dropped with a log.
func ParseCandles(data []byte, logger *zap.Logger) ([]domain.Candle, error) {
	var raw []rawCandle
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decode candle rows")
	}
	out := make([]domain.Candle, 0, len(raw))
	for _, row := range raw {
		parsed, err := row.toDomain()
		if err != nil {
			if logger != nil {
				logger.Debug("dropping malformed candle row", zap.String("coin", row.Coin), zap.Error(err))
			}
			continue
		}
		out = append(out, parsed)
	}
	return out, nil
}

type rawMids struct {
	Mids map[string]flexString `json:"mids"`
}

// ParseAllMids normalizes an allMids payload into per-symbol mid prices.
func ParseAllMids(data []byte, logger *zap.Logger) (map[string]decimal.Decimal, error) {
	var raw rawMids
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decode allMids payload")
	}
	out := make(map[string]decimal.Decimal, len(raw.Mids))
	for coin, px := range raw.Mids {
		mid, err := decimal.NewFromString(string(px))
		if err != nil {
			if logger != nil {
				logger.Debug("dropping malformed mid", zap.String("coin", coin), zap.Error(err))
			}
			continue
		}
		out[coin] = mid
	}
	return out, nil
}

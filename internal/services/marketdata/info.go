// Package marketdata fetches historical candles and asset metadata from the
// exchange's /info HTTP endpoint.
package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/hyperdash/internal/domain"
	"github.com/vadiminshakov/hyperdash/internal/services/feed"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// InfoClient is a thin client for the POST /info endpoint.
type InfoClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewInfoClient creates a client for the given API base URL, e.g.
// "https://api.hyperliquid.xyz".
func NewInfoClient(apiURL string, logger *zap.Logger) *InfoClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InfoClient{
		endpoint:   apiURL + "/info",
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

type candleSnapshotRequest struct {
	Type string            `json:"type"`
	Req  candleSnapshotReq `json:"req"`
}

type candleSnapshotReq struct {
	Coin      string `json:"coin"`
	Interval  string `json:"interval"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

// CandleSnapshot fetches candles for a closed time range, ascending by bucket
// start.
func (c *InfoClient) CandleSnapshot(ctx context.Context, coin string, interval domain.Interval, start, end time.Time) ([]domain.Candle, error) {
	body, err := c.post(ctx, candleSnapshotRequest{
		Type: "candleSnapshot",
		Req: candleSnapshotReq{
			Coin:      coin,
			Interval:  interval.String(),
			StartTime: start.UnixMilli(),
			EndTime:   end.UnixMilli(),
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "candle snapshot for %s %s", coin, interval)
	}

	rows, err := feed.ParseCandles(body, c.logger)
	if err != nil {
		return nil, errors.Wrapf(err, "parse candle snapshot for %s", coin)
	}
	return rows, nil
}

type metaResponse struct {
	Universe []struct {
		Name        string `json:"name"`
		SzDecimals  int    `json:"szDecimals"`
		MaxLeverage int    `json:"maxLeverage"`
	} `json:"universe"`
}

// Meta fetches the perp universe: one Asset per tradeable symbol.
func (c *InfoClient) Meta(ctx context.Context) ([]domain.Asset, error) {
	body, err := c.post(ctx, map[string]string{"type": "meta"})
	if err != nil {
		return nil, errors.Wrap(err, "fetch meta")
	}

	var meta metaResponse
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, errors.Wrap(err, "decode meta")
	}

	assets := make([]domain.Asset, 0, len(meta.Universe))
	for _, entry := range meta.Universe {
		if entry.Name == "" {
			continue
		}
		assets = append(assets, domain.Asset{
			Name:        entry.Name,
			SzDecimals:  entry.SzDecimals,
			MaxLeverage: entry.MaxLeverage,
		})
	}
	return assets, nil
}

// AllMids fetches the current mid price per symbol.
func (c *InfoClient) AllMids(ctx context.Context) (map[string]decimal.Decimal, error) {
	body, err := c.post(ctx, map[string]string{"type": "allMids"})
	if err != nil {
		return nil, errors.Wrap(err, "fetch allMids")
	}

	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, "decode allMids")
	}

	mids := make(map[string]decimal.Decimal, len(raw))
	for coin, px := range raw {
		mid, err := decimal.NewFromString(px)
		if err != nil {
			c.logger.Debug("dropping malformed mid", zap.String("coin", coin), zap.Error(err))
			continue
		}
		mids[coin] = mid
	}
	return mids, nil
}

func (c *InfoClient) post(ctx context.Context, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("info endpoint returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coin-pulse/internal/market"
	"github.com/coin-pulse/pkg/config"
	"github.com/coin-pulse/pkg/models"
	"github.com/sirupsen/logrus"
)

// BinanceRESTClient handles REST API calls to Binance
type BinanceRESTClient struct {
	client    *http.Client
	baseURL   string
	logger    *logrus.Entry
	candleCap int

	mu        sync.Mutex
	rateLimit time.Duration
	lastCall  time.Time
}

// NewBinanceRESTClient creates a new Binance REST API client
func NewBinanceRESTClient(cfg *config.BinanceConfig, logger *logrus.Logger) *BinanceRESTClient {
	candleCap := cfg.CandleCap
	if candleCap <= 0 || candleCap > market.MaxCandles {
		candleCap = market.MaxCandles
	}
	return &BinanceRESTClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   cfg.APIURL,
		logger:    logger.WithField("component", "binance-rest"),
		rateLimit: cfg.RateLimit,
		candleCap: candleCap,
	}
}

// GetAllTickers fetches 24hr statistics for every trading pair
func (b *BinanceRESTClient) GetAllTickers(ctx context.Context) ([]models.Ticker24h, error) {
	var tickers []tickerResponse
	if err := b.get(ctx, "/api/v3/ticker/24hr", nil, &tickers); err != nil {
		return nil, err
	}

	out := make([]models.Ticker24h, len(tickers))
	for i, t := range tickers {
		out[i] = t.toModel()
	}
	return out, nil
}

// GetAllPrices fetches the latest price of every trading pair
func (b *BinanceRESTClient) GetAllPrices(ctx context.Context) ([]models.SymbolPrice, error) {
	var prices []models.SymbolPrice
	if err := b.get(ctx, "/api/v3/ticker/price", nil, &prices); err != nil {
		return nil, err
	}
	return prices, nil
}

// GetTicker fetches 24hr statistics for one pair
func (b *BinanceRESTClient) GetTicker(ctx context.Context, pair string) (*models.Ticker24h, error) {
	params := url.Values{}
	params.Add("symbol", pair)

	var ticker tickerResponse
	if err := b.get(ctx, "/api/v3/ticker/24hr", params, &ticker); err != nil {
		return nil, err
	}
	t := ticker.toModel()
	return &t, nil
}

// GetCandles fetches kline/candlestick data
func (b *BinanceRESTClient) GetCandles(ctx context.Context, pair, interval string, startTime, endTime int64, limit int) ([]models.Kline, error) {
	params := url.Values{}
	params.Add("symbol", pair)
	params.Add("interval", interval)

	if startTime > 0 {
		params.Add("startTime", strconv.FormatInt(startTime, 10))
	}
	if endTime > 0 {
		params.Add("endTime", strconv.FormatInt(endTime, 10))
	}
	if limit <= 0 || limit > b.candleCap {
		limit = b.candleCap
	}
	params.Add("limit", strconv.Itoa(limit))

	b.logger.WithFields(logrus.Fields{
		"symbol":    pair,
		"interval":  interval,
		"startTime": time.UnixMilli(startTime).Format(time.RFC3339),
		"endTime":   time.UnixMilli(endTime).Format(time.RFC3339),
		"limit":     limit,
	}).Debug("Fetching klines")

	var rawKlines [][]interface{}
	if err := b.get(ctx, "/api/v3/klines", params, &rawKlines); err != nil {
		return nil, err
	}

	klines := make([]models.Kline, 0, len(rawKlines))
	for _, raw := range rawKlines {
		k, ok := parseKline(raw)
		if !ok {
			b.logger.WithField("symbol", pair).Warn("Skipping malformed kline")
			continue
		}
		klines = append(klines, k)
	}

	b.logger.WithFields(logrus.Fields{
		"symbol": pair,
		"count":  len(klines),
	}).Debug("Fetched klines successfully")

	return klines, nil
}

// get issues a rate-limited GET and decodes the JSON body into dst. Network
// failures and non-2xx answers are reported as transport errors.
func (b *BinanceRESTClient) get(ctx context.Context, path string, params url.Values, dst interface{}) error {
	if err := b.enforceRateLimit(ctx); err != nil {
		return &market.TransportError{Op: "GET", Target: path, Err: err}
	}

	fullURL := b.baseURL + path
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return &market.TransportError{Op: "GET", Target: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &market.TransportError{
			Op:     "GET",
			Target: path,
			Err:    fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &market.TransportError{Op: "decode", Target: path, Err: err}
	}
	return nil
}

// enforceRateLimit reserves the next call slot and waits for it. The wait
// ends early with ctx's error; the slot stays reserved either way.
func (b *BinanceRESTClient) enforceRateLimit(ctx context.Context) error {
	if b.rateLimit <= 0 {
		return ctx.Err()
	}

	b.mu.Lock()
	now := time.Now()
	slot := b.lastCall.Add(b.rateLimit)
	if slot.Before(now) {
		slot = now
	}
	b.lastCall = slot
	b.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

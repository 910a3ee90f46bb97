package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coin-pulse/internal/market"
	"github.com/coin-pulse/pkg/config"
	"github.com/coin-pulse/pkg/models"
	"github.com/sirupsen/logrus"
)

// CoinGeckoClient handles CoinGecko API interactions
type CoinGeckoClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *logrus.Entry

	// Rate limiting
	rateLimiter chan struct{}
	stop        chan struct{}
	stopOnce    sync.Once
}

// coinDetail is the subset of /coins/{id} used for the detail screen
type coinDetail struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	MarketCapRank *int   `json:"market_cap_rank"`
	Image         struct {
		Thumb string `json:"thumb"`
		Small string `json:"small"`
		Large string `json:"large"`
	} `json:"image"`
	MarketData struct {
		MarketCap         map[string]float64 `json:"market_cap"`
		CirculatingSupply *float64           `json:"circulating_supply"`
		MarketCapRank     *int               `json:"market_cap_rank"`
	} `json:"market_data"`
}

// NewCoinGeckoClient creates a new CoinGecko client
func NewCoinGeckoClient(cfg *config.CoinGeckoConfig, logger *logrus.Logger) *CoinGeckoClient {
	client := &CoinGeckoClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger.WithField("component", "coingecko"),
		stop:    make(chan struct{}),
	}

	if cfg.RateLimit > 0 {
		client.rateLimiter = make(chan struct{}, 1)
		go client.rateLimitWorker(cfg.RateLimit)
	}

	return client
}

// rateLimitWorker releases one request token per interval
func (c *CoinGeckoClient) rateLimitWorker(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			select {
			case c.rateLimiter <- struct{}{}:
			default:
			}
		}
	}
}

// Close stops the rate limiter
func (c *CoinGeckoClient) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// GetRate returns the price of base (a CoinGecko id) in quote
func (c *CoinGeckoClient) GetRate(ctx context.Context, base, quote string) (float64, error) {
	quote = strings.ToLower(quote)

	params := url.Values{}
	params.Add("ids", base)
	params.Add("vs_currencies", quote)

	var result map[string]map[string]float64
	if err := c.get(ctx, "/simple/price", params, &result); err != nil {
		return 0, err
	}

	rate, ok := result[base][quote]
	if !ok {
		return 0, fmt.Errorf("no %s rate for %s", quote, base)
	}

	c.logger.WithFields(logrus.Fields{
		"base":  base,
		"quote": quote,
		"rate":  rate,
	}).Debug("Fetched conversion rate")

	return rate, nil
}

// GetMarketData fetches market records for a batch of CoinGecko ids
func (c *CoinGeckoClient) GetMarketData(ctx context.Context, ids []string, vsCurrency string, page, pageSize int) ([]models.CoinMarket, error) {
	params := url.Values{}
	params.Add("vs_currency", strings.ToLower(vsCurrency))
	params.Add("ids", strings.Join(ids, ","))
	params.Add("per_page", strconv.Itoa(pageSize))
	params.Add("page", strconv.Itoa(page))
	params.Add("sparkline", "false")

	var coins []models.CoinMarket
	if err := c.get(ctx, "/coins/markets", params, &coins); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"requested": len(ids),
		"received":  len(coins),
	}).Debug("Fetched market data")

	return coins, nil
}

// GetCoin fetches market stats for a single coin
func (c *CoinGeckoClient) GetCoin(ctx context.Context, id, vsCurrency string) (*models.CoinMarket, error) {
	vsCurrency = strings.ToLower(vsCurrency)

	params := url.Values{}
	params.Add("localization", "false")
	params.Add("tickers", "false")
	params.Add("market_data", "true")
	params.Add("community_data", "false")
	params.Add("developer_data", "false")

	var data coinDetail
	if err := c.get(ctx, "/coins/"+url.PathEscape(id), params, &data); err != nil {
		return nil, err
	}

	coin := &models.CoinMarket{
		ID:                data.ID,
		Symbol:            data.Symbol,
		Name:              data.Name,
		Image:             data.Image.Large,
		CirculatingSupply: data.MarketData.CirculatingSupply,
		MarketCapRank:     data.MarketCapRank,
	}
	if coin.MarketCapRank == nil {
		coin.MarketCapRank = data.MarketData.MarketCapRank
	}
	if v, ok := data.MarketData.MarketCap[vsCurrency]; ok {
		coin.MarketCap = &v
	}
	return coin, nil
}

func (c *CoinGeckoClient) get(ctx context.Context, path string, params url.Values, dst interface{}) error {
	if c.rateLimiter != nil {
		select {
		case <-c.rateLimiter:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Add API key if provided
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &market.TransportError{Op: "GET", Target: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &market.TransportError{
			Op:     "GET",
			Target: path,
			Err:    fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &market.TransportError{Op: "decode", Target: path, Err: err}
	}
	return nil
}

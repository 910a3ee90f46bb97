package market

import (
	"context"
	"time"

	"github.com/coin-pulse/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// MaxCandles is the provider's per-request candle cap
const MaxCandles = 1000

// SeriesFetcher loads OHLCV candles normalized to the target currency.
type SeriesFetcher struct {
	tickers   TickerProvider
	converter *QuoteConverter
	target    string
	foreign   string
	limit     int
	logger    *logrus.Entry
}

// NewSeriesFetcher creates a fetcher that prefers <symbol><target> pairs and
// falls back to <symbol><foreign>.
func NewSeriesFetcher(tickers TickerProvider, converter *QuoteConverter, target, foreign string, limit int, logger *logrus.Logger) *SeriesFetcher {
	if limit <= 0 || limit > MaxCandles {
		limit = MaxCandles
	}
	return &SeriesFetcher{
		tickers:   tickers,
		converter: converter,
		target:    target,
		foreign:   foreign,
		limit:     limit,
		logger:    logger.WithField("component", "series-fetcher"),
	}
}

// FetchSeries returns candles for symbol in ascending time order, one per
// provider kline.
func (f *SeriesFetcher) FetchSeries(ctx context.Context, symbol, interval string, start, end int64) ([]models.Candle, error) {
	pair := symbol + f.target
	klines, err := f.tickers.GetCandles(ctx, pair, interval, start, end, f.limit)
	if err == nil {
		return toCandles(klines, one), nil
	}

	f.logger.WithError(err).WithFields(logrus.Fields{
		"symbol": symbol,
		"pair":   pair,
	}).Debug("Target pair unavailable, falling back to foreign pair")

	pair = symbol + f.foreign
	klines, err = f.tickers.GetCandles(ctx, pair, interval, start, end, f.limit)
	if err != nil {
		return nil, &TransportError{Op: "fetch candles", Target: pair, Err: err}
	}

	return toCandles(klines, f.converter.Rate(ctx)), nil
}

// Closes returns the closing prices of the trailing 24h in hourly candles
func (f *SeriesFetcher) Closes(ctx context.Context, symbol string, now time.Time) ([]float64, error) {
	candles, err := f.FetchSeries(ctx, symbol, "1h", now.Add(-24*time.Hour).UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, err
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes, nil
}

func toCandles(klines []models.Kline, rate decimal.Decimal) []models.Candle {
	candles := make([]models.Candle, len(klines))
	for i, k := range klines {
		candles[i] = models.Candle{
			Time:   k.OpenTime,
			Open:   quoted(k.Open, rate),
			High:   quoted(k.High, rate),
			Low:    quoted(k.Low, rate),
			Close:  quoted(k.Close, rate),
			Volume: quoted(k.Volume, rate),
		}
	}
	return candles
}

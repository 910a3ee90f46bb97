package market

import (
	"context"

	"github.com/coin-pulse/pkg/models"
)

// TickerProvider is the ticker/kline REST capability.
type TickerProvider interface {
	GetAllTickers(ctx context.Context) ([]models.Ticker24h, error)
	GetAllPrices(ctx context.Context) ([]models.SymbolPrice, error)
	GetTicker(ctx context.Context, pair string) (*models.Ticker24h, error)
	GetCandles(ctx context.Context, pair, interval string, start, end int64, limit int) ([]models.Kline, error)
}

// TickerStreamer opens a push stream of ticker events for one pair.
// The returned done channel is closed when the connection ends for any
// reason; stop closes it from our side and must be safe to call twice.
type TickerStreamer interface {
	StreamTicker(pair string, onTick func(models.RawTick), onError func(error)) (done <-chan struct{}, stop func(), err error)
}

// MetadataProvider is the market-metadata REST capability.
type MetadataProvider interface {
	GetRate(ctx context.Context, base, quote string) (float64, error)
	GetMarketData(ctx context.Context, ids []string, vsCurrency string, page, pageSize int) ([]models.CoinMarket, error)
	GetCoin(ctx context.Context, id, vsCurrency string) (*models.CoinMarket, error)
}

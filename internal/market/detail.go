package market

import (
	"context"
	"strings"

	"github.com/coin-pulse/pkg/models"
	"github.com/sirupsen/logrus"
)

// DetailFetcher loads the detail view of one asset: its 24h ticker in the
// target currency plus market stats from the metadata provider.
type DetailFetcher struct {
	tickers   TickerProvider
	metadata  MetadataProvider
	resolver  *MetadataResolver
	converter *QuoteConverter
	target    string
	foreign   string
	logger    *logrus.Entry
}

// NewDetailFetcher creates a detail fetcher
func NewDetailFetcher(tickers TickerProvider, metadata MetadataProvider, resolver *MetadataResolver, converter *QuoteConverter, target, foreign string, logger *logrus.Logger) *DetailFetcher {
	return &DetailFetcher{
		tickers:   tickers,
		metadata:  metadata,
		resolver:  resolver,
		converter: converter,
		target:    target,
		foreign:   foreign,
		logger:    logger.WithField("component", "detail-fetcher"),
	}
}

// FetchDetail returns the detail of symbol. A missing ticker on both pairs is
// a transport error; missing market stats degrade to unavailable.
func (f *DetailFetcher) FetchDetail(ctx context.Context, symbol string) (*models.AssetDetail, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	rate := one
	ticker, err := f.tickers.GetTicker(ctx, symbol+f.target)
	if err != nil {
		f.logger.WithError(err).WithField("symbol", symbol).Debug("Target pair unavailable, falling back to foreign pair")

		pair := symbol + f.foreign
		ticker, err = f.tickers.GetTicker(ctx, pair)
		if err != nil {
			return nil, &TransportError{Op: "fetch ticker", Target: pair, Err: err}
		}
		rate = f.converter.Rate(ctx)
	}

	detail := &models.AssetDetail{
		Symbol:             symbol,
		Name:               symbol,
		Price:              quoted(ticker.LastPrice, rate),
		PriceChangePercent: parseFloat(ticker.PriceChangePercent),
		Volume:             quoted(ticker.Volume, rate),
		High:               quoted(ticker.HighPrice, rate),
		Low:                quoted(ticker.LowPrice, rate),
		LogoURL:            models.PlaceholderLogo,
		Popularity:         models.Unavailable,
	}

	id := f.resolver.CanonicalID(symbol)
	coin, err := f.metadata.GetCoin(ctx, id, f.target)
	if err != nil {
		f.logger.WithError(err).WithFields(logrus.Fields{
			"symbol": symbol,
			"id":     id,
		}).Warn("Coin details unavailable")
		return detail, nil
	}

	if coin.Name != "" {
		detail.Name = coin.Name
	}
	if coin.Image != "" {
		detail.LogoURL = coin.Image
	}
	detail.MarketCap = models.StatFromPtr(coin.MarketCap)
	detail.CirculatingSupply = models.StatFromPtr(coin.CirculatingSupply)
	detail.Popularity = models.PopularityFromRank(coin.MarketCapRank)

	return detail, nil
}

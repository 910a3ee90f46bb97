package market

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/coin-pulse/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SnapshotFetcher builds paginated, currency-normalized asset summaries by
// joining tickers, prices, metadata, market data and short price history.
type SnapshotFetcher struct {
	tickers   TickerProvider
	metadata  MetadataProvider
	resolver  *MetadataResolver
	converter *QuoteConverter
	series    *SeriesFetcher
	target    string
	foreign   string
	now       func() time.Time
	logger    *logrus.Entry
}

// NewSnapshotFetcher creates a snapshot fetcher
func NewSnapshotFetcher(
	tickers TickerProvider,
	metadata MetadataProvider,
	resolver *MetadataResolver,
	converter *QuoteConverter,
	series *SeriesFetcher,
	target, foreign string,
	logger *logrus.Logger,
) *SnapshotFetcher {
	return &SnapshotFetcher{
		tickers:   tickers,
		metadata:  metadata,
		resolver:  resolver,
		converter: converter,
		series:    series,
		target:    target,
		foreign:   foreign,
		now:       time.Now,
		logger:    logger.WithField("component", "snapshot-fetcher"),
	}
}

// listing is one filtered ticker together with its base symbol
type listing struct {
	symbol  string
	ticker  models.Ticker24h
	foreign bool
}

// FetchPage returns page pageNumber (1-based) of pageSize assets. The ticker
// and price lists are required; every other source degrades to placeholders.
func (f *SnapshotFetcher) FetchPage(ctx context.Context, pageNumber, pageSize int) (models.Page, error) {
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	var (
		tickers []models.Ticker24h
		prices  []models.SymbolPrice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tickers, err = f.tickers.GetAllTickers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		prices, err = f.tickers.GetAllPrices(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		if IsTransport(err) {
			return models.Page{}, err
		}
		return models.Page{}, &TransportError{Op: "fetch snapshot", Target: "tickers", Err: err}
	}

	listings := f.filter(tickers)
	start := (pageNumber - 1) * pageSize
	end := pageNumber * pageSize
	if start > len(listings) {
		start = len(listings)
	}
	if end > len(listings) {
		end = len(listings)
	}
	page := listings[start:end]
	hasMore := pageNumber*pageSize < len(listings)

	priceBySymbol := make(map[string]string, len(prices))
	for _, p := range prices {
		priceBySymbol[p.Symbol] = p.Price
	}

	ids := make([]string, len(page))
	for i, l := range page {
		ids[i] = f.resolver.CanonicalID(l.symbol)
	}

	var (
		meta       map[string]models.CoinMeta
		markets    map[string]models.CoinMarket
		sparklines = make([][]float64, len(page))
		wg         sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		meta = f.resolver.Resolve(ctx, ids)
	}()
	go func() {
		defer wg.Done()
		markets = f.marketData(ctx, page)
	}()

	now := f.now()
	for i, l := range page {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			closes, err := f.series.Closes(ctx, symbol, now)
			if err != nil {
				f.logger.WithError(err).WithField("symbol", symbol).Warn("Sparkline unavailable")
				closes = []float64{}
			}
			sparklines[i] = closes
		}(i, l.symbol)
	}
	wg.Wait()

	assets := make([]models.AssetSummary, len(page))
	for i, l := range page {
		r := f.rateFor(ctx, l.foreign)

		rawPrice, ok := priceBySymbol[l.ticker.Symbol]
		if !ok {
			rawPrice = l.ticker.LastPrice
		}

		m, hasMeta := meta[ids[i]]
		mk, hasMarket := markets[strings.ToUpper(l.symbol)]

		assets[i] = models.AssetSummary{
			Symbol:             l.symbol,
			Name:               pickName(l.symbol, mk, hasMarket, m, hasMeta),
			Price:              quoted(rawPrice, r),
			PriceChangePercent: parseFloat(l.ticker.PriceChangePercent),
			Volume:             quoted(l.ticker.Volume, r),
			High:               quoted(l.ticker.HighPrice, r),
			Low:                quoted(l.ticker.LowPrice, r),
			LogoURL:            pickLogo(mk, hasMarket, m, hasMeta),
			Sparkline:          sparklines[i],
		}
	}

	f.logger.WithFields(logrus.Fields{
		"page":     pageNumber,
		"size":     len(assets),
		"total":    len(listings),
		"has_more": hasMore,
	}).Debug("Fetched snapshot page")

	return models.Page{Assets: assets, HasMore: hasMore}, nil
}

// filter keeps pairs quoted in the target or foreign currency, preserving
// provider order.
func (f *SnapshotFetcher) filter(tickers []models.Ticker24h) []listing {
	out := make([]listing, 0, len(tickers))
	for _, t := range tickers {
		switch {
		case strings.HasSuffix(t.Symbol, f.target) && len(t.Symbol) > len(f.target):
			out = append(out, listing{symbol: strings.TrimSuffix(t.Symbol, f.target), ticker: t})
		case strings.HasSuffix(t.Symbol, f.foreign) && len(t.Symbol) > len(f.foreign):
			out = append(out, listing{symbol: strings.TrimSuffix(t.Symbol, f.foreign), ticker: t, foreign: true})
		}
	}
	return out
}

// marketData fetches market records for the page keyed by upper-case symbol.
// Failures are logged and yield an empty map.
func (f *SnapshotFetcher) marketData(ctx context.Context, page []listing) map[string]models.CoinMarket {
	out := make(map[string]models.CoinMarket)
	if len(page) == 0 {
		return out
	}

	ids := make([]string, len(page))
	for i, l := range page {
		ids[i] = f.resolver.CanonicalID(l.symbol)
	}

	coins, err := f.metadata.GetMarketData(ctx, ids, f.converter.target, 1, len(ids))
	if err != nil {
		f.logger.WithError(err).WithField("ids", len(ids)).Warn("Market data unavailable")
		return out
	}
	for _, c := range coins {
		out[strings.ToUpper(c.Symbol)] = c
	}
	return out
}

func pickName(symbol string, mk models.CoinMarket, hasMarket bool, m models.CoinMeta, hasMeta bool) string {
	switch {
	case hasMarket && mk.Name != "":
		return mk.Name
	case hasMeta && m.Name != "":
		return m.Name
	default:
		return symbol
	}
}

func pickLogo(mk models.CoinMarket, hasMarket bool, m models.CoinMeta, hasMeta bool) string {
	switch {
	case hasMeta && m.LogoURL != "":
		return m.LogoURL
	case hasMarket && mk.Image != "":
		return mk.Image
	default:
		return models.PlaceholderLogo
	}
}

// rateFor returns the multiplier for a pair quoted in foreign or target currency
func (f *SnapshotFetcher) rateFor(ctx context.Context, foreign bool) decimal.Decimal {
	if !foreign {
		return one
	}
	return f.converter.Rate(ctx)
}

package market

import (
	"context"
	"strings"

	"github.com/coin-pulse/internal/cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// QuoteConverter converts foreign-quote amounts into the target currency.
// The rate is fetched once per store lifetime and never refreshed; a failed
// fetch caches the fallback so later calls stay fast and consistent.
type QuoteConverter struct {
	provider MetadataProvider
	store    cache.Store
	base     string
	target   string
	fallback decimal.Decimal
	logger   *logrus.Entry
}

// NewQuoteConverter creates a converter for base (a provider asset id such as
// "tether") priced in target (such as "INR").
func NewQuoteConverter(provider MetadataProvider, store cache.Store, base, target string, fallback float64, logger *logrus.Logger) *QuoteConverter {
	return &QuoteConverter{
		provider: provider,
		store:    store,
		base:     base,
		target:   strings.ToLower(target),
		fallback: decimal.NewFromFloat(fallback),
		logger:   logger.WithField("component", "quote-converter"),
	}
}

func (c *QuoteConverter) cacheKey() string {
	return "rate:" + c.base + ":" + c.target
}

// Rate returns the cached conversion rate, fetching it on first use.
func (c *QuoteConverter) Rate(ctx context.Context) decimal.Decimal {
	var cached decimal.Decimal
	ok, err := c.store.Get(ctx, c.cacheKey(), &cached)
	if err != nil {
		c.logger.WithError(err).Warn("Rate cache read failed")
	}
	if ok {
		return cached
	}

	rate := c.fallback
	value, err := c.provider.GetRate(ctx, c.base, c.target)
	switch {
	case err != nil && ctx.Err() != nil:
		// The caller went away; don't pin the fallback for the whole process.
		return c.fallback
	case err != nil:
		c.logger.WithError(err).WithField("fallback", c.fallback.String()).Warn("Rate fetch failed, using fallback rate")
	case value <= 0:
		c.logger.WithField("rate", value).Warn("Provider returned a non-positive rate, using fallback rate")
	default:
		rate = decimal.NewFromFloat(value)
	}

	if err := c.store.Set(ctx, c.cacheKey(), rate); err != nil {
		c.logger.WithError(err).Warn("Rate cache write failed")
	}
	return rate
}

// Convert parses a foreign-quote decimal string and converts it.
func (c *QuoteConverter) Convert(ctx context.Context, raw string) float64 {
	return quoted(raw, c.Rate(ctx))
}

var one = decimal.NewFromInt(1)

// quoted parses a provider decimal string and multiplies it by rate.
// Unparseable input yields zero.
func quoted(raw string, rate decimal.Decimal) float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	f, _ := d.Mul(rate).Float64()
	return f
}

// parseFloat parses a provider decimal string without conversion
func parseFloat(raw string) float64 {
	return quoted(raw, one)
}

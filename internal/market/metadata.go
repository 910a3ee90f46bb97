package market

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/coin-pulse/internal/cache"
	"github.com/coin-pulse/pkg/models"
	"github.com/sirupsen/logrus"
)

// canonicalIDs maps trading symbols whose provider id is not simply the
// lower-cased symbol.
var canonicalIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"BNB":   "binancecoin",
	"ADA":   "cardano",
	"XRP":   "ripple",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"UNI":   "uniswap",
	"BCH":   "bitcoin-cash",
	"LTC":   "litecoin",
	"LINK":  "chainlink",
	"MATIC": "matic-network",
	"XLM":   "stellar",
	"ETC":   "ethereum-classic",
	"ALGO":  "algorand",
	"TRX":   "tron",
	"FIL":   "filecoin",
	"XTZ":   "tezos",
	"ATOM":  "cosmos",
	"AAVE":  "aave",
	"SOL":   "solana",
	"SHIB":  "shiba-inu",
	"AVAX":  "avalanche-2",
	"ICP":   "internet-computer",
	"VET":   "vechain",
	"USDT":  "tether",
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MetadataResolver resolves display metadata for canonical asset ids in
// rate-limited batches. Complete resolutions are cached for the lifetime
// of the store.
type MetadataResolver struct {
	provider   MetadataProvider
	store      cache.Store
	vsCurrency string
	batchSize  int
	delay      time.Duration
	sleep      Sleeper
	logger     *logrus.Entry
}

// NewMetadataResolver creates a resolver issuing at most batchSize ids per
// request with delay between consecutive requests.
func NewMetadataResolver(provider MetadataProvider, store cache.Store, vsCurrency string, batchSize int, delay time.Duration, logger *logrus.Logger) *MetadataResolver {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &MetadataResolver{
		provider:   provider,
		store:      store,
		vsCurrency: strings.ToLower(vsCurrency),
		batchSize:  batchSize,
		delay:      delay,
		sleep:      SleepContext,
		logger:     logger.WithField("component", "metadata-resolver"),
	}
}

// SetSleeper replaces the inter-batch wait
func (r *MetadataResolver) SetSleeper(s Sleeper) {
	r.sleep = s
}

// CanonicalID maps a trading symbol (base asset, e.g. "BTC") to its
// provider id.
func (r *MetadataResolver) CanonicalID(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if id, ok := canonicalIDs[symbol]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

// Resolve returns metadata for the given ids. Ids missing from the result
// have no metadata available; a failing batch is logged and skipped.
func (r *MetadataResolver) Resolve(ctx context.Context, ids []string) map[string]models.CoinMeta {
	ids = uniqueSorted(ids)
	result := make(map[string]models.CoinMeta, len(ids))
	if len(ids) == 0 {
		return result
	}

	key := batchKey(ids)
	if ok, err := r.store.Get(ctx, key, &result); err != nil {
		r.logger.WithError(err).Warn("Metadata cache read failed")
	} else if ok {
		return result
	}

	complete := true
	for start, batch := 0, 0; start < len(ids); start, batch = start+r.batchSize, batch+1 {
		if start > 0 {
			if err := r.sleep(ctx, r.delay); err != nil {
				r.logger.WithError(err).Warn("Metadata resolution interrupted")
				return result
			}
		}

		end := start + r.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		coins, err := r.provider.GetMarketData(ctx, chunk, r.vsCurrency, 1, len(chunk))
		if err != nil {
			complete = false
			r.logger.WithError(err).WithFields(logrus.Fields{
				"batch": batch + 1,
				"ids":   len(chunk),
			}).Warn("Metadata batch failed, skipping")
			continue
		}

		for _, coin := range coins {
			result[coin.ID] = models.CoinMeta{Name: coin.Name, LogoURL: coin.Image}
		}
	}

	if complete {
		if err := r.store.Set(ctx, key, result); err != nil {
			r.logger.WithError(err).Warn("Metadata cache write failed")
		}
	}
	return result
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// batchKey is a stable hash of a sorted id batch
func batchKey(ids []string) string {
	sum := sha256.Sum256([]byte(strings.Join(ids, ",")))
	return "meta:" + hex.EncodeToString(sum[:])
}

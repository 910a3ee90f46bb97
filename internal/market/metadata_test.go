package market

import (
	"context"
	"fmt"
	"testing"

	"github.com/coin-pulse/internal/cache"
	"github.com/coin-pulse/pkg/logger"
	"github.com/coin-pulse/pkg/models"
)

func coinIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("coin-%03d", i)
	}
	return ids
}

func coinsFor(ids []string) map[string]models.CoinMarket {
	out := make(map[string]models.CoinMarket, len(ids))
	for _, id := range ids {
		out[id] = models.CoinMarket{ID: id, Name: "Name " + id, Image: "https://img/" + id}
	}
	return out
}

func newResolver(md MetadataProvider, sleeps *int) (*MetadataResolver, *cache.MemoryStore) {
	store := cache.NewMemoryStore()
	r := NewMetadataResolver(md, store, "INR", 50, 0, logger.Discard())
	r.SetSleeper(noSleep(sleeps))
	return r, store
}

func TestMetadataResolver_Batches(t *testing.T) {
	ids := coinIDs(120)
	md := &fakeMetadata{coins: coinsFor(ids)}
	var sleeps int
	r, _ := newResolver(md, &sleeps)

	got := r.Resolve(context.Background(), ids)

	if len(md.batches) != 3 {
		t.Fatalf("issued %d requests, want 3", len(md.batches))
	}
	for i, want := range []int{50, 50, 20} {
		if len(md.batches[i]) != want {
			t.Errorf("batch %d has %d ids, want %d", i+1, len(md.batches[i]), want)
		}
	}
	if sleeps != 2 {
		t.Errorf("slept %d times, want 2", sleeps)
	}
	if len(got) != 120 {
		t.Errorf("resolved %d ids, want 120", len(got))
	}
	if got["coin-007"].Name != "Name coin-007" {
		t.Errorf("coin-007 = %+v", got["coin-007"])
	}
}

func TestMetadataResolver_CachesCompleteResolution(t *testing.T) {
	ids := coinIDs(10)
	md := &fakeMetadata{coins: coinsFor(ids)}
	var sleeps int
	r, _ := newResolver(md, &sleeps)
	ctx := context.Background()

	r.Resolve(ctx, ids)

	// Same set in a different order with a duplicate hits the cache
	reordered := append([]string{ids[9], ids[9]}, ids[:9]...)
	got := r.Resolve(ctx, reordered)

	if md.batchCount() != 1 {
		t.Errorf("issued %d requests, want 1", md.batchCount())
	}
	if len(got) != 10 {
		t.Errorf("resolved %d ids, want 10", len(got))
	}
}

func TestMetadataResolver_FailedBatchIsSkipped(t *testing.T) {
	ids := coinIDs(120)
	md := &fakeMetadata{coins: coinsFor(ids), failBatch: map[int]bool{2: true}}
	var sleeps int
	r, store := newResolver(md, &sleeps)

	got := r.Resolve(context.Background(), ids)

	if len(got) != 70 {
		t.Errorf("resolved %d ids, want 70", len(got))
	}
	if _, ok := got["coin-060"]; ok {
		t.Errorf("coin-060 came from the failed batch")
	}
	if store.Len() != 0 {
		t.Errorf("partial resolution was cached")
	}

	// The next call retries every batch
	r.Resolve(context.Background(), ids)
	if md.batchCount() != 6 {
		t.Errorf("issued %d requests, want 6", md.batchCount())
	}
}

func TestMetadataResolver_Empty(t *testing.T) {
	md := &fakeMetadata{}
	var sleeps int
	r, _ := newResolver(md, &sleeps)

	if got := r.Resolve(context.Background(), nil); len(got) != 0 {
		t.Errorf("Resolve(nil) = %v", got)
	}
	if md.batchCount() != 0 {
		t.Errorf("issued %d requests for no ids", md.batchCount())
	}
}

func TestMetadataResolver_CanonicalID(t *testing.T) {
	r := NewMetadataResolver(&fakeMetadata{}, cache.NewMemoryStore(), "INR", 50, 0, logger.Discard())

	tests := map[string]string{
		"BTC":   "bitcoin",
		"eth":   "ethereum",
		"BNB":   "binancecoin",
		"AVAX":  "avalanche-2",
		"MATIC": "matic-network",
		"PEPE":  "pepe",
	}
	for symbol, want := range tests {
		if got := r.CanonicalID(symbol); got != want {
			t.Errorf("CanonicalID(%q) = %q, want %q", symbol, got, want)
		}
	}
}

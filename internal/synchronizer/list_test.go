package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coin-pulse/pkg/logger"
	"github.com/coin-pulse/pkg/models"
)

var errTransport = errors.New("transport failure")

// pagedFetcher serves total assets in pages; gate, when set, blocks every
// fetch until a value is received.
type pagedFetcher struct {
	mu    sync.Mutex
	total int
	calls []int
	fail  map[int]bool
	gate  chan struct{}
}

func (f *pagedFetcher) FetchPage(ctx context.Context, pageNumber, pageSize int) (models.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pageNumber)
	fail := f.fail[pageNumber]
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}
	if fail {
		return models.Page{}, errTransport
	}

	var assets []models.AssetSummary
	for i := (pageNumber - 1) * pageSize; i < pageNumber*pageSize && i < f.total; i++ {
		assets = append(assets, models.AssetSummary{Symbol: fmt.Sprintf("C%d", i), Price: 1})
	}
	return models.Page{Assets: assets, HasMore: pageNumber*pageSize < f.total}, nil
}

func (f *pagedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestAssetList_LoadAndPaginate(t *testing.T) {
	f := &pagedFetcher{total: 120}
	l := NewAssetList(f, 50, logger.Discard())
	ctx := context.Background()

	if err := l.Load(ctx); err != nil {
		t.Fatal(err)
	}
	st := l.State()
	if len(st.Assets) != 50 || !st.HasMore || st.Page != 1 || st.Loading {
		t.Fatalf("after Load: %d assets hasMore=%v page=%d", len(st.Assets), st.HasMore, st.Page)
	}

	l.LoadMore(ctx)
	l.LoadMore(ctx)
	st = l.State()
	if len(st.Assets) != 120 || st.HasMore || st.Page != 3 {
		t.Fatalf("after two LoadMore: %d assets hasMore=%v page=%d", len(st.Assets), st.HasMore, st.Page)
	}
	if st.Assets[119].Symbol != "C119" {
		t.Errorf("last asset = %s", st.Assets[119].Symbol)
	}

	// No more pages: no fetch
	l.LoadMore(ctx)
	if f.callCount() != 3 {
		t.Errorf("fetches = %d, want 3", f.callCount())
	}
}

func TestAssetList_LoadFailure(t *testing.T) {
	f := &pagedFetcher{total: 120, fail: map[int]bool{1: true}}
	l := NewAssetList(f, 50, logger.Discard())

	if err := l.Load(context.Background()); !errors.Is(err, errTransport) {
		t.Fatalf("err = %v", err)
	}
	st := l.State()
	if st.Error != ErrAssetsMessage || len(st.Assets) != 0 || st.Loading || st.HasMore {
		t.Errorf("state = %+v", st)
	}

	// Failed initial load never enables pagination
	l.LoadMore(context.Background())
	if f.callCount() != 1 {
		t.Errorf("fetches = %d, want 1", f.callCount())
	}
}

func TestAssetList_LoadMoreFailureKeepsPage(t *testing.T) {
	f := &pagedFetcher{total: 120, fail: map[int]bool{2: true}}
	l := NewAssetList(f, 50, logger.Discard())
	ctx := context.Background()

	l.Load(ctx)
	if err := l.LoadMore(ctx); err == nil {
		t.Fatal("expected error")
	}
	st := l.State()
	if st.Error != ErrAssetsMessage || st.Page != 1 || len(st.Assets) != 50 || !st.HasMore {
		t.Fatalf("state after failure = %+v", st)
	}

	delete(f.fail, 2)
	l.LoadMore(ctx)
	st = l.State()
	if st.Page != 2 || len(st.Assets) != 100 || st.Error != "" {
		t.Errorf("retry: page=%d assets=%d err=%q", st.Page, len(st.Assets), st.Error)
	}
}

func TestAssetList_ConcurrentLoadMoreAppendsOnce(t *testing.T) {
	f := &pagedFetcher{total: 120}
	l := NewAssetList(f, 50, logger.Discard())
	ctx := context.Background()
	l.Load(ctx)

	f.gate = make(chan struct{})
	done := make(chan struct{})
	go func() {
		l.LoadMore(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !l.State().LoadingMore && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !l.State().LoadingMore {
		t.Fatal("first LoadMore never started")
	}

	// Second call while the first is pending returns immediately
	if err := l.LoadMore(ctx); err != nil {
		t.Fatal(err)
	}

	f.gate <- struct{}{}
	<-done

	if got := len(l.State().Assets); got != 100 {
		t.Errorf("assets = %d, want exactly one page appended (100)", got)
	}
	if f.callCount() != 2 {
		t.Errorf("fetches = %d, want 2", f.callCount())
	}
}

func TestAssetList_ApplyTick(t *testing.T) {
	l := NewAssetList(&pagedFetcher{total: 3}, 50, logger.Discard())
	l.Load(context.Background())

	if !l.ApplyTick(models.Tick{Symbol: "C1", Price: 99, PriceChangePercent: -1.5}) {
		t.Fatal("tick not applied")
	}
	a := l.State().Assets[1]
	if a.Price != 99 || a.PriceChangePercent != -1.5 {
		t.Errorf("asset = %+v", a)
	}
	if l.ApplyTick(models.Tick{Symbol: "NOPE", Price: 1}) {
		t.Error("unknown symbol reported as applied")
	}
	if got := l.Symbols(); len(got) != 3 || got[0] != "C0" {
		t.Errorf("Symbols = %v", got)
	}
}

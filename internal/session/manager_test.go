package session

import (
	"context"
	"testing"
	"time"

	"github.com/coin-pulse/internal/synchronizer"
	"github.com/coin-pulse/pkg/config"
	"github.com/coin-pulse/pkg/logger"
	"github.com/coin-pulse/pkg/models"
)

type countingFetcher struct {
	calls int
}

func (f *countingFetcher) FetchPage(_ context.Context, page, size int) (models.Page, error) {
	f.calls++
	return models.Page{
		Assets:  []models.AssetSummary{{Symbol: "BTC"}},
		HasMore: false,
	}, nil
}

func newTestManager(fetcher synchronizer.PageFetcher, idle time.Duration) *Manager {
	log := logger.Discard()
	return NewManager(
		func() *synchronizer.AssetList { return synchronizer.NewAssetList(fetcher, 50, log) },
		func(symbol string) *synchronizer.AssetDetail {
			return synchronizer.NewAssetDetail(symbol, nil, nil, time.UTC, log)
		},
		&config.SessionConfig{IdleTimeout: idle, SweepInterval: time.Minute},
		log,
	)
}

func TestManager_CreateGetDelete(t *testing.T) {
	m := newTestManager(&countingFetcher{}, time.Minute)

	s := m.Create()
	if s.ID == "" {
		t.Fatal("empty session id")
	}
	if got, ok := m.Get(s.ID); !ok || got != s {
		t.Fatalf("Get(%s) = %v, %v", s.ID, got, ok)
	}
	if other := m.Create(); other.ID == s.ID {
		t.Error("session ids collide")
	}

	if !m.Delete(s.ID) {
		t.Error("Delete returned false for live session")
	}
	if m.Delete(s.ID) {
		t.Error("second Delete returned true")
	}
	if _, ok := m.Get(s.ID); ok {
		t.Error("deleted session still reachable")
	}
}

func TestManager_SweepEvictsIdle(t *testing.T) {
	m := newTestManager(&countingFetcher{}, 10*time.Minute)
	clock := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	stale := m.Create()
	fresh := m.Create()

	clock = clock.Add(8 * time.Minute)
	m.Get(fresh.ID)

	clock = clock.Add(5 * time.Minute)
	if n := m.sweep(); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if _, ok := m.Get(stale.ID); ok {
		t.Error("stale session survived sweep")
	}
	if _, ok := m.Get(fresh.ID); !ok {
		t.Error("recently used session evicted")
	}
}

func TestSession_EnsureListLoadsOnce(t *testing.T) {
	fetcher := &countingFetcher{}
	s := newTestManager(fetcher, time.Minute).Create()

	s.EnsureList(context.Background())
	s.EnsureList(context.Background())

	if fetcher.calls != 1 {
		t.Errorf("FetchPage called %d times, want 1", fetcher.calls)
	}
	if st := s.List.State(); len(st.Assets) != 1 || st.Page != 1 {
		t.Errorf("list state = %+v", st)
	}
}

func TestSession_DetailPerSymbol(t *testing.T) {
	s := newTestManager(&countingFetcher{}, time.Minute).Create()

	btc, created := s.Detail("btc")
	if !created || btc.Symbol() != "BTC" {
		t.Fatalf("Detail(btc) = %v, created=%v", btc.Symbol(), created)
	}
	again, created := s.Detail("BTC")
	if created || again != btc {
		t.Error("second Detail call did not reuse synchronizer")
	}
	if _, ok := s.LookupDetail("eth"); ok {
		t.Error("LookupDetail created a synchronizer")
	}
}

func TestManager_StartStop(t *testing.T) {
	m := newTestManager(&countingFetcher{}, time.Minute)

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop(); err != nil {
		t.Errorf("second Stop = %v", err)
	}
}

func TestManager_PublishTickUpdatesLists(t *testing.T) {
	m := newTestManager(&countingFetcher{}, time.Minute)
	loaded := m.Create()
	loaded.EnsureList(context.Background())
	idle := m.Create()

	if err := m.PublishTick(models.Tick{Symbol: "BTC", Price: 42, PriceChangePercent: 1.5}); err != nil {
		t.Fatal(err)
	}

	got := loaded.List.State().Assets
	if len(got) != 1 || got[0].Price != 42 || got[0].PriceChangePercent != 1.5 {
		t.Errorf("loaded list = %+v", got)
	}
	if n := len(idle.List.State().Assets); n != 0 {
		t.Errorf("unloaded list has %d rows", n)
	}
}

package synchronizer

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/coin-pulse/pkg/logger"
	"github.com/coin-pulse/pkg/models"
)

type stubDetails struct {
	mu     sync.Mutex
	calls  int
	detail models.AssetDetail
	err    error
}

func (s *stubDetails) FetchDetail(ctx context.Context, symbol string) (*models.AssetDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	d := s.detail
	d.Symbol = symbol
	return &d, nil
}

type seriesCall struct {
	interval   string
	start, end int64
}

type stubSeries struct {
	mu      sync.Mutex
	calls   []seriesCall
	byFrame map[string][]models.Candle // by interval
	err     error
}

func (s *stubSeries) FetchSeries(ctx context.Context, symbol, interval string, start, end int64) ([]models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, seriesCall{interval, start, end})
	if s.err != nil {
		return nil, s.err
	}
	return s.byFrame[interval], nil
}

var fixedNow = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func minuteCandles(n int, closes func(i int) float64) []models.Candle {
	start := fixedNow.Add(-time.Hour)
	out := make([]models.Candle, n)
	for i := range out {
		c := closes(i)
		out[i] = models.Candle{
			Time:   start.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: float64(i + 1),
		}
	}
	return out
}

func newDetail(details *stubDetails, series *stubSeries) *AssetDetail {
	d := NewAssetDetail("btc", details, series, time.UTC, logger.Discard())
	d.now = func() time.Time { return fixedNow }
	return d
}

func TestAssetDetail_HourWindow(t *testing.T) {
	capValue := 1e12
	details := &stubDetails{detail: models.AssetDetail{
		Name: "Bitcoin", Price: 50, Volume: 7, PriceChangePercent: 3,
		MarketCap: models.StatOf(capValue), Popularity: "#1",
	}}
	series := &stubSeries{byFrame: map[string][]models.Candle{
		"1m": minuteCandles(60, func(i int) float64 { return 100 + float64(i) }),
	}}
	d := newDetail(details, series)
	ctx := context.Background()

	if err := d.LoadDetail(ctx); err != nil {
		t.Fatal(err)
	}
	if err := d.LoadSeries(ctx); err != nil {
		t.Fatal(err)
	}

	call := series.calls[0]
	if call.interval != "1m" || call.end-call.start != 3600000 {
		t.Errorf("series call = %+v, want 1m over one hour", call)
	}

	st := d.State()
	if len(st.Chart.Values) > 60 || len(st.Chart.Labels) != len(st.Chart.Values) {
		t.Fatalf("chart has %d values, %d labels", len(st.Chart.Values), len(st.Chart.Labels))
	}
	want := (159.0 - 100.0) / 100.0 * 100
	if math.Abs(st.Detail.PriceChangePercent-want) > 1e-9 {
		t.Errorf("percent change = %v, want %v", st.Detail.PriceChangePercent, want)
	}
	if st.Detail.Price != 159 || st.Detail.Volume != 60 {
		t.Errorf("detail price/volume = %v/%v, want latest candle 159/60", st.Detail.Price, st.Detail.Volume)
	}
	if st.Stats.Price != models.StatOf(159) || st.Stats.MarketCap != models.StatOf(capValue) || st.Stats.Popularity != "#1" {
		t.Errorf("stats = %+v", st.Stats)
	}
	if st.Chart.Labels[0] != "11:00" {
		t.Errorf("first label = %q, want 11:00", st.Chart.Labels[0])
	}
	if st.Loading || st.Error != "" {
		t.Errorf("loading=%v error=%q", st.Loading, st.Error)
	}
}

func TestAssetDetail_LoadDetailOnce(t *testing.T) {
	details := &stubDetails{detail: models.AssetDetail{Name: "Bitcoin"}}
	d := newDetail(details, &stubSeries{})
	ctx := context.Background()

	d.LoadDetail(ctx)
	d.LoadDetail(ctx)
	d.SetTimeFrame(ctx, models.TimeFrame1W)

	if details.calls != 1 {
		t.Errorf("detail fetched %d times, want 1", details.calls)
	}
}

func TestAssetDetail_SetTimeFrameReloadsSeriesOnly(t *testing.T) {
	details := &stubDetails{detail: models.AssetDetail{Name: "Bitcoin"}}
	series := &stubSeries{byFrame: map[string][]models.Candle{
		"1m": minuteCandles(3, func(i int) float64 { return 10 }),
		"1h": minuteCandles(2, func(i int) float64 { return float64(20 + i*20) }),
	}}
	d := newDetail(details, series)
	ctx := context.Background()

	d.LoadDetail(ctx)
	d.LoadSeries(ctx)
	if err := d.SetTimeFrame(ctx, models.TimeFrame1W); err != nil {
		t.Fatal(err)
	}

	st := d.State()
	if st.TimeFrame != models.TimeFrame1W || len(series.calls) != 2 || series.calls[1].interval != "1h" {
		t.Fatalf("timeFrame=%s calls=%+v", st.TimeFrame, series.calls)
	}
	if st.Detail.PriceChangePercent != 100 {
		t.Errorf("windowed percent = %v, want 100", st.Detail.PriceChangePercent)
	}

	// Re-selecting the current frame does not refetch
	d.SetTimeFrame(ctx, models.TimeFrame1W)
	if len(series.calls) != 2 {
		t.Errorf("series refetched for the same frame")
	}

	if err := d.SetTimeFrame(ctx, models.TimeFrame("2D")); err == nil {
		t.Error("expected error for unknown frame")
	}
}

func TestAssetDetail_StatsNeverRegress(t *testing.T) {
	capValue, supply := 5e11, 1e7
	details := &stubDetails{detail: models.AssetDetail{
		MarketCap: models.StatOf(capValue), CirculatingSupply: models.StatOf(supply), Popularity: "#2",
	}}
	d := newDetail(details, &stubSeries{})
	ctx := context.Background()
	d.LoadDetail(ctx)

	// A second load with omitted stats keeps the previous values
	d.mu.Lock()
	d.detailLoaded = false
	d.mu.Unlock()
	details.detail = models.AssetDetail{Popularity: models.Unavailable}
	d.LoadDetail(ctx)

	st := d.State().Stats
	if st.MarketCap != models.StatOf(capValue) || st.CirculatingSupply != models.StatOf(supply) || st.Popularity != "#2" {
		t.Errorf("stats regressed: %+v", st)
	}
}

func TestAssetDetail_Errors(t *testing.T) {
	details := &stubDetails{err: errTransport}
	series := &stubSeries{err: errTransport}
	d := newDetail(details, series)
	ctx := context.Background()

	if err := d.LoadDetail(ctx); err == nil {
		t.Fatal("expected detail error")
	}
	if got := d.State().Error; got != ErrDetailMessage {
		t.Errorf("error = %q", got)
	}

	if err := d.LoadSeries(ctx); err == nil {
		t.Fatal("expected series error")
	}
	st := d.State()
	if st.Error != ErrChartMessage || st.Loading {
		t.Errorf("error=%q loading=%v", st.Error, st.Loading)
	}
}

func TestAssetDetail_UpdateStatsForTime(t *testing.T) {
	series := &stubSeries{byFrame: map[string][]models.Candle{
		"1m": minuteCandles(5, func(i int) float64 { return float64(i * 10) }),
	}}
	d := newDetail(&stubDetails{}, series)
	d.LoadSeries(context.Background())

	if !d.UpdateStatsForTime("11:02") {
		t.Fatal("label 11:02 not found")
	}
	if got := d.State().Stats.Price; got != models.StatOf(20) {
		t.Errorf("price stat = %v, want 20", got)
	}

	if d.UpdateStatsForTime("09:00") {
		t.Error("unknown label matched")
	}
	if got := d.State().Stats.Price; got != models.StatOf(20) {
		t.Errorf("price stat changed on a miss: %v", got)
	}
}

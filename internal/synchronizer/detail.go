package synchronizer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coin-pulse/internal/chart"
	"github.com/coin-pulse/pkg/models"
	"github.com/sirupsen/logrus"
)

const (
	ErrDetailMessage = "Failed to load asset details. Please try again."
	ErrChartMessage  = "Failed to load chart data. Please try again."
)

// DetailSource loads the detail record of one asset
type DetailSource interface {
	FetchDetail(ctx context.Context, symbol string) (*models.AssetDetail, error)
}

// SeriesSource loads candles for one asset
type SeriesSource interface {
	FetchSeries(ctx context.Context, symbol, interval string, start, end int64) ([]models.Candle, error)
}

// DetailState is a point-in-time view of an AssetDetail
type DetailState struct {
	Symbol    string              `json:"symbol" yaml:"symbol"`
	Detail    *models.AssetDetail `json:"asset_detail" yaml:"asset_detail"`
	Chart     chart.Series        `json:"chart_data" yaml:"chart_data"`
	TimeFrame models.TimeFrame    `json:"time_frame" yaml:"time_frame"`
	Loading   bool                `json:"is_loading" yaml:"is_loading"`
	Error     string              `json:"error,omitempty" yaml:"error,omitempty"`
	Stats     models.Stats        `json:"stats" yaml:"stats"`
}

// AssetDetail drives the detail screen of one symbol. Metadata loads once;
// the series reloads on every time-frame change.
type AssetDetail struct {
	symbol  string
	details DetailSource
	series  SeriesSource
	loc     *time.Location
	now     func() time.Time
	logger  *logrus.Entry

	mu            sync.Mutex
	detail        *models.AssetDetail
	detailLoaded  bool
	loadingDetail bool
	loadingSeries bool
	timeFrame     models.TimeFrame
	seq           uint64
	candles       []models.Candle
	chart         chart.Series
	stats         models.Stats
	err           string
}

// NewAssetDetail creates a detail synchronizer for symbol with the default
// time frame. Labels are formatted in loc.
func NewAssetDetail(symbol string, details DetailSource, series SeriesSource, loc *time.Location, logger *logrus.Logger) *AssetDetail {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if loc == nil {
		loc = time.Local
	}
	return &AssetDetail{
		symbol:    symbol,
		details:   details,
		series:    series,
		loc:       loc,
		now:       time.Now,
		timeFrame: models.DefaultTimeFrame,
		stats: models.Stats{
			Popularity: models.Unavailable,
		},
		logger: logger.WithFields(logrus.Fields{
			"component": "asset-detail",
			"symbol":    symbol,
		}),
	}
}

// Symbol returns the synchronized symbol
func (d *AssetDetail) Symbol() string {
	return d.symbol
}

// LoadDetail fetches the asset detail once. Later calls are no-ops after a
// successful load.
func (d *AssetDetail) LoadDetail(ctx context.Context) error {
	d.mu.Lock()
	if d.detailLoaded || d.loadingDetail {
		d.mu.Unlock()
		return nil
	}
	d.loadingDetail = true
	d.mu.Unlock()

	detail, err := d.details.FetchDetail(ctx, d.symbol)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.loadingDetail = false

	if err != nil {
		d.logger.WithError(err).WithField("op", "load detail").Error("Failed to load asset details")
		d.err = ErrDetailMessage
		return err
	}

	d.detail = detail
	d.detailLoaded = true
	d.stats = models.Stats{
		Price:             models.StatOf(detail.Price),
		MarketCap:         detail.MarketCap.Or(d.stats.MarketCap),
		Volume:            models.StatOf(detail.Volume),
		CirculatingSupply: detail.CirculatingSupply.Or(d.stats.CirculatingSupply),
		Popularity:        popularityOr(detail.Popularity, d.stats.Popularity),
	}

	// A series loaded before the detail still owns the latest price
	d.applyCandles()
	return nil
}

// LoadSeries fetches candles for the current time frame and recomputes the
// derived price fields. Results for a superseded time frame are discarded.
func (d *AssetDetail) LoadSeries(ctx context.Context) error {
	d.mu.Lock()
	tf := d.timeFrame
	seq := d.seq
	d.loadingSeries = true
	d.mu.Unlock()

	start, end := tf.Window(d.now())
	candles, err := d.series.FetchSeries(ctx, d.symbol, tf.Interval(), start, end)

	d.mu.Lock()
	defer d.mu.Unlock()

	if seq != d.seq {
		return nil
	}
	d.loadingSeries = false

	if err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"op":         "load series",
			"time_frame": tf,
		}).Error("Failed to load chart data")
		d.err = ErrChartMessage
		return err
	}

	d.candles = candles
	d.chart = chart.Series{
		Labels: make([]string, len(candles)),
		Values: make([]float64, len(candles)),
	}
	for i, c := range candles {
		d.chart.Labels[i] = tf.FormatLabel(c.Time, d.loc)
		d.chart.Values[i] = c.Close
	}
	if d.err == ErrChartMessage {
		d.err = ""
	}
	d.applyCandles()
	return nil
}

// applyCandles refreshes price, windowed percent change and volume from the
// first and latest candle. Caller holds mu.
func (d *AssetDetail) applyCandles() {
	if len(d.candles) == 0 {
		return
	}
	first, latest := d.candles[0], d.candles[len(d.candles)-1]

	d.stats.Price = models.StatOf(latest.Close)
	d.stats.Volume = models.StatOf(latest.Volume)

	if d.detail == nil {
		return
	}
	d.detail.Price = latest.Close
	d.detail.Volume = latest.Volume
	if first.Close != 0 {
		d.detail.PriceChangePercent = (latest.Close - first.Close) / first.Close * 100
	}
}

// SetTimeFrame switches the time frame and reloads the series. Selecting the
// current frame does nothing.
func (d *AssetDetail) SetTimeFrame(ctx context.Context, tf models.TimeFrame) error {
	if !tf.Valid() {
		return fmt.Errorf("invalid time frame %q", tf)
	}

	d.mu.Lock()
	if tf == d.timeFrame && d.candles != nil {
		d.mu.Unlock()
		return nil
	}
	d.timeFrame = tf
	d.seq++
	d.mu.Unlock()

	return d.LoadSeries(ctx)
}

// UpdateStatsForTime overlays the close of the candle labeled label onto the
// price stat. It reports whether a candle matched.
func (d *AssetDetail) UpdateStatsForTime(label string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, c := range d.candles {
		if d.chart.Labels[i] == label {
			d.stats.Price = models.StatOf(c.Close)
			return true
		}
	}
	return false
}

// Candles returns the loaded candles
func (d *AssetDetail) Candles() []models.Candle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Candle(nil), d.candles...)
}

// State returns a copy of the current detail state
func (d *AssetDetail) State() DetailState {
	d.mu.Lock()
	defer d.mu.Unlock()

	var detail *models.AssetDetail
	if d.detail != nil {
		cp := *d.detail
		detail = &cp
	}

	return DetailState{
		Symbol:    d.symbol,
		Detail:    detail,
		TimeFrame: d.timeFrame,
		Loading:   d.loadingDetail || d.loadingSeries,
		Error:     d.err,
		Stats:     d.stats,
		Chart: chart.Series{
			Labels: append([]string{}, d.chart.Labels...),
			Values: append([]float64{}, d.chart.Values...),
		},
	}
}

func popularityOr(v, prev string) string {
	if v == "" || v == models.Unavailable {
		if prev == "" {
			return models.Unavailable
		}
		return prev
	}
	return v
}

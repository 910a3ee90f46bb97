package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coin-pulse/internal/chart"
	"github.com/coin-pulse/internal/market"
	"github.com/coin-pulse/pkg/models"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	maxPageSize       = 250
	maxChartDimension = chart.MaxDimension
)

// handleGetAssets serves one snapshot page
func (s *Server) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := intParam(q.Get("page"), 1)
	if err != nil || page < 1 {
		s.writeError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	limit, err := intParam(q.Get("limit"), s.cfg.Market.PageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 250")
		return
	}

	result, err := s.snapshot.FetchPage(r.Context(), page, limit)
	if err != nil {
		s.logger.WithError(err).WithField("page", page).Error("Failed to fetch assets")
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleGetChart renders the series of one symbol as geometry, SVG or PNG
func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	q := r.URL.Query()

	tf := models.DefaultTimeFrame
	if raw := q.Get("timeframe"); raw != "" {
		parsed, err := models.ParseTimeFrame(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		tf = parsed
	}

	opts, err := s.chartOptions(q.Get("width"), q.Get("height"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start, end := tf.Window(time.Now())
	candles, err := s.series.FetchSeries(r.Context(), symbol, tf.Interval(), start, end)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"symbol":     symbol,
			"time_frame": tf,
		}).Error("Failed to fetch chart data")
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	series := chart.Series{
		Labels: make([]string, len(candles)),
		Values: make([]float64, len(candles)),
	}
	for i, c := range candles {
		series.Labels[i] = tf.FormatLabel(c.Time, s.loc)
		series.Values[i] = c.Close
	}

	switch format := q.Get("format"); format {
	case "", "json":
		g, err := chart.Build(series, opts)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"symbol":     symbol,
			"time_frame": tf,
			"geometry":   g,
		})

	case "svg":
		g, err := chart.Build(series, opts)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Write(chart.RenderSVG(g, nil))

	case "png":
		img, err := chart.RenderPNG(series, symbol+" "+string(tf), opts)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Error("Failed to render chart")
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)

	default:
		s.writeError(w, http.StatusBadRequest, "format must be json, svg or png")
	}
}

// defaultChartOptions returns the configured chart canvas
func (s *Server) defaultChartOptions() chart.Options {
	return chart.Options{
		Width:     s.cfg.Chart.Width,
		Height:    s.cfg.Chart.Height,
		MaxLabels: s.cfg.Chart.MaxLabels,
	}
}

// chartOptions applies width/height overrides to the configured defaults
func (s *Server) chartOptions(width, height string) (chart.Options, error) {
	opts := s.defaultChartOptions()
	if width != "" {
		v, err := dimensionParam("width", width)
		if err != nil {
			return opts, err
		}
		opts.Width = v
	}
	if height != "" {
		v, err := dimensionParam("height", height)
		if err != nil {
			return opts, err
		}
		opts.Height = v
	}
	return opts, nil
}

// dimensionParam parses a canvas size in 1..maxChartDimension pixels
func dimensionParam(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 || v > maxChartDimension {
		return 0, fmt.Errorf("%s must be a number between 0 and %d", name, maxChartDimension)
	}
	return v, nil
}

// statusFor maps provider failures to 502 and everything else to 500
func statusFor(err error) int {
	if market.IsTransport(err) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

package models

import (
	"fmt"
	"strings"
	"time"
)

// TimeFrame is one of the fixed chart windows of the detail screen
type TimeFrame string

const (
	TimeFrame1H  TimeFrame = "1H"
	TimeFrame24H TimeFrame = "24H"
	TimeFrame1W  TimeFrame = "1W"
	TimeFrame1M  TimeFrame = "1M"
	TimeFrame6M  TimeFrame = "6M"
	TimeFrame1Y  TimeFrame = "1Y"
	TimeFrameAll TimeFrame = "All"
)

// DefaultTimeFrame is selected when a detail screen opens
const DefaultTimeFrame = TimeFrame1H

const day = 24 * time.Hour

// genesis is the first day of the "All" window
var genesis = time.Date(2009, time.January, 3, 0, 0, 0, 0, time.UTC)

type frameSpec struct {
	lookback time.Duration // zero means "since genesis"
	interval string
	step     time.Duration // nominal candle width used for cap checks
	layout   string
}

// Interval widths keep every window within the 1000-candle provider cap.
var frameSpecs = map[TimeFrame]frameSpec{
	TimeFrame1H:  {lookback: time.Hour, interval: "1m", step: time.Minute, layout: "15:04"},
	TimeFrame24H: {lookback: day, interval: "15m", step: 15 * time.Minute, layout: "15:04"},
	TimeFrame1W:  {lookback: 7 * day, interval: "1h", step: time.Hour, layout: "Jan 2"},
	TimeFrame1M:  {lookback: 30 * day, interval: "4h", step: 4 * time.Hour, layout: "Jan 2"},
	TimeFrame6M:  {lookback: 180 * day, interval: "6h", step: 6 * time.Hour, layout: "Jan 2"},
	TimeFrame1Y:  {lookback: 365 * day, interval: "1d", step: day, layout: "Jan 2006"},
	TimeFrameAll: {interval: "1M", step: 28 * day, layout: "Jan 2006"},
}

// TimeFrames lists every frame in display order
func TimeFrames() []TimeFrame {
	return []TimeFrame{TimeFrame1H, TimeFrame24H, TimeFrame1W, TimeFrame1M, TimeFrame6M, TimeFrame1Y, TimeFrameAll}
}

// ParseTimeFrame parses a frame name case-insensitively
func ParseTimeFrame(s string) (TimeFrame, error) {
	for _, tf := range TimeFrames() {
		if strings.EqualFold(string(tf), strings.TrimSpace(s)) {
			return tf, nil
		}
	}
	return "", fmt.Errorf("unknown time frame %q", s)
}

// Valid reports whether tf is one of the enumerated frames
func (tf TimeFrame) Valid() bool {
	_, ok := frameSpecs[tf]
	return ok
}

// Interval returns the candle interval for the frame
func (tf TimeFrame) Interval() string {
	return frameSpecs[tf].interval
}

// Window returns the [start, end] range in epoch millis ending at now
func (tf TimeFrame) Window(now time.Time) (start, end int64) {
	spec := frameSpecs[tf]
	end = now.UnixMilli()
	if spec.lookback == 0 {
		return genesis.UnixMilli(), end
	}
	return now.Add(-spec.lookback).UnixMilli(), end
}

// MaxCandles is the upper bound on candles a window ending at now can hold
func (tf TimeFrame) MaxCandles(now time.Time) int {
	spec := frameSpecs[tf]
	if spec.step == 0 {
		return 0
	}
	start, end := tf.Window(now)
	span := time.Duration(end-start) * time.Millisecond
	return int(span/spec.step) + 1
}

// FormatLabel renders a candle open time as an axis label in loc
func (tf TimeFrame) FormatLabel(ms int64, loc *time.Location) string {
	layout := frameSpecs[tf].layout
	if layout == "" {
		layout = frameSpecs[DefaultTimeFrame].layout
	}
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc).Format(layout)
}

// Lookback returns the window length ending at now
func (tf TimeFrame) Lookback(now time.Time) time.Duration {
	start, end := tf.Window(now)
	return time.Duration(end-start) * time.Millisecond
}

// LabelLayout returns the time layout used for axis labels
func (tf TimeFrame) LabelLayout() string {
	return frameSpecs[tf].layout
}

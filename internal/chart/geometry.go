package chart

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrLengthMismatch is returned when a series has a different number of
// labels and values.
var ErrLengthMismatch = errors.New("chart: labels and values differ in length")

const (
	DefaultWidth     = 3 * 390
	DefaultHeight    = 250
	DefaultMaxLabels = 12

	// MaxDimension bounds the canvas width and height in pixels
	MaxDimension = 10000

	padRatio = 0.1
)

// Series is a labeled numeric series in display order
type Series struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Len returns the number of samples
func (s Series) Len() int {
	return len(s.Values)
}

// Options sizes the drawing area
type Options struct {
	Width     float64
	Height    float64
	MaxLabels int
}

// DefaultOptions returns the mobile detail-screen layout
func DefaultOptions() Options {
	return Options{Width: DefaultWidth, Height: DefaultHeight, MaxLabels: DefaultMaxLabels}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if !validDimension(o.Width) {
		o.Width = d.Width
	}
	if !validDimension(o.Height) {
		o.Height = d.Height
	}
	if o.MaxLabels <= 0 {
		o.MaxLabels = d.MaxLabels
	}
	return o
}

// Point is one sample mapped to pixel space
type Point struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

func validDimension(v float64) bool {
	return v > 0 && v <= MaxDimension
}

// Geometry is the pixel layout of a series. A geometry with no points is the
// "not enough data" state.
type Geometry struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Points []Point `json:"points"`
	Path   string  `json:"path"`
	Ticks  []Point `json:"ticks"`
}

// Empty reports whether there were fewer than two samples to draw
func (g Geometry) Empty() bool {
	return len(g.Points) == 0
}

// Build maps s onto a Width x Height canvas. The result depends only on its
// inputs.
func Build(s Series, opts Options) (Geometry, error) {
	if len(s.Labels) != len(s.Values) {
		return Geometry{}, ErrLengthMismatch
	}

	opts = opts.normalized()
	g := Geometry{Width: opts.Width, Height: opts.Height}

	n := len(s.Values)
	if n < 2 {
		return g, nil
	}

	lo, hi := s.Values[0], s.Values[0]
	for _, v := range s.Values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo) * padRatio
	g.Min, g.Max = lo-pad, hi+pad
	span := g.Max - g.Min

	g.Points = make([]Point, n)
	var path strings.Builder
	for i, v := range s.Values {
		x := float64(i) / float64(n-1) * opts.Width
		y := opts.Height / 2
		if span > 0 {
			y = opts.Height - (v-g.Min)/span*opts.Height
		}
		g.Points[i] = Point{Index: i, X: x, Y: y, Value: v, Label: s.Labels[i]}

		if i == 0 {
			path.WriteString("M ")
		} else {
			path.WriteString(" L ")
		}
		path.WriteString(coord(x))
		path.WriteByte(' ')
		path.WriteString(coord(y))
	}
	g.Path = path.String()

	stride := LabelStride(n, opts.MaxLabels)
	g.Ticks = make([]Point, 0, (n+stride-1)/stride)
	for i := 0; i < n; i += stride {
		g.Ticks = append(g.Ticks, g.Points[i])
	}

	return g, nil
}

// LabelStride returns the index step between visible axis labels
func LabelStride(n, maxLabels int) int {
	switch {
	case maxLabels <= 0 || n <= maxLabels:
		return 1
	case n <= 2*maxLabels:
		return 2
	default:
		return (n + maxLabels - 1) / maxLabels
	}
}

// Nearest returns the point whose X is closest to x. Ties go to the lower
// index.
func (g Geometry) Nearest(x float64) (Point, bool) {
	if len(g.Points) == 0 {
		return Point{}, false
	}

	best := 0
	bestDist := math.Abs(g.Points[0].X - x)
	for i := 1; i < len(g.Points); i++ {
		if d := math.Abs(g.Points[i].X - x); d < bestDist {
			best, bestDist = i, d
		}
	}
	return g.Points[best], true
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

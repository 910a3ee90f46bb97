package chart

import (
	"errors"
	"fmt"
	"html"
	"strings"

	charts "github.com/vicanso/go-charts/v2"
)

const (
	lineColor  = "#16c784"
	labelColor = "#8a8a8a"
	axisHeight = 24
)

// RenderSVG draws g as a standalone SVG document with its x-axis ticks.
// selected, when non-nil, is marked on the line.
func RenderSVG(g Geometry, selected *Point) []byte {
	var b strings.Builder
	height := g.Height + axisHeight

	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		coord(g.Width), coord(height), coord(g.Width), coord(height))

	if g.Empty() {
		fmt.Fprintf(&b, `<text x="%s" y="%s" text-anchor="middle" fill="%s">Not enough data</text>`,
			coord(g.Width/2), coord(g.Height/2), labelColor)
		b.WriteString(`</svg>`)
		return []byte(b.String())
	}

	fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="%s" stroke-width="2"/>`, g.Path, lineColor)

	for _, t := range g.Ticks {
		fmt.Fprintf(&b, `<text x="%s" y="%s" font-size="10" text-anchor="middle" fill="%s">%s</text>`,
			coord(t.X), coord(g.Height+16), labelColor, html.EscapeString(t.Label))
	}

	if selected != nil {
		fmt.Fprintf(&b, `<line x1="%s" y1="0" x2="%s" y2="%s" stroke="%s" stroke-dasharray="4"/>`,
			coord(selected.X), coord(selected.X), coord(g.Height), labelColor)
		fmt.Fprintf(&b, `<circle cx="%s" cy="%s" r="4" fill="%s"/>`,
			coord(selected.X), coord(selected.Y), lineColor)
	}

	b.WriteString(`</svg>`)
	return []byte(b.String())
}

// RenderPNG draws s as a PNG line chart using the same padded value range
// as the geometry engine.
func RenderPNG(s Series, title string, opts Options) ([]byte, error) {
	g, err := Build(s, opts)
	if err != nil {
		return nil, err
	}
	if g.Empty() {
		return nil, errors.New("not enough data points")
	}

	yMin, yMax := g.Min, g.Max
	if yMin == yMax {
		yMin, yMax = yMin-1, yMax+1
	}

	painter, err := charts.LineRender([][]float64{s.Values},
		charts.TitleTextOptionFunc(title),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        s.Labels,
			BoundaryGap: charts.FalseFlag(),
			SplitNumber: len(g.Ticks),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(int(g.Width)),
		charts.HeightOptionFunc(int(g.Height)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	img, err := painter.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode chart: %w", err)
	}
	return img, nil
}

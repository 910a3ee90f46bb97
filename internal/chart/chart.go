package chart

import (
	"sync"
)

// SelectFunc receives the sample nearest to a pointer interaction
type SelectFunc func(label string, value float64)

// Chart is an interactive chart over one series. It owns its geometry and
// the current selection.
type Chart struct {
	mu       sync.Mutex
	geometry Geometry
	onSelect SelectFunc
	selected *Point
}

// New builds the geometry for s and returns an interactive chart. onSelect
// may be nil.
func New(s Series, opts Options, onSelect SelectFunc) (*Chart, error) {
	g, err := Build(s, opts)
	if err != nil {
		return nil, err
	}
	return &Chart{geometry: g, onSelect: onSelect}, nil
}

// Geometry returns the chart layout
func (c *Chart) Geometry() Geometry {
	return c.geometry
}

// Touch hit-tests a pointer at x on the visible viewport scrolled by scrollX,
// selects the nearest sample and reports it to the callback.
func (c *Chart) Touch(x, scrollX float64) (Point, bool) {
	p, ok := c.geometry.Nearest(x + scrollX)
	if !ok {
		return Point{}, false
	}

	c.mu.Lock()
	c.selected = &p
	c.mu.Unlock()

	if c.onSelect != nil {
		c.onSelect(p.Label, p.Value)
	}
	return p, true
}

// Selected returns the last touched sample
func (c *Chart) Selected() (Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return Point{}, false
	}
	return *c.selected, true
}

// Release clears the selection
func (c *Chart) Release() {
	c.mu.Lock()
	c.selected = nil
	c.mu.Unlock()
}

// Package render draws the accumulated series of one render cycle as a PNG.
package render

import (
	"fmt"
	"time"
)

// Layout selects the panel arrangement.
type Layout int

const (
	// LayoutAggregate draws one CPU panel and one memory panel.
	LayoutAggregate Layout = iota
	// LayoutPerCore draws one CPU panel per core and one memory panel.
	LayoutPerCore
)

func (l Layout) String() string {
	switch l {
	case LayoutAggregate:
		return "aggregate"
	case LayoutPerCore:
		return "per-core"
	default:
		return "unknown"
	}
}

// Series is one container's data for a render cycle.
type Series struct {
	Name  string
	Color string // hex ("#1f77b4") or a basic color name; empty picks a palette color
	CPU   []float64
	// PerCore is indexed [core][tick].
	PerCore [][]float64
	Memory  []float64
}

// Chart is everything needed to draw one image.
type Chart struct {
	Title      string
	XAxis      []time.Time
	Series     []Series
	Layout     Layout
	MemoryUnit string
}

// Cores returns the number of per-core panels the chart can fill, which is
// the smallest core count across series.
func (c Chart) Cores() int {
	if len(c.Series) == 0 {
		return 0
	}
	n := len(c.Series[0].PerCore)
	for _, s := range c.Series[1:] {
		if len(s.PerCore) < n {
			n = len(s.PerCore)
		}
	}
	return n
}

// Validate checks that every series matches the x-axis.
func (c Chart) Validate() error {
	if len(c.XAxis) < 2 {
		return fmt.Errorf("need at least 2 ticks to draw a chart, have %d", len(c.XAxis))
	}
	if len(c.Series) == 0 {
		return fmt.Errorf("chart has no series")
	}
	for _, s := range c.Series {
		if len(s.CPU) != len(c.XAxis) || len(s.Memory) != len(c.XAxis) {
			return fmt.Errorf("series %q does not match the %d tick x-axis", s.Name, len(c.XAxis))
		}
		if c.Layout == LayoutPerCore {
			for core, values := range s.PerCore {
				if len(values) != len(c.XAxis) {
					return fmt.Errorf("series %q core %d does not match the x-axis", s.Name, core)
				}
			}
		}
	}
	if c.Layout == LayoutPerCore && c.Cores() == 0 {
		return fmt.Errorf("per-core layout needs per-core samples")
	}
	return nil
}

package monitor

import (
	"github.com/rileyhilliard/dockerstats/internal/registry"
	"github.com/rileyhilliard/dockerstats/internal/render"
	"github.com/rileyhilliard/dockerstats/internal/stats"
)

// BuildChart converts the store contents for refs into the renderer's input.
// Series follow the order of refs.
func BuildChart(store *Store, refs []registry.ContainerRef, mode stats.CPUMode, memoryUnit string) render.Chart {
	c := render.Chart{
		XAxis:      store.XAxis(),
		MemoryUnit: memoryUnit,
		Layout:     render.LayoutAggregate,
	}
	if mode == stats.CPUPerCore {
		c.Layout = render.LayoutPerCore
	}

	for _, ref := range refs {
		samples := store.Get(ref.Name)
		s := render.Series{
			Name:   ref.Name,
			Color:  ref.Color,
			CPU:    make([]float64, len(samples)),
			Memory: make([]float64, len(samples)),
		}
		for i, sample := range samples {
			s.CPU[i] = sample.CPU
			s.Memory[i] = sample.Memory
		}
		if mode == stats.CPUPerCore {
			s.PerCore = perCore(samples)
		}
		c.Series = append(c.Series, s)
	}
	return c
}

// perCore transposes [tick][core] into [core][tick], keeping only cores
// present in every tick.
func perCore(samples []Sample) [][]float64 {
	if len(samples) == 0 {
		return nil
	}
	cores := len(samples[0].PerCore)
	for _, s := range samples[1:] {
		if len(s.PerCore) < cores {
			cores = len(s.PerCore)
		}
	}

	out := make([][]float64, cores)
	for core := range out {
		out[core] = make([]float64, len(samples))
		for i, s := range samples {
			out[core][i] = s.PerCore[core]
		}
	}
	return out
}

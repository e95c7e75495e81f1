package monitor

import "time"

// Sample is one container's reading for one tick.
type Sample struct {
	// Timestamp is when the tick started, shared by every container in the tick.
	Timestamp time.Time
	// CPU is host-relative CPU usage summed over cores, in percent.
	CPU float64
	// PerCore holds one percentage per online core. Nil in aggregate mode.
	PerCore []float64
	// Memory is memory usage in the configured display unit.
	Memory float64
}

package stats

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/rileyhilliard/dockerstats/internal/errors"
)

// MalformedError reports a stats response missing a field the calculators need.
// Field is the dotted JSON path, or "$" when the body is not valid JSON.
type MalformedError struct {
	Field string
	Cause error
}

func (e *MalformedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed stats snapshot at %s: %v", e.Field, e.Cause)
	}
	return fmt.Sprintf("malformed stats snapshot: missing %s", e.Field)
}

func (e *MalformedError) Unwrap() error {
	return e.Cause
}

// malformed wraps a MalformedError in a MALFORMED_SNAPSHOT structured error.
func malformed(field string, cause error) error {
	return errors.WrapWithCode(
		&MalformedError{Field: field, Cause: cause},
		errors.ErrMalformedSnapshot,
		"Stats snapshot is malformed",
		"",
	)
}

// CPUCounters holds the cumulative CPU counters of one stats interval, in nanoseconds.
type CPUCounters struct {
	TotalUsage  uint64
	PerCPU      []uint64
	SystemUsage uint64
	OnlineCPUs  int
}

// Snapshot is the validated form of one stats response.
type Snapshot struct {
	Read        time.Time
	CPU         CPUCounters
	PreCPU      CPUCounters
	MemoryUsage uint64
}

// Wire shapes. Pointers distinguish a missing field from a zero value.
type wireSnapshot struct {
	Read        time.Time   `json:"read"`
	CPUStats    *wireCPU    `json:"cpu_stats"`
	PreCPUStats *wireCPU    `json:"precpu_stats"`
	MemoryStats *wireMemory `json:"memory_stats"`
}

type wireCPU struct {
	CPUUsage    *wireCPUUsage `json:"cpu_usage"`
	SystemUsage *uint64       `json:"system_cpu_usage"`
	OnlineCPUs  *uint32       `json:"online_cpus"`
}

type wireCPUUsage struct {
	TotalUsage  *uint64  `json:"total_usage"`
	PercpuUsage []uint64 `json:"percpu_usage"`
}

type wireMemory struct {
	Usage *uint64 `json:"usage"`
}

// Parse decodes and validates a raw stats body.
func Parse(body []byte) (*Snapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, malformed("$", err)
	}

	cur, err := counters("cpu_stats", w.CPUStats)
	if err != nil {
		return nil, err
	}
	pre, err := counters("precpu_stats", w.PreCPUStats)
	if err != nil {
		return nil, err
	}

	// online_cpus is absent on older daemons; fall back to the percpu length.
	if cur.OnlineCPUs == 0 {
		cur.OnlineCPUs = len(cur.PerCPU)
	}
	if cur.OnlineCPUs == 0 {
		return nil, malformed("cpu_stats.online_cpus", nil)
	}

	if w.MemoryStats == nil || w.MemoryStats.Usage == nil {
		return nil, malformed("memory_stats.usage", nil)
	}

	return &Snapshot{
		Read:        w.Read,
		CPU:         cur,
		PreCPU:      pre,
		MemoryUsage: *w.MemoryStats.Usage,
	}, nil
}

func counters(prefix string, c *wireCPU) (CPUCounters, error) {
	if c == nil {
		return CPUCounters{}, malformed(prefix, nil)
	}
	if c.CPUUsage == nil || c.CPUUsage.TotalUsage == nil {
		return CPUCounters{}, malformed(prefix+".cpu_usage.total_usage", nil)
	}
	if c.SystemUsage == nil {
		return CPUCounters{}, malformed(prefix+".system_cpu_usage", nil)
	}

	out := CPUCounters{
		TotalUsage:  *c.CPUUsage.TotalUsage,
		PerCPU:      c.CPUUsage.PercpuUsage,
		SystemUsage: *c.SystemUsage,
	}
	if c.OnlineCPUs != nil {
		out.OnlineCPUs = int(*c.OnlineCPUs)
	}
	return out, nil
}

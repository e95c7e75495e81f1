package stats

import (
	"fmt"
	"strings"

	"github.com/c2h5oh/datasize"
)

// CPUMode selects between the aggregate and per-core CPU calculators.
type CPUMode int

const (
	CPUAggregate CPUMode = iota
	CPUPerCore
)

func (m CPUMode) String() string {
	switch m {
	case CPUAggregate:
		return "aggregate"
	case CPUPerCore:
		return "per-core"
	default:
		return "unknown"
	}
}

// ParseCPUMode parses "aggregate" or "per-core".
func ParseCPUMode(s string) (CPUMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "aggregate":
		return CPUAggregate, nil
	case "per-core", "percore", "per_core":
		return CPUPerCore, nil
	default:
		return CPUAggregate, fmt.Errorf("unknown cpu mode %q: want aggregate or per-core", s)
	}
}

// CPUPercent returns host-relative CPU usage across all cores.
// The result is in [0, online_cpus*100] and is 0 when system_delta <= 0.
func CPUPercent(s *Snapshot) float64 {
	cpuDelta := float64(s.CPU.TotalUsage) - float64(s.PreCPU.TotalUsage)
	systemDelta := float64(s.CPU.SystemUsage) - float64(s.PreCPU.SystemUsage)
	return share(cpuDelta, systemDelta, s.CPU.OnlineCPUs, float64(s.CPU.OnlineCPUs)*100)
}

// PerCoreCPUPercent returns CPU usage for each of the first online_cpus cores.
// Each value is in [0, 100]. Hosts without percpu_usage (cgroup v2) yield a
// MALFORMED_SNAPSHOT error.
func PerCoreCPUPercent(s *Snapshot) ([]float64, error) {
	online := s.CPU.OnlineCPUs
	if len(s.CPU.PerCPU) < online {
		return nil, malformed("cpu_stats.cpu_usage.percpu_usage", nil)
	}
	if len(s.PreCPU.PerCPU) < online {
		return nil, malformed("precpu_stats.cpu_usage.percpu_usage", nil)
	}

	systemDelta := float64(s.CPU.SystemUsage) - float64(s.PreCPU.SystemUsage)
	out := make([]float64, online)
	for i := 0; i < online; i++ {
		cpuDelta := float64(s.CPU.PerCPU[i]) - float64(s.PreCPU.PerCPU[i])
		out[i] = share(cpuDelta, systemDelta, online, 100)
	}
	return out, nil
}

// share computes (cpuDelta/systemDelta)*online*100 clamped to [0, max].
func share(cpuDelta, systemDelta float64, online int, max float64) float64 {
	if systemDelta <= 0 || cpuDelta <= 0 {
		return 0
	}
	pct := cpuDelta / systemDelta * float64(online) * 100
	if pct > max {
		return max
	}
	return pct
}

// MemoryUsage returns memory_stats.usage divided by unit. A zero unit means bytes.
func MemoryUsage(s *Snapshot, unit datasize.ByteSize) float64 {
	if unit == 0 {
		unit = datasize.B
	}
	return float64(s.MemoryUsage) / float64(unit)
}

// ParseUnit parses a display unit such as "1MB" or "512KB".
func ParseUnit(s string) (datasize.ByteSize, error) {
	if strings.TrimSpace(s) == "" {
		return datasize.MB, nil
	}
	unit, err := datasize.ParseString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid memory unit %q: %w", s, err)
	}
	if unit == 0 {
		return 0, fmt.Errorf("memory unit %q must be greater than zero", s)
	}
	return unit, nil
}

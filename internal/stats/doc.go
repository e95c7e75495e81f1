// Package stats turns one Docker Engine stats response into numbers.
//
// Parse decodes the raw JSON body returned by the container stats endpoint
// into a typed Snapshot, rejecting responses that lack any field the
// calculators need. The calculators are pure functions over a Snapshot:
//
//   - CPUPercent: host-relative CPU usage summed over all cores,
//     (cpu_delta / system_delta) * online_cpus * 100
//   - PerCoreCPUPercent: the same ratio for each of the first online_cpus cores
//   - MemoryUsage: memory_stats.usage scaled to a display unit
//
// A Snapshot carries both the current and the previous-interval counters
// (cpu_stats and precpu_stats), so no state is kept between calls.
package stats

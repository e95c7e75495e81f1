// Package doctor runs preflight checks for dockerstats: configuration, the
// Docker daemon, container selection, stats decoding and delivery targets.
package doctor

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// CheckStatus is the outcome of a single check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

var statusNames = map[CheckStatus]string{
	StatusPass: "pass",
	StatusWarn: "warn",
	StatusFail: "fail",
}

func (s CheckStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// CheckResult is what a check reports. Suggestion is shown only for
// results that did not pass.
type CheckResult struct {
	Name       string      `json:"name"`
	Category   string      `json:"category"`
	Status     CheckStatus `json:"status"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// Check is one preflight probe. Category groups results in the output
// ("CONFIG", "DOCKER", "DELIVERY").
type Check interface {
	Name() string
	Category() string
	Run(ctx context.Context) CheckResult
}

// RunAll runs checks one after another.
func RunAll(ctx context.Context, checks []Check) []CheckResult {
	out := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		out = append(out, runCheck(ctx, c))
	}
	return out
}

// RunAllParallel runs every check in its own goroutine. Results keep the
// order of checks.
func RunAllParallel(ctx context.Context, checks []Check) []CheckResult {
	out := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			out[i] = runCheck(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// runCheck fills in the name and category a check left blank.
func runCheck(ctx context.Context, c Check) CheckResult {
	res := c.Run(ctx)
	if res.Name == "" {
		res.Name = c.Name()
	}
	if res.Category == "" {
		res.Category = c.Category()
	}
	return res
}

func CountByStatus(results []CheckResult) map[CheckStatus]int {
	counts := make(map[CheckStatus]int, len(statusNames))
	for _, res := range results {
		counts[res.Status]++
	}
	return counts
}

// HasFailures reports whether any check failed. Warnings do not count.
func HasFailures(results []CheckResult) bool {
	return CountByStatus(results)[StatusFail] > 0
}

// Summary is the closing line of the doctor output, e.g.
// "1 check failed, 2 warnings".
func Summary(results []CheckResult) string {
	counts := CountByStatus(results)
	var parts []string
	if n := counts[StatusFail]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d %s failed", n, plural(n, "check", "checks")))
	}
	if n := counts[StatusWarn]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", n, plural(n, "warning", "warnings")))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("All %d checks passed", len(results))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

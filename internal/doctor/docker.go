package doctor

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/rileyhilliard/dockerstats/internal/errors"
	"github.com/rileyhilliard/dockerstats/internal/registry"
	"github.com/rileyhilliard/dockerstats/internal/runtime"
	"github.com/rileyhilliard/dockerstats/internal/stats"
)

// DaemonCheck verifies the Engine API answers a container listing.
type DaemonCheck struct {
	Provider runtime.Provider
}

func (c *DaemonCheck) Name() string     { return "docker_daemon" }
func (c *DaemonCheck) Category() string { return "DOCKER" }

func (c *DaemonCheck) Run(ctx context.Context) CheckResult {
	list, err := c.Provider.ListContainers(ctx)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    "Docker daemon is not reachable: " + firstLine(err),
			Suggestion: "Start Docker, or point DOCKER_HOST / --docker-host at the right socket",
		}
	}

	running := 0
	for _, ct := range list {
		if ct.State == runtime.StateRunning {
			running++
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("Docker daemon reachable, %d running of %d container(s)", running, len(list)),
	}
}

// SelectionCheck runs one discovery pass with the configured rule.
type SelectionCheck struct {
	Registry *registry.Registry
}

func (c *SelectionCheck) Name() string     { return "selection" }
func (c *SelectionCheck) Category() string { return "DOCKER" }

func (c *SelectionCheck) Run(ctx context.Context) CheckResult {
	rule := c.Registry.Rule()
	refs, err := c.Registry.Refresh(ctx)
	switch {
	case errors.IsCode(err, errors.ErrDuplicateName):
		return CheckResult{
			Status:     StatusFail,
			Message:    firstLine(err),
			Suggestion: "Give every selected container a distinct name or label",
		}
	case err != nil:
		return CheckResult{
			Status:  StatusFail,
			Message: "Discovery failed: " + firstLine(err),
		}
	case len(refs) == 0:
		return CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("No running containers match %s", rule),
			Suggestion: "'dockerstats run' will wait for one to start",
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d container(s) match %s: %s", len(refs), rule, strings.Join(registry.Names(refs), ", ")),
	}
}

// StatsCheck fetches and decodes one stats snapshot from the first selected
// container, in the configured CPU mode.
type StatsCheck struct {
	Provider runtime.Provider
	Registry *registry.Registry
	Mode     stats.CPUMode
}

func (c *StatsCheck) Name() string     { return "stats" }
func (c *StatsCheck) Category() string { return "DOCKER" }

func (c *StatsCheck) Run(ctx context.Context) CheckResult {
	refs, err := c.Registry.Refresh(ctx)
	if err != nil || len(refs) == 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: "Skipped, nothing selected to sample",
		}
	}
	ref := refs[0]

	body, err := c.Provider.Stats(ctx, ref.ID)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("Cannot fetch stats for %s: %s", ref.Name, firstLine(err)),
		}
	}

	snap, err := stats.Parse(body)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("Stats for %s are incomplete: %s", ref.Name, firstLine(err)),
			Suggestion: "The container may have just started; try again in a few seconds",
		}
	}

	if c.Mode == stats.CPUPerCore {
		if _, err := stats.PerCoreCPUPercent(snap); err != nil {
			return CheckResult{
				Status:     StatusFail,
				Message:    fmt.Sprintf("No per-core counters for %s", ref.Name),
				Suggestion: "This host reports aggregate CPU only (cgroup v2); use --cpu-mode aggregate",
			}
		}
	}

	return CheckResult{
		Status: StatusPass,
		Message: fmt.Sprintf("Stats decode for %s: %.1f%% cpu on %d core(s), %d bytes memory",
			ref.Name, stats.CPUPercent(snap), snap.CPU.OnlineCPUs, snap.MemoryUsage),
	}
}

// firstLine keeps the headline of a structured error.
func firstLine(err error) string {
	msg := strings.TrimPrefix(err.Error(), "✗ ")
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

// suggestion returns the fix hint carried by a structured error, if any.
func suggestion(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Suggestion
	}
	return ""
}

// Package testing provides test doubles for the runtime package.
package testing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/dockerstats/internal/errors"
	"github.com/rileyhilliard/dockerstats/internal/runtime"
)

// Load describes the per-call counter growth of a fake container.
type Load struct {
	CPUDelta    uint64 // ns of container CPU time per stats call
	SystemDelta uint64 // ns of host CPU time per stats call
	OnlineCPUs  int
	MemoryUsage uint64
}

// DefaultLoad yields 40% host-relative CPU on 4 cores and 50MiB of memory.
var DefaultLoad = Load{
	CPUDelta:    200000000,
	SystemDelta: 2000000000,
	OnlineCPUs:  4,
	MemoryUsage: 50 * 1024 * 1024,
}

// FakeProvider simulates a container runtime for testing.
type FakeProvider struct {
	mu sync.Mutex

	// Configuration
	Containers  []runtime.Container
	ListResults [][]runtime.Container // consumed one per ListContainers call, last one repeats
	ListErr     error
	Labels      map[string]map[string]string // inspect labels by container ID
	InspectErr  error
	Loads       map[string]Load  // counter growth by container ID, DefaultLoad otherwise
	StatsErr    map[string]error // stats failure by container ID
	StatsDelay  time.Duration
	// StatsFunc overrides the generated stats body. call counts from 1 per container.
	StatsFunc func(ctx context.Context, id string, call int) ([]byte, error)

	// Call tracking
	ListCalls    int
	InspectCalls []string
	StatsCalls   []string
	CloseCalls   int
	MaxInFlight  int // highest number of concurrent Stats calls observed

	statsCount map[string]int
	inFlight   int
}

// NewFakeProvider creates a provider serving the given containers.
func NewFakeProvider(containers ...runtime.Container) *FakeProvider {
	return &FakeProvider{
		Containers: containers,
		Labels:     make(map[string]map[string]string),
		Loads:      make(map[string]Load),
		StatsErr:   make(map[string]error),
		statsCount: make(map[string]int),
	}
}

// Running builds a running container entry with a Docker-style "/name".
func Running(id, name string, labels map[string]string) runtime.Container {
	return runtime.Container{
		ID:     id,
		Names:  []string{"/" + name},
		State:  runtime.StateRunning,
		Labels: labels,
	}
}

// ListContainers returns the next scripted list, or Containers.
func (p *FakeProvider) ListContainers(ctx context.Context) ([]runtime.Container, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ListCalls++
	if p.ListErr != nil {
		return nil, p.ListErr
	}
	if len(p.ListResults) > 0 {
		next := p.ListResults[0]
		if len(p.ListResults) > 1 {
			p.ListResults = p.ListResults[1:]
		}
		return append([]runtime.Container(nil), next...), nil
	}
	return append([]runtime.Container(nil), p.Containers...), nil
}

// InspectLabels returns Labels[id], falling back to the list labels.
func (p *FakeProvider) InspectLabels(ctx context.Context, id string) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.InspectCalls = append(p.InspectCalls, id)
	if p.InspectErr != nil {
		return nil, p.InspectErr
	}
	if labels, ok := p.Labels[id]; ok {
		return labels, nil
	}
	for _, c := range p.Containers {
		if c.ID == id {
			return c.Labels, nil
		}
	}
	return nil, errors.New(errors.ErrTickAborted, fmt.Sprintf("Container %s is gone (inspect)", id), "")
}

// Stats returns a body whose counters advance by the container's Load on every call.
func (p *FakeProvider) Stats(ctx context.Context, id string) ([]byte, error) {
	p.mu.Lock()
	p.StatsCalls = append(p.StatsCalls, id)
	p.statsCount[id]++
	call := p.statsCount[id]
	p.inFlight++
	if p.inFlight > p.MaxInFlight {
		p.MaxInFlight = p.inFlight
	}
	delay := p.StatsDelay
	fn := p.StatsFunc
	failErr := p.StatsErr[id]
	load, ok := p.Loads[id]
	if !ok {
		load = DefaultLoad
	}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, errors.WrapWithCode(ctx.Err(), errors.ErrTickAborted,
				fmt.Sprintf("Stats for %s cancelled", id), "")
		}
	}

	if fn != nil {
		return fn(ctx, id, call)
	}
	if failErr != nil {
		return nil, failErr
	}
	return StatsBody(load, call), nil
}

// Close records the call.
func (p *FakeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCalls++
	return nil
}

// StatsCallCount returns how many stats calls were made for id.
func (p *FakeProvider) StatsCallCount(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsCount[id]
}

// StatsBody renders the Docker stats JSON for the call-th sample of a container
// growing at load. Per-core counters split the CPU delta evenly across cores.
func StatsBody(load Load, call int) []byte {
	n := uint64(call)
	cur := counters(load, n)
	pre := counters(load, n-1)
	return []byte(fmt.Sprintf(
		`{"read":"2024-01-01T00:00:%02dZ","cpu_stats":%s,"precpu_stats":%s,"memory_stats":{"usage":%d,"limit":8589934592}}`,
		call%60, cur, pre, load.MemoryUsage,
	))
}

func counters(load Load, n uint64) string {
	online := load.OnlineCPUs
	if online <= 0 {
		online = 1
	}
	perCore := make([]string, online)
	for i := range perCore {
		perCore[i] = fmt.Sprintf("%d", load.CPUDelta/uint64(online)*n)
	}
	return fmt.Sprintf(
		`{"cpu_usage":{"total_usage":%d,"percpu_usage":[%s]},"system_cpu_usage":%d,"online_cpus":%d}`,
		load.CPUDelta*n, strings.Join(perCore, ","), load.SystemDelta*n+1000000000, online,
	)
}

var _ runtime.Provider = (*FakeProvider)(nil)

package monitor

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/c2h5oh/datasize"

	"github.com/rileyhilliard/dockerstats/internal/errors"
	"github.com/rileyhilliard/dockerstats/internal/logger"
	"github.com/rileyhilliard/dockerstats/internal/registry"
	"github.com/rileyhilliard/dockerstats/internal/runtime"
	"github.com/rileyhilliard/dockerstats/internal/stats"
)

// DefaultMaxWorkers bounds the pool when SamplerOptions.MaxWorkers is unset.
const DefaultMaxWorkers = 32

// SamplerOptions configures a Sampler.
type SamplerOptions struct {
	Mode         stats.CPUMode
	MemoryUnit   datasize.ByteSize
	FetchTimeout time.Duration // per container; zero waits forever
	MaxWorkers   int
	Logger       logger.Logger
}

// Sampler fetches one stats snapshot per tracked container per tick.
type Sampler struct {
	provider runtime.Provider
	opts     SamplerOptions
	log      logger.Logger
	now      func() time.Time

	mu   sync.Mutex
	refs []registry.ContainerRef
	pool *Pool
}

// NewSampler creates a closed sampler. Call Open before Tick.
func NewSampler(provider runtime.Provider, opts SamplerOptions) *Sampler {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	if opts.MemoryUnit == 0 {
		opts.MemoryUnit = datasize.MB
	}
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}
	return &Sampler{
		provider: provider,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// Open starts a generation over refs with min(len(refs), MaxWorkers) workers.
func (s *Sampler) Open(refs []registry.ContainerRef) error {
	if len(refs) == 0 {
		return fmt.Errorf("cannot open sampler without containers")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		return fmt.Errorf("sampler is already open, close it before starting a new generation")
	}

	size := len(refs)
	if size > s.opts.MaxWorkers {
		size = s.opts.MaxWorkers
	}
	s.refs = append([]registry.ContainerRef(nil), refs...)
	s.pool = NewPool(size)
	s.log.Debug("sampler opened for %d container(s) with %d worker(s)", len(refs), size)
	return nil
}

// Close ends the generation. Safe to call more than once.
func (s *Sampler) Close() {
	s.mu.Lock()
	pool := s.pool
	s.pool = nil
	s.refs = nil
	s.mu.Unlock()

	if pool != nil {
		pool.Close()
	}
}

// Refs returns the containers of the open generation.
func (s *Sampler) Refs() []registry.ContainerRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]registry.ContainerRef(nil), s.refs...)
}

// Workers returns the pool size, or zero when closed.
func (s *Sampler) Workers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool == nil {
		return 0
	}
	return s.pool.Size()
}

type fetchResult struct {
	sample Sample
	err    error
}

// Tick samples every container once. The returned timestamp is taken before
// any fetch starts and is shared by all samples. All fetches are awaited; if
// any fails the remaining ones are cancelled and the tick yields only an error.
func (s *Sampler) Tick(ctx context.Context) (time.Time, map[string]Sample, error) {
	s.mu.Lock()
	refs := s.refs
	pool := s.pool
	s.mu.Unlock()

	ts := s.now()
	if pool == nil {
		return ts, nil, fmt.Errorf("sampler is not open")
	}

	tickCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]fetchResult, len(refs))
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i, ref := range refs {
		i, ref := i, ref
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			sample, err := s.fetch(tickCtx, ref, ts)
			results[i] = fetchResult{sample: sample, err: err}
			if err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ts, nil, ctx.Err()
	}
	if firstErr != nil {
		return ts, nil, firstErr
	}

	out := make(map[string]Sample, len(refs))
	for i, ref := range refs {
		out[ref.Name] = results[i].sample
	}
	return ts, out, nil
}

func (s *Sampler) fetch(ctx context.Context, ref registry.ContainerRef, ts time.Time) (Sample, error) {
	fetchCtx := ctx
	if s.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.opts.FetchTimeout)
		defer cancel()
	}

	body, err := s.provider.Stats(fetchCtx, ref.ID)
	if err != nil {
		if stderrors.Is(fetchCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return Sample{}, errors.WrapWithCode(err, errors.ErrTickAborted,
				fmt.Sprintf("Stats fetch for %s timed out after %s", ref.Name, s.opts.FetchTimeout),
				"Raise fetch_timeout if the daemon is slow under load")
		}
		return Sample{}, err
	}

	snap, err := stats.Parse(body)
	if err != nil {
		return Sample{}, errors.WrapWithCode(err, errors.ErrTickAborted,
			fmt.Sprintf("Stats for %s are malformed", ref.Name), "")
	}

	sample := Sample{
		Timestamp: ts,
		CPU:       stats.CPUPercent(snap),
		Memory:    stats.MemoryUsage(snap, s.opts.MemoryUnit),
	}
	if s.opts.Mode == stats.CPUPerCore {
		cores, err := stats.PerCoreCPUPercent(snap)
		if err != nil {
			return Sample{}, errors.WrapWithCode(err, errors.ErrTickAborted,
				fmt.Sprintf("Stats for %s have no per-core counters", ref.Name),
				"Use cpu_mode aggregate on cgroup v2 hosts")
		}
		sample.PerCore = cores
	}
	return sample, nil
}

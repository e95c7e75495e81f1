package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/dockerstats/internal/deliver"
	"github.com/rileyhilliard/dockerstats/internal/errors"
	"github.com/rileyhilliard/dockerstats/internal/logger"
	"github.com/rileyhilliard/dockerstats/internal/registry"
	"github.com/rileyhilliard/dockerstats/internal/render"
	"github.com/rileyhilliard/dockerstats/internal/stats"
	"github.com/rileyhilliard/dockerstats/internal/telemetry"
)

// DefaultTickCount is the number of ticks per render cycle when unset.
const DefaultTickCount = 60

// State is the engine loop phase.
type State int32

const (
	StateIdle State = iota
	StateDiscovering
	StateSampling
	StateRendering
	StateReset
	StateRebuild
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateDiscovering:
		return "DISCOVERING"
	case StateSampling:
		return "SAMPLING"
	case StateRendering:
		return "RENDERING"
	case StateReset:
		return "RESET"
	case StateRebuild:
		return "REBUILD"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Discoverer returns a non-empty container set, waiting as long as needed.
type Discoverer interface {
	Discover(ctx context.Context) ([]registry.ContainerRef, error)
}

// Renderer turns a chart into an encoded image.
type Renderer interface {
	Render(c render.Chart) ([]byte, error)
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	TickCount    int
	TickInterval time.Duration
	// Rediscover re-runs discovery after every rendered cycle.
	Rediscover bool
	// Backoff is the wait after a discovery rejected for duplicate names.
	Backoff    time.Duration
	Mode       stats.CPUMode
	MemoryUnit string // axis label, e.g. "MB"
	Title      string
	Metrics    *telemetry.Metrics
	Logger     logger.Logger
}

// Engine drives discovery, sampling, rendering and delivery until cancelled.
type Engine struct {
	discoverer Discoverer
	sampler    *Sampler
	store      *Store
	renderer   Renderer
	out        deliver.Deliverer
	opts       EngineOptions
	log        logger.Logger

	state atomic.Int32
	refs  []registry.ContainerRef
}

// NewEngine wires the engine. The sampler must be closed; the engine owns it
// from here on and closes it when Run returns.
func NewEngine(d Discoverer, s *Sampler, r Renderer, out deliver.Deliverer, opts EngineOptions) *Engine {
	if opts.TickCount <= 0 {
		opts.TickCount = DefaultTickCount
	}
	if opts.Backoff <= 0 {
		opts.Backoff = registry.DefaultBackoff
	}
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}
	return &Engine{
		discoverer: d,
		sampler:    s,
		store:      NewStore(),
		renderer:   r,
		out:        out,
		opts:       opts,
		log:        log,
	}
}

// State returns the current phase.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Store returns the engine's time-series store.
func (e *Engine) Store() *Store {
	return e.store
}

func (e *Engine) setState(s State) {
	prev := State(e.state.Swap(int32(s)))
	if prev != s {
		e.log.Debug("engine %s -> %s", prev, s)
	}
}

// Run loops until ctx is cancelled, which is not an error. Any error that is
// not recoverable by rediscovery is returned.
func (e *Engine) Run(ctx context.Context) error {
	defer func() {
		e.sampler.Close()
		e.setState(StateStopped)
	}()

	needDiscovery := true
	for {
		if ctx.Err() != nil {
			return nil
		}

		if needDiscovery {
			e.setState(StateDiscovering)
			if err := e.discover(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if errors.IsCode(err, errors.ErrDuplicateName) {
					e.opts.Metrics.Discovery(telemetry.ResultDuplicate)
					e.log.Error("discovery rejected: %s", summary(err))
					if !sleep(ctx, e.opts.Backoff) {
						return nil
					}
					continue
				}
				e.opts.Metrics.Discovery(telemetry.ResultError)
				return err
			}
			needDiscovery = false
		}

		e.setState(StateSampling)
		if err := SampleCycle(ctx, e.sampler, e.store, e.opts.TickCount, e.opts.TickInterval, e.opts.Metrics); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !errors.Recoverable(err) {
				return err
			}
			e.log.Warn("sampling cycle discarded after %d tick(s): %s", e.store.Len(), summary(err))
			e.opts.Metrics.RenderCycle(telemetry.OutcomeDiscarded)
			e.setState(StateRebuild)
			e.store.Reset()
			needDiscovery = true
			continue
		}

		e.setState(StateRendering)
		if err := e.renderAndDeliver(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.opts.Metrics.RenderCycle(telemetry.OutcomeFailed)
			return err
		}
		e.opts.Metrics.RenderCycle(telemetry.OutcomeRendered)

		e.setState(StateReset)
		e.store.Reset()
		needDiscovery = e.opts.Rediscover
	}
}

// discover refreshes the container set and starts a new generation when it
// changed. An identical set keeps the open sampler.
func (e *Engine) discover(ctx context.Context) error {
	refs, err := e.discoverer.Discover(ctx)
	if err != nil {
		return err
	}
	e.opts.Metrics.Discovery(telemetry.ResultOK)

	if e.sampler.Workers() > 0 && registry.Equal(refs, e.refs) {
		e.log.Debug("container set unchanged, keeping generation of %d", len(refs))
		return nil
	}

	e.sampler.Close()
	e.store.Rebuild(registry.Names(refs))
	if err := e.sampler.Open(refs); err != nil {
		return errors.Wrap(err, "Cannot start sampling generation")
	}
	e.refs = refs
	e.opts.Metrics.SetTracked(len(refs))
	e.log.Info("tracking %d container(s): %s", len(refs), strings.Join(registry.Names(refs), ", "))
	return nil
}

func (e *Engine) renderAndDeliver(ctx context.Context) error {
	chart := BuildChart(e.store, e.refs, e.opts.Mode, e.opts.MemoryUnit)
	chart.Title = e.opts.Title

	img, err := e.renderer.Render(chart)
	if err != nil {
		return err
	}

	xs := chart.XAxis
	caption := fmt.Sprintf("%d container(s), %d samples, %s to %s",
		len(chart.Series), len(xs), xs[0].Format("15:04:05"), xs[len(xs)-1].Format("15:04:05"))
	if err := e.out.Deliver(ctx, img, caption); err != nil {
		return err
	}
	e.log.Info("delivered chart: %s", caption)
	return nil
}

// SampleCycle runs count ticks into store. The first failing tick stops the
// cycle and its error is returned; samples from earlier ticks stay in store.
func SampleCycle(ctx context.Context, s *Sampler, store *Store, count int, interval time.Duration, m *telemetry.Metrics) error {
	for i := 0; i < count; i++ {
		if i > 0 && interval > 0 && !sleep(ctx, interval) {
			return ctx.Err()
		}

		start := time.Now()
		ts, samples, err := s.Tick(ctx)
		if err != nil {
			if ctx.Err() == nil {
				m.ObserveTick(telemetry.ResultAborted, time.Since(start))
			}
			return err
		}
		if err := store.AppendTick(ts, samples); err != nil {
			return errors.Wrap(err, "Tick does not match the tracked containers")
		}
		m.ObserveTick(telemetry.ResultOK, time.Since(start))
	}
	return nil
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// summary flattens a structured error onto one line for logging.
func summary(err error) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(err.Error(), "✗", "")), " ")
}

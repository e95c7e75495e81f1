package monitor

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/dockerstats/internal/errors"
	"github.com/rileyhilliard/dockerstats/internal/logger"
	"github.com/rileyhilliard/dockerstats/internal/registry"
	"github.com/rileyhilliard/dockerstats/internal/render"
	"github.com/rileyhilliard/dockerstats/internal/runtime"
	rtesting "github.com/rileyhilliard/dockerstats/internal/runtime/testing"
	"github.com/rileyhilliard/dockerstats/internal/stats"
	"github.com/rileyhilliard/dockerstats/internal/telemetry"
)

type fakeRenderer struct {
	mu     sync.Mutex
	charts []render.Chart
	err    error
}

func (r *fakeRenderer) Render(c render.Chart) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.charts = append(r.charts, c)
	return []byte("png"), nil
}

// stopAfter cancels the engine once n charts were delivered.
type stopAfter struct {
	n        int
	cancel   context.CancelFunc
	captions []string
}

func (d *stopAfter) Deliver(_ context.Context, image []byte, caption string) error {
	d.captions = append(d.captions, caption)
	if len(d.captions) >= d.n {
		d.cancel()
	}
	return nil
}

type engineHarness struct {
	provider *rtesting.FakeProvider
	renderer *fakeRenderer
	out      *stopAfter
	metrics  *telemetry.Metrics
	log      *logger.BufferLogger
	engine   *Engine
	ctx      context.Context
}

func newHarness(t *testing.T, p *rtesting.FakeProvider, rule registry.Rule, cycles int, opts EngineOptions) *engineHarness {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	h := &engineHarness{
		provider: p,
		renderer: &fakeRenderer{},
		out:      &stopAfter{n: cycles, cancel: cancel},
		metrics:  telemetry.New(),
		log:      logger.NewBufferLogger(),
		ctx:      ctx,
	}
	reg := registry.New(p, registry.Options{Rule: rule, Backoff: time.Millisecond, Logger: h.log})
	sampler := NewSampler(p, SamplerOptions{Mode: opts.Mode, Logger: h.log})

	opts.Metrics = h.metrics
	opts.Logger = h.log
	if opts.Backoff == 0 {
		opts.Backoff = time.Millisecond
	}
	h.engine = NewEngine(reg, sampler, h.renderer, h.out, opts)
	return h
}

func TestEngine_EndToEndPrefix(t *testing.T) {
	p, _ := threeApps()
	h := newHarness(t, p, registry.PrefixRule("app_"), 1, EngineOptions{TickCount: 5, MemoryUnit: "MB"})

	require.NoError(t, h.engine.Run(h.ctx))
	assert.Equal(t, StateStopped, h.engine.State())

	require.Len(t, h.renderer.charts, 1)
	c := h.renderer.charts[0]
	assert.Len(t, c.XAxis, 5)
	assert.Equal(t, render.LayoutAggregate, c.Layout)
	require.Len(t, c.Series, 3)
	for i, name := range []string{"1", "2", "3"} {
		s := c.Series[i]
		assert.Equal(t, name, s.Name)
		require.Len(t, s.CPU, 5)
		require.Len(t, s.Memory, 5)
		for _, v := range s.CPU {
			assert.InDelta(t, 40.0, v, 1e-9)
		}
	}

	assert.Equal(t, 5.0, testutil.ToFloat64(h.metrics.Ticks.WithLabelValues(telemetry.ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RenderCycles.WithLabelValues(telemetry.OutcomeRendered)))
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.TrackedContainers))
	assert.Zero(t, p.CloseCalls, "the provider belongs to the caller")
	assert.Contains(t, h.out.captions[0], "3 container(s), 5 samples")
	assert.True(t, h.engine.Store().Empty(), "store is reset after the render handoff")
}

func TestEngine_EndToEndLabels(t *testing.T) {
	p := rtesting.NewFakeProvider(
		rtesting.Running("a", "svc_a", nil),
		rtesting.Running("b", "svc_b", nil),
	)
	p.Labels["a"] = map[string]string{"plot.label": "A", "plot.color": "#ff0000"}
	p.Labels["b"] = map[string]string{"plot.label": "B"}

	h := newHarness(t, p, registry.LabelRule("", ""), 1, EngineOptions{TickCount: 2})
	require.NoError(t, h.engine.Run(h.ctx))

	require.Len(t, h.renderer.charts, 1)
	series := h.renderer.charts[0].Series
	require.Len(t, series, 1)
	assert.Equal(t, "A", series[0].Name)
	assert.Equal(t, "#ff0000", series[0].Color)
	assert.Zero(t, p.StatsCallCount("b"))
}

func TestEngine_MalformedTickDiscardsCycle(t *testing.T) {
	p, _ := threeApps()
	var once sync.Once
	p.StatsFunc = func(ctx context.Context, id string, call int) ([]byte, error) {
		bad := false
		if id == "c2" && call == 3 {
			once.Do(func() { bad = true })
		}
		if bad {
			return []byte(`{"cpu_stats":`), nil
		}
		return rtesting.StatsBody(rtesting.DefaultLoad, call), nil
	}

	h := newHarness(t, p, registry.PrefixRule("app_"), 1, EngineOptions{TickCount: 5})
	require.NoError(t, h.engine.Run(h.ctx))

	require.Len(t, h.renderer.charts, 1, "the aborted cycle never reaches the renderer")
	assert.Len(t, h.renderer.charts[0].XAxis, 5, "no partial data carried into the next cycle")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RenderCycles.WithLabelValues(telemetry.OutcomeDiscarded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Ticks.WithLabelValues(telemetry.ResultAborted)))
	assert.GreaterOrEqual(t, p.ListCalls, 2, "an aborted cycle rediscovers")
	assert.True(t, h.log.HasLevel("warn"))
}

func TestEngine_GenerationReuse(t *testing.T) {
	p, _ := threeApps()
	h := newHarness(t, p, registry.PrefixRule("app_"), 3, EngineOptions{TickCount: 2, Rediscover: true})
	require.NoError(t, h.engine.Run(h.ctx))

	assert.Len(t, h.renderer.charts, 3)
	assert.Equal(t, 3, p.ListCalls)

	generations := 0
	for _, m := range h.log.Messages {
		if m.Level == "info" && strings.HasPrefix(m.Message, "tracking") {
			generations++
		}
	}
	assert.Equal(t, 1, generations, "an unchanged container set keeps the generation")
}

func TestEngine_NoRediscoverSamplesSameGeneration(t *testing.T) {
	p, _ := threeApps()
	h := newHarness(t, p, registry.PrefixRule("app_"), 2, EngineOptions{TickCount: 2, Rediscover: false})
	require.NoError(t, h.engine.Run(h.ctx))

	assert.Len(t, h.renderer.charts, 2)
	assert.Equal(t, 1, p.ListCalls)
}

func TestEngine_GenerationChange(t *testing.T) {
	p := rtesting.NewFakeProvider()
	p.ListResults = [][]runtime.Container{
		{rtesting.Running("c1", "app_1", nil)},
		{rtesting.Running("c1", "app_1", nil), rtesting.Running("c2", "app_2", nil)},
	}
	h := newHarness(t, p, registry.PrefixRule("app_"), 2, EngineOptions{TickCount: 2, Rediscover: true})
	require.NoError(t, h.engine.Run(h.ctx))

	require.Len(t, h.renderer.charts, 2)
	assert.Len(t, h.renderer.charts[0].Series, 1)
	assert.Len(t, h.renderer.charts[1].Series, 2)
	assert.Len(t, h.renderer.charts[1].XAxis, 2, "new generation starts from an empty store")
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.TrackedContainers))
}

func TestEngine_WaitsForContainers(t *testing.T) {
	p := rtesting.NewFakeProvider()
	p.ListResults = [][]runtime.Container{
		nil,
		nil,
		{rtesting.Running("c1", "app_1", nil)},
	}
	h := newHarness(t, p, registry.PrefixRule("app_"), 1, EngineOptions{TickCount: 2})
	require.NoError(t, h.engine.Run(h.ctx))

	assert.Len(t, h.renderer.charts, 1)
	assert.Equal(t, 3, p.ListCalls)
}

func TestEngine_DuplicateNameRetried(t *testing.T) {
	p := rtesting.NewFakeProvider()
	p.ListResults = [][]runtime.Container{
		{rtesting.Running("a", "app_x", nil), rtesting.Running("b", "app_x", nil)},
		{rtesting.Running("a", "app_x", nil)},
	}
	h := newHarness(t, p, registry.PrefixRule("app_"), 1, EngineOptions{TickCount: 2})
	require.NoError(t, h.engine.Run(h.ctx))

	assert.Len(t, h.renderer.charts, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Discoveries.WithLabelValues(telemetry.ResultDuplicate)))
	assert.True(t, h.log.HasLevel("error"))
}

func TestEngine_FatalErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *engineHarness)
		code  string
	}{
		{
			name: "daemon unreachable during discovery",
			setup: func(h *engineHarness) {
				h.provider.ListErr = errors.New(errors.ErrRuntime, "Cannot list containers", "")
			},
			code: errors.ErrRuntime,
		},
		{
			name: "daemon failure during tick",
			setup: func(h *engineHarness) {
				h.provider.StatsErr["c2"] = errors.New(errors.ErrRuntime, "Container c2 stats failed", "")
			},
			code: errors.ErrRuntime,
		},
		{
			name: "renderer failure",
			setup: func(h *engineHarness) {
				h.renderer.err = errors.New(errors.ErrRender, "Cannot render chart", "")
			},
			code: errors.ErrRender,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := threeApps()
			h := newHarness(t, p, registry.PrefixRule("app_"), 1, EngineOptions{TickCount: 2})
			tt.setup(h)

			err := h.engine.Run(h.ctx)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
			assert.Empty(t, h.out.captions)
		})
	}
}

func TestEngine_PerCoreLayout(t *testing.T) {
	p, _ := threeApps()
	h := newHarness(t, p, registry.PrefixRule("app_"), 1, EngineOptions{TickCount: 3, Mode: stats.CPUPerCore})
	require.NoError(t, h.engine.Run(h.ctx))

	require.Len(t, h.renderer.charts, 1)
	c := h.renderer.charts[0]
	assert.Equal(t, render.LayoutPerCore, c.Layout)
	assert.Equal(t, 4, c.Cores())
	assert.NoError(t, c.Validate())
}

func TestEngine_CancelBeforeStart(t *testing.T) {
	p, _ := threeApps()
	h := newHarness(t, p, registry.PrefixRule("app_"), 1, EngineOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, h.engine.Run(ctx))
	assert.Zero(t, p.ListCalls)
}

func TestSampleCycle_TickIntervalHonorsContext(t *testing.T) {
	p, refs := threeApps()
	s := NewSampler(p, SamplerOptions{})
	require.NoError(t, s.Open(refs))
	defer s.Close()

	store := NewStore(registry.Names(refs)...)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := SampleCycle(ctx, s, store, 5, time.Hour, nil)
	assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, store.Len())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "DISCOVERING", StateDiscovering.String())
	assert.Equal(t, "SAMPLING", StateSampling.String())
	assert.Equal(t, "RENDERING", StateRendering.String())
	assert.Equal(t, "RESET", StateReset.String())
	assert.Equal(t, "REBUILD", StateRebuild.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}

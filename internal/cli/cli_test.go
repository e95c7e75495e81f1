package cli

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/dockerstats/internal/config"
	"github.com/rileyhilliard/dockerstats/internal/deliver"
	"github.com/rileyhilliard/dockerstats/internal/errors"
	"github.com/rileyhilliard/dockerstats/internal/logger"
	"github.com/rileyhilliard/dockerstats/internal/registry"
	rtesting "github.com/rileyhilliard/dockerstats/internal/runtime/testing"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Prefix = "app_"
	cfg.Ticks = 3
	cfg.DiscoveryBackoff = time.Millisecond
	cfg.ChartWidth = 400
	cfg.ChartHeight = 300
	return cfg
}

func apps() *rtesting.FakeProvider {
	return rtesting.NewFakeProvider(
		rtesting.Running("c2aaaaaaaaaaaaaaaa", "app_web", nil),
		rtesting.Running("c1bbbbbbbbbbbbbbbb", "app_api", nil),
		rtesting.Running("c3cccccccccccccccc", "other_db", nil),
	)
}

// captureAfter records deliveries and cancels once it has seen n of them.
type captureAfter struct {
	mu       sync.Mutex
	n        int
	cancel   context.CancelFunc
	images   [][]byte
	captions []string
}

func (c *captureAfter) Deliver(_ context.Context, image []byte, caption string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = append(c.images, image)
	c.captions = append(c.captions, caption)
	if len(c.images) >= c.n {
		c.cancel()
	}
	return nil
}

func TestRootCommandsRegistered(t *testing.T) {
	want := []string{"run", "discover", "sample", "config", "doctor", "version"}
	var got []string
	for _, cmd := range rootCmd.Commands() {
		got = append(got, cmd.Name())
	}
	for _, name := range want {
		assert.Contains(t, got, name)
	}
}

func TestRootConfigFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()
	require.NotNil(t, flags.Lookup("config"))

	for _, key := range []string{
		"channel", "ticks", "tick_interval", "selector", "prefix", "label_key",
		"color_key", "discovery_backoff", "rediscover", "cpu_mode", "memory_unit",
		"fetch_timeout", "max_workers", "inspect_cache_ttl", "docker_host",
		"output_dir", "chart_width", "chart_height", "metrics_addr", "log_level",
		"log_format",
	} {
		assert.NotNil(t, flags.Lookup(config.FlagName(key)), key)
	}
	assert.Nil(t, flags.Lookup("token"), "the token never goes on the command line")
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, errors.New(errors.ErrConfig, "bad", "fix it"))
	assert.True(t, strings.HasPrefix(buf.String(), "✗ bad"))
	assert.Contains(t, buf.String(), "fix it")

	buf.Reset()
	printError(&buf, assert.AnError)
	assert.Equal(t, "✗ "+assert.AnError.Error()+"\n", buf.String())
}

func TestDeliverers_DirOnly(t *testing.T) {
	cfg := testConfig()
	cfg.OutputDir = t.TempDir()

	out, err := deliverers(cfg)
	require.NoError(t, err)
	assert.IsType(t, &deliver.Dir{}, out)
}

func TestDiscoverCommand(t *testing.T) {
	var buf bytes.Buffer
	err := discoverCommand(context.Background(), testConfig(), apps(), &buf, logger.Noop())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "api")
	assert.Contains(t, out, "web")
	assert.Contains(t, out, "c1bbbbbbbbbb")
	assert.NotContains(t, out, "c1bbbbbbbbbbb", "ids are shortened")
	assert.NotContains(t, out, "other_db")
	assert.Contains(t, out, "2 container(s) match")

	// Sorted by logical name.
	assert.Less(t, strings.Index(out, "api"), strings.Index(out, "web"))
}

func TestDiscoverCommand_Labels(t *testing.T) {
	p := rtesting.NewFakeProvider(rtesting.Running("c1", "whatever", nil))
	p.Labels = map[string]map[string]string{
		"c1": {registry.DefaultLabelKey: "Frontend", registry.DefaultColorKey: "red"},
	}
	cfg := testConfig()
	cfg.Prefix = ""

	var buf bytes.Buffer
	require.NoError(t, discoverCommand(context.Background(), cfg, p, &buf, logger.Noop()))
	assert.Contains(t, buf.String(), "Frontend")
	assert.Contains(t, buf.String(), "red")
}

func TestDiscoverCommand_Empty(t *testing.T) {
	cfg := testConfig()
	cfg.Prefix = "nothing_"

	var buf bytes.Buffer
	require.NoError(t, discoverCommand(context.Background(), cfg, apps(), &buf, logger.Noop()))
	assert.Contains(t, buf.String(), "No running containers match")
}

func TestDiscoverCommand_DuplicateName(t *testing.T) {
	p := rtesting.NewFakeProvider(
		rtesting.Running("c1", "app_x", nil),
		rtesting.Running("c2", "x", nil),
	)
	p.Containers[1].Names = []string{"/app_x"}

	err := discoverCommand(context.Background(), testConfig(), p, &bytes.Buffer{}, logger.Noop())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrDuplicateName))
}

func TestSampleCommand(t *testing.T) {
	var buf bytes.Buffer
	err := sampleCommand(context.Background(), testConfig(), apps(), &buf, logger.Noop())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "api")
	assert.Contains(t, out, "web")
	assert.Contains(t, out, "40.0 / 40.0 / 40.0", "default fake load is 40% cpu")
	assert.Contains(t, out, "50.0 / 50.0 / 50.0", "default fake load is 50 MiB")
	assert.Contains(t, out, "MEM MB")
	assert.Contains(t, out, "3 tick(s)")
	assert.NotContains(t, out, "PER-CORE")
}

func TestSampleCommand_PerCore(t *testing.T) {
	cfg := testConfig()
	cfg.CPUMode = "per-core"

	var buf bytes.Buffer
	require.NoError(t, sampleCommand(context.Background(), cfg, apps(), &buf, logger.Noop()))
	assert.Contains(t, buf.String(), "PER-CORE")
	assert.Contains(t, buf.String(), "10 10 10 10")
}

func TestSampleCommand_NoContainers(t *testing.T) {
	cfg := testConfig()
	cfg.Prefix = "nothing_"

	err := sampleCommand(context.Background(), cfg, apps(), &bytes.Buffer{}, logger.Noop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No running containers match")
}

func TestSampleCommand_AbortedTick(t *testing.T) {
	p := apps()
	p.StatsErr = map[string]error{
		"c1bbbbbbbbbbbbbbbb": errors.New(errors.ErrTickAborted, "container went away", ""),
	}

	err := sampleCommand(context.Background(), testConfig(), p, &bytes.Buffer{}, logger.Noop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrTickAborted))
}

func TestSummarize(t *testing.T) {
	s := summarize([]float64{1, 5, 3})
	assert.Equal(t, 3.0, s.Last)
	assert.Equal(t, 3.0, s.Mean)
	assert.Equal(t, 5.0, s.Max)

	assert.Equal(t, seriesStats{}, summarize(nil))

	neg := summarize([]float64{-2, -1})
	assert.Equal(t, -1.0, neg.Max)
}

func TestRunEngine_DeliversChart(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := &captureAfter{n: 2, cancel: cancel}
	log := logger.NewBufferLogger()

	err := runEngine(ctx, testConfig(), apps(), out, log)
	require.NoError(t, err)

	require.Len(t, out.images, 2)
	img, err := png.Decode(bytes.NewReader(out.images[0]))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy(), "cpu and memory panels stacked")
	assert.Contains(t, out.captions[0], "2 container(s), 3 samples")
	assert.True(t, log.Contains("info", "stopped"))
}

func TestRunEngine_WritesToDirectory(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dir := t.TempDir()
	cfg := testConfig()
	cfg.OutputDir = dir
	out, err := deliverers(cfg)
	require.NoError(t, err)

	stop := &captureAfter{n: 1, cancel: cancel}
	require.NoError(t, runEngine(ctx, cfg, apps(), deliver.Fanout{out, stop}, logger.Noop()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "dockerstats-"))
	assert.Equal(t, ".png", filepath.Ext(entries[0].Name()))
}

func TestRunEngine_MetricsListenFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := testConfig()
	cfg.MetricsAddr = "127.0.0.1:99999"

	err := runEngine(ctx, cfg, apps(), &captureAfter{n: 1000, cancel: cancel}, logger.Noop())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.NoError(t, ctx.Err(), "failure came from the listener, not the timeout")
}

func TestRunEngine_RuntimeFailureIsFatal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p := apps()
	p.ListErr = errors.New(errors.ErrRuntime, "daemon unreachable", "")

	err := runEngine(ctx, testConfig(), p, &captureAfter{n: 1, cancel: cancel}, logger.Noop())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRuntime))
}

func TestPrintConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Token = "123:secret"
	cfg.Channel = -42

	var buf bytes.Buffer
	require.NoError(t, printConfig(&buf, cfg))

	out := buf.String()
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "token: <redacted>")
	assert.Contains(t, out, "fetch_timeout: 30s")
	assert.Contains(t, out, "discovery_backoff: 1ms")
	assert.Contains(t, out, "prefix: app_")
	assert.Contains(t, out, "channel: -42")

	// The dump loads back to the same config, token aside.
	path := filepath.Join(t.TempDir(), "dump.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	loaded, err := config.Load(path, nil)
	require.NoError(t, err)
	loaded.Token = cfg.Token
	assert.Equal(t, cfg, loaded)
}

func TestDoctorCommand_AllGood(t *testing.T) {
	cfg := testConfig()
	cfg.OutputDir = t.TempDir()

	var buf bytes.Buffer
	err := doctorCommand(context.Background(), cfg, apps(), doctorExtras(cfg), &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "CONFIG")
	assert.Contains(t, out, "DOCKER")
	assert.Contains(t, out, "DELIVERY")
	assert.Contains(t, out, "2 container(s) match")
	assert.Contains(t, out, "checks passed")
}

func TestDoctorCommand_Failures(t *testing.T) {
	cfg := testConfig()
	cfg.Ticks = 1
	p := apps()
	p.ListErr = errors.New(errors.ErrRuntime, "Cannot reach Docker", "")

	var buf bytes.Buffer
	err := doctorCommand(context.Background(), cfg, p, nil, &buf)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	out := buf.String()
	assert.Contains(t, out, "ticks must be at least 2")
	assert.Contains(t, out, "Cannot reach Docker")
	assert.NotContains(t, out, "match", "selection is skipped for a broken config")
	assert.Contains(t, out, "2 checks failed")
}

func TestDoctorExtras(t *testing.T) {
	cfg := testConfig()
	assert.Empty(t, doctorExtras(cfg))

	cfg.OutputDir = "/tmp/x"
	cfg.Token = "t"
	cfg.Channel = 1
	extras := doctorExtras(cfg)
	require.Len(t, extras, 2)
	assert.Equal(t, "output_dir", extras[0].Name())
	assert.Equal(t, "telegram", extras[1].Name())
}

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rileyhilliard/dockerstats/internal/config"
	"github.com/rileyhilliard/dockerstats/internal/deliver"
	"github.com/rileyhilliard/dockerstats/internal/logger"
	"github.com/rileyhilliard/dockerstats/internal/monitor"
	"github.com/rileyhilliard/dockerstats/internal/registry"
	"github.com/rileyhilliard/dockerstats/internal/render"
	"github.com/rileyhilliard/dockerstats/internal/runtime"
	"github.com/rileyhilliard/dockerstats/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sample, chart and deliver until interrupted",
	Long: `Discover the selected containers, sample them for --ticks ticks, render
a chart, deliver it, and start over. Stops cleanly on SIGINT or SIGTERM.

Examples:
  DS_TOKEN=... DS_CHANNEL=-100123 dockerstats run --prefix app_
  dockerstats run --selector labels --output-dir ./charts
  dockerstats run --prefix web- --cpu-mode per-core --ticks 120`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := config.ValidateDelivery(cfg); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runCommand(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runCommand builds the production dependencies and runs the engine.
func runCommand(ctx context.Context, cfg *config.Config) error {
	log, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	provider, err := runtime.NewDocker(cfg.DockerHost)
	if err != nil {
		return err
	}
	defer provider.Close()

	out, err := deliverers(cfg)
	if err != nil {
		return err
	}

	return runEngine(ctx, cfg, provider, out, log)
}

// deliverers returns the configured delivery targets.
func deliverers(cfg *config.Config) (deliver.Deliverer, error) {
	var out deliver.Fanout
	if cfg.Token != "" {
		tg, err := deliver.NewTelegram(cfg.Token, cfg.Channel)
		if err != nil {
			return nil, err
		}
		out = append(out, tg)
	}
	if cfg.OutputDir != "" {
		out = append(out, deliver.NewDir(cfg.OutputDir))
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

// runEngine wires registry, sampler, renderer and engine around provider and
// runs until ctx is cancelled or something fatal happens. The metrics
// listener, when configured, shares the lifetime of the engine.
func runEngine(ctx context.Context, cfg *config.Config, provider runtime.Provider, out deliver.Deliverer, log logger.Logger) error {
	rule, err := cfg.Rule()
	if err != nil {
		return err
	}
	mode, err := cfg.Mode()
	if err != nil {
		return err
	}
	unit, err := cfg.Unit()
	if err != nil {
		return err
	}

	metrics := telemetry.New()

	reg := registry.New(provider, registry.Options{
		Rule:     rule,
		Backoff:  cfg.DiscoveryBackoff,
		CacheTTL: cfg.InspectCacheTTL,
		Logger:   logger.WithComponent(log, "registry"),
		OnEmpty:  func() { metrics.Discovery(telemetry.ResultEmpty) },
	})

	sampler := monitor.NewSampler(provider, monitor.SamplerOptions{
		Mode:         mode,
		MemoryUnit:   unit,
		FetchTimeout: cfg.FetchTimeout,
		MaxWorkers:   cfg.MaxWorkers,
		Logger:       logger.WithComponent(log, "sampler"),
	})

	engine := monitor.NewEngine(reg, sampler, render.NewRenderer(cfg.ChartWidth, cfg.ChartHeight), out, monitor.EngineOptions{
		TickCount:    cfg.Ticks,
		TickInterval: cfg.TickInterval,
		Rediscover:   cfg.Rediscover,
		Backoff:      cfg.DiscoveryBackoff,
		Mode:         mode,
		MemoryUnit:   cfg.UnitLabel(),
		Title:        "Containers by " + rule.String(),
		Metrics:      metrics,
		Logger:       logger.WithComponent(log, "engine"),
	})

	log.Info("starting: selecting %s, %d ticks per chart, %s cpu", rule, cfg.Ticks, mode)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Run returns nil on cancellation; the metrics listener stops with it.
		defer cancel()
		return engine.Run(gctx)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.MetricsAddr, logger.WithComponent(log, "metrics"))
		})
	}

	err = g.Wait()
	log.Info("stopped")
	return err
}

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/dockerstats/internal/config"
	"github.com/rileyhilliard/dockerstats/internal/errors"
	"github.com/rileyhilliard/dockerstats/internal/logger"
	"github.com/rileyhilliard/dockerstats/internal/monitor"
	"github.com/rileyhilliard/dockerstats/internal/registry"
	"github.com/rileyhilliard/dockerstats/internal/runtime"
	"github.com/rileyhilliard/dockerstats/internal/stats"
	"github.com/rileyhilliard/dockerstats/internal/ui"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Sample the selected containers once and print a summary",
	Long: `Discover the selected containers, collect --ticks ticks and print the
last, mean and peak values per container. Nothing is rendered or delivered,
which makes this a quick check that selection and stats decoding work.

Examples:
  dockerstats sample --prefix app_ --ticks 5
  dockerstats sample --selector labels --cpu-mode per-core`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		provider, err := runtime.NewDocker(cfg.DockerHost)
		if err != nil {
			return err
		}
		defer provider.Close()

		return sampleCommand(cmd.Context(), cfg, provider, cmd.OutOrStdout(), log)
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)
}

func sampleCommand(ctx context.Context, cfg *config.Config, provider runtime.Provider, w io.Writer, log logger.Logger) error {
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

	reg := registry.New(provider, registry.Options{
		Rule:     rule,
		CacheTTL: cfg.InspectCacheTTL,
		Logger:   logger.WithComponent(log, "registry"),
	})
	refs, err := reg.Refresh(ctx)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return errors.New(errors.ErrRuntime,
			fmt.Sprintf("No running containers match %s", rule),
			"Start a matching container, or check the selector with 'dockerstats discover'.")
	}

	sampler := monitor.NewSampler(provider, monitor.SamplerOptions{
		Mode:         mode,
		MemoryUnit:   unit,
		FetchTimeout: cfg.FetchTimeout,
		MaxWorkers:   cfg.MaxWorkers,
		Logger:       logger.WithComponent(log, "sampler"),
	})
	if err := sampler.Open(refs); err != nil {
		return errors.Wrap(err, "Cannot start sampling")
	}
	defer sampler.Close()

	store := monitor.NewStore(registry.Names(refs)...)
	if err := monitor.SampleCycle(ctx, sampler, store, cfg.Ticks, cfg.TickInterval, nil); err != nil {
		return err
	}

	fmt.Fprint(w, renderSummary(store, refs, mode, cfg.UnitLabel()))
	xs := store.XAxis()
	fmt.Fprintln(w, ui.Success(fmt.Sprintf("%d tick(s) from %s to %s",
		len(xs), xs[0].Format("15:04:05.000"), xs[len(xs)-1].Format("15:04:05.000"))))
	return nil
}

// seriesStats is the last, mean and max of one series.
type seriesStats struct {
	Last, Mean, Max float64
}

func summarize(values []float64) seriesStats {
	var s seriesStats
	if len(values) == 0 {
		return s
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i == 0 || v > s.Max {
			s.Max = v
		}
	}
	s.Last = values[len(values)-1]
	s.Mean = sum / float64(len(values))
	return s
}

func renderSummary(store *monitor.Store, refs []registry.ContainerRef, mode stats.CPUMode, unitLabel string) string {
	columns := []ui.TableColumn{
		{Title: "NAME", Width: 24},
		{Title: "CPU % (last/mean/max)", Width: 26},
		{Title: fmt.Sprintf("MEM %s (last/mean/max)", unitLabel), Width: 30},
	}
	if mode == stats.CPUPerCore {
		columns = append(columns, ui.TableColumn{Title: "PER-CORE % (mean)", Width: 20})
	}

	rows := make([][]string, 0, len(refs))
	for _, ref := range refs {
		samples := store.Get(ref.Name)
		cpu := make([]float64, len(samples))
		mem := make([]float64, len(samples))
		for i, s := range samples {
			cpu[i] = s.CPU
			mem[i] = s.Memory
		}
		c, m := summarize(cpu), summarize(mem)
		row := []string{
			ref.Name,
			fmt.Sprintf("%.1f / %.1f / %.1f", c.Last, c.Mean, c.Max),
			fmt.Sprintf("%.1f / %.1f / %.1f", m.Last, m.Mean, m.Max),
		}
		if mode == stats.CPUPerCore {
			row = append(row, perCoreMeans(samples))
		}
		rows = append(rows, row)
	}
	return ui.RenderTable(columns, rows)
}

func perCoreMeans(samples []monitor.Sample) string {
	if len(samples) == 0 {
		return ""
	}
	cores := len(samples[0].PerCore)
	out := ""
	for c := 0; c < cores; c++ {
		values := make([]float64, 0, len(samples))
		for _, s := range samples {
			if c < len(s.PerCore) {
				values = append(values, s.PerCore[c])
			}
		}
		if c > 0 {
			out += " "
		}
		out += fmt.Sprintf("%.0f", summarize(values).Mean)
	}
	return out
}

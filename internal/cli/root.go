package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rileyhilliard/dockerstats/internal/config"
	"github.com/rileyhilliard/dockerstats/internal/errors"
	"github.com/rileyhilliard/dockerstats/internal/logger"
)

// cfgFile is the --config flag.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "dockerstats",
	Short: "Chart CPU and memory of selected Docker containers",
	Long: `dockerstats samples CPU and memory of a chosen set of running containers,
collects a fixed number of ticks, renders them as a PNG chart and delivers it
to a Telegram channel or a directory. Then it does it again.

Containers are selected by name prefix (--prefix app_) or by a pair of labels
(plot.label for the display name, plot.color for the series color).

Every setting can come from a YAML file (--config), a DS_* environment
variable (DS_TOKEN, DS_CHANNEL, DS_PREFIX, ...) or a flag.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "path to a YAML config file")
	addConfigFlags(pf)
}

// addConfigFlags registers one flag per config key except the token, which
// only comes from the file or DS_TOKEN. Flag defaults are shown in --help but
// only flags the user set override the file and environment.
func addConfigFlags(fs *pflag.FlagSet) {
	def := config.DefaultConfig()

	fs.Int64("channel", 0, "Telegram chat id that receives charts")
	fs.Int("ticks", def.Ticks, "samples per chart (at least 2)")
	fs.Duration("tick-interval", def.TickInterval, "pause between ticks, 0 samples back to back")
	fs.String("selector", def.Selector, "container selector: auto, prefix or labels")
	fs.String("prefix", def.Prefix, "container name prefix for the prefix selector")
	fs.String("label-key", def.LabelKey, "label holding the display name")
	fs.String("color-key", def.ColorKey, "label holding the series color")
	fs.Duration("discovery-backoff", def.DiscoveryBackoff, "wait between discovery attempts")
	fs.Bool("rediscover", def.Rediscover, "rediscover containers after every chart")
	fs.String("cpu-mode", def.CPUMode, "aggregate or per-core")
	fs.String("memory-unit", def.MemoryUnit, "memory display unit, e.g. 1MB or 1GB")
	fs.Duration("fetch-timeout", def.FetchTimeout, "per-container stats timeout, 0 waits forever")
	fs.Int("max-workers", def.MaxWorkers, "upper bound on concurrent stats fetches")
	fs.Duration("inspect-cache-ttl", def.InspectCacheTTL, "how long container labels are cached")
	fs.String("docker-host", def.DockerHost, "Docker Engine API endpoint (defaults to DOCKER_HOST)")
	fs.String("output-dir", def.OutputDir, "also write every chart to this directory")
	fs.Int("chart-width", def.ChartWidth, "chart panel width in pixels")
	fs.Int("chart-height", def.ChartHeight, "chart panel height in pixels")
	fs.String("metrics-addr", def.MetricsAddr, "serve Prometheus metrics on this address")
	fs.String("log-level", def.LogLevel, "debug, info, warn or error")
	fs.String("log-format", def.LogFormat, "auto, text or json")
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError writes structured errors as-is and prefixes anything else.
func printError(w io.Writer, err error) {
	msg := err.Error()
	if !strings.HasPrefix(msg, "✗") {
		msg = "✗ " + msg
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(w, msg)
}

// loadConfig resolves and validates the configuration for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg and installs it as the default.
func newLogger(cfg *config.Config, w io.Writer) (logger.Logger, error) {
	log, err := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: w,
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot set up logging",
			"Check log_level and log_format")
	}
	logger.SetDefault(log)
	return log, nil
}

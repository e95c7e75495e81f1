package config

import (
	"os"
	"strings"

	"github.com/rileyhilliard/dockerstats/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. DS_TOKEN.
const EnvPrefix = "DS"

// keys lists every config key. Each is bound to DS_<KEY> and, when present,
// to the flag of the same name with dashes (cpu_mode -> --cpu-mode).
var keys = []string{
	"token",
	"channel",
	"ticks",
	"tick_interval",
	"selector",
	"prefix",
	"label_key",
	"color_key",
	"discovery_backoff",
	"rediscover",
	"cpu_mode",
	"memory_unit",
	"fetch_timeout",
	"max_workers",
	"inspect_cache_ttl",
	"docker_host",
	"output_dir",
	"chart_width",
	"chart_height",
	"metrics_addr",
	"log_level",
	"log_format",
}

// FlagName returns the command-line flag name for a config key.
func FlagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// Load resolves the configuration from defaults, the optional YAML file at
// path, the environment and flags. Only flags the user actually set override
// lower layers. The result is not validated; call Validate.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found: "+path,
					"Check the path passed to --config")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file exists and is valid YAML")
		}
	}

	if flags != nil {
		for _, key := range keys {
			f := flags.Lookup(FlagName(key))
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Failed to bind flag --"+f.Name,
					"This is a bug, please report it")
			}
		}
	}

	return parseConfig(v, path)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("token", def.Token)
	v.SetDefault("channel", def.Channel)
	v.SetDefault("ticks", def.Ticks)
	v.SetDefault("tick_interval", def.TickInterval)
	v.SetDefault("selector", def.Selector)
	v.SetDefault("prefix", def.Prefix)
	v.SetDefault("label_key", def.LabelKey)
	v.SetDefault("color_key", def.ColorKey)
	v.SetDefault("discovery_backoff", def.DiscoveryBackoff)
	v.SetDefault("rediscover", def.Rediscover)
	v.SetDefault("cpu_mode", def.CPUMode)
	v.SetDefault("memory_unit", def.MemoryUnit)
	v.SetDefault("fetch_timeout", def.FetchTimeout)
	v.SetDefault("max_workers", def.MaxWorkers)
	v.SetDefault("inspect_cache_ttl", def.InspectCacheTTL)
	v.SetDefault("docker_host", def.DockerHost)
	v.SetDefault("output_dir", def.OutputDir)
	v.SetDefault("chart_width", def.ChartWidth)
	v.SetDefault("chart_height", def.ChartHeight)
	v.SetDefault("metrics_addr", def.MetricsAddr)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		where := "the environment and flags"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the values in "+where+" (durations look like 1s or 5m)")
	}

	cfg.Selector = strings.ToLower(strings.TrimSpace(cfg.Selector))
	cfg.CPUMode = strings.ToLower(strings.TrimSpace(cfg.CPUMode))
	return cfg, nil
}

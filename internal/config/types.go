package config

import "time"

// Selector values for choosing the registry rule.
const (
	SelectorAuto   = "auto"
	SelectorPrefix = "prefix"
	SelectorLabels = "labels"
)

// Config is the resolved process configuration.
//
// Values come from, in increasing precedence: built-in defaults, the YAML
// file given with --config, DS_* environment variables, command-line flags.
type Config struct {
	// Token is the Telegram bot token used for delivery.
	Token string `yaml:"token" mapstructure:"token"`

	// Channel is the Telegram chat id that receives charts.
	Channel int64 `yaml:"channel" mapstructure:"channel"`

	// Ticks is the number of samples per render cycle. Must be at least 2.
	Ticks int `yaml:"ticks" mapstructure:"ticks"`

	// TickInterval is the pause between ticks. Zero samples back to back,
	// in which case the Engine API's own stats latency sets the pace.
	TickInterval time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`

	// Selector picks the registry rule: auto, prefix or labels.
	// auto means prefix when Prefix is set, labels otherwise.
	Selector string `yaml:"selector" mapstructure:"selector"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
	LabelKey string `yaml:"label_key" mapstructure:"label_key"`
	ColorKey string `yaml:"color_key" mapstructure:"color_key"`

	DiscoveryBackoff time.Duration `yaml:"discovery_backoff" mapstructure:"discovery_backoff"`
	Rediscover       bool          `yaml:"rediscover" mapstructure:"rediscover"`

	// CPUMode is aggregate or per-core. It also selects the chart layout.
	CPUMode string `yaml:"cpu_mode" mapstructure:"cpu_mode"`

	// MemoryUnit is the display unit for memory, e.g. 1MB, 1GB, 1KB.
	MemoryUnit string `yaml:"memory_unit" mapstructure:"memory_unit"`

	FetchTimeout    time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	MaxWorkers      int           `yaml:"max_workers" mapstructure:"max_workers"`
	InspectCacheTTL time.Duration `yaml:"inspect_cache_ttl" mapstructure:"inspect_cache_ttl"`

	// DockerHost overrides DOCKER_HOST for the Engine API client.
	DockerHost string `yaml:"docker_host" mapstructure:"docker_host"`

	// OutputDir receives a copy of every rendered chart when set.
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`

	ChartWidth  int `yaml:"chart_width" mapstructure:"chart_width"`
	ChartHeight int `yaml:"chart_height" mapstructure:"chart_height"`

	// MetricsAddr is the Prometheus listen address. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr"`

	LogLevel  string `yaml:"log_level" mapstructure:"log_level"`
	LogFormat string `yaml:"log_format" mapstructure:"log_format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Ticks:            60,
		Selector:         SelectorAuto,
		LabelKey:         "plot.label",
		ColorKey:         "plot.color",
		DiscoveryBackoff: time.Second,
		Rediscover:       true,
		CPUMode:          "aggregate",
		MemoryUnit:       "1MB",
		FetchTimeout:     30 * time.Second,
		MaxWorkers:       32,
		InspectCacheTTL:  10 * time.Minute,
		ChartWidth:       1024,
		ChartHeight:      480,
		LogLevel:         "info",
		LogFormat:        "auto",
	}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Token != "" {
		out.Token = "<redacted>"
	}
	return &out
}

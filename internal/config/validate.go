package config

import (
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/rileyhilliard/dockerstats/internal/errors"
	"github.com/rileyhilliard/dockerstats/internal/logger"
	"github.com/rileyhilliard/dockerstats/internal/registry"
	"github.com/rileyhilliard/dockerstats/internal/stats"
	log "github.com/sirupsen/logrus"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig, "No configuration loaded", "This is a bug, please report it")
	}

	if cfg.Ticks < 2 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("ticks must be at least 2, got %d", cfg.Ticks),
			"A chart needs two samples to draw a line. Set --ticks or DS_TICKS to 2 or more.")
	}

	for name, d := range map[string]int64{
		"tick_interval":     int64(cfg.TickInterval),
		"discovery_backoff": int64(cfg.DiscoveryBackoff),
		"fetch_timeout":     int64(cfg.FetchTimeout),
		"inspect_cache_ttl": int64(cfg.InspectCacheTTL),
	} {
		if d < 0 {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("%s can't be negative", name),
				"Use a duration like 500ms, 1s or 5m, or 0 to disable.")
		}
	}

	if cfg.MaxWorkers < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("max_workers must be at least 1, got %d", cfg.MaxWorkers),
			"Leave it unset to use the default of 32.")
	}

	if cfg.ChartWidth < 100 || cfg.ChartHeight < 100 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Chart panels of %dx%d are too small to draw", cfg.ChartWidth, cfg.ChartHeight),
			"Use at least 100 pixels for chart_width and chart_height.")
	}

	if _, err := cfg.Rule(); err != nil {
		return err
	}
	if _, err := cfg.Mode(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Unknown cpu_mode '%s'", cfg.CPUMode),
			"Use 'aggregate' or 'per-core'.")
	}
	if _, err := cfg.Unit(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't parse memory_unit '%s'", cfg.MemoryUnit),
			"Use a size like 1MB, 1GB or 1KB.")
	}

	if err := validateLogging(cfg); err != nil {
		return err
	}

	return nil
}

// ValidateDelivery checks that charts have somewhere to go.
func ValidateDelivery(cfg *Config) error {
	if cfg.Token == "" && cfg.OutputDir == "" {
		return errors.New(errors.ErrConfig,
			"No delivery target configured",
			"Set DS_TOKEN and DS_CHANNEL to post to Telegram, or --output-dir to write PNG files.")
	}
	if cfg.Token != "" && cfg.Channel == 0 {
		return errors.New(errors.ErrConfig,
			"A Telegram token is set but no channel",
			"Set DS_CHANNEL to the numeric chat id that should receive charts.")
	}
	return nil
}

func validateLogging(cfg *Config) error {
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Unknown log_level '%s'", cfg.LogLevel),
			"Use debug, info, warn or error.")
	}
	switch cfg.LogFormat {
	case logger.FormatAuto, logger.FormatText, logger.FormatJSON:
		return nil
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown log_format '%s'", cfg.LogFormat),
			"Use auto, text or json.")
	}
}

// Rule builds the registry selection rule from the selector settings.
func (c *Config) Rule() (registry.Rule, error) {
	var rule registry.Rule
	switch c.Selector {
	case SelectorAuto, "":
		if c.Prefix != "" {
			rule = registry.PrefixRule(c.Prefix)
		} else {
			rule = registry.LabelRule(c.LabelKey, c.ColorKey)
		}
	case SelectorPrefix:
		rule = registry.PrefixRule(c.Prefix)
	case SelectorLabels:
		rule = registry.LabelRule(c.LabelKey, c.ColorKey)
	default:
		return registry.Rule{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown selector '%s'", c.Selector),
			"Use 'prefix', 'labels' or 'auto'.")
	}

	if err := rule.Validate(); err != nil {
		return registry.Rule{}, errors.WrapWithCode(err, errors.ErrConfig,
			"Container selection rule is incomplete",
			"Set --prefix for the prefix selector, or label_key and color_key for the labels selector.")
	}
	return rule, nil
}

// Mode returns the parsed cpu_mode.
func (c *Config) Mode() (stats.CPUMode, error) {
	return stats.ParseCPUMode(c.CPUMode)
}

// Unit returns the parsed memory_unit.
func (c *Config) Unit() (datasize.ByteSize, error) {
	return stats.ParseUnit(c.MemoryUnit)
}

// UnitLabel is the axis label for the memory unit, e.g. "MB" or "512KB".
func (c *Config) UnitLabel() string {
	unit, err := c.Unit()
	if err != nil {
		return c.MemoryUnit
	}
	s := unit.String()
	if len(s) > 1 && s[0] == '1' && (s[1] < '0' || s[1] > '9') {
		return s[1:]
	}
	return s
}

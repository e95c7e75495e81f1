package cli

import (
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/dockerstats/internal/config"
	"github.com/rileyhilliard/dockerstats/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	Long: `Print the configuration after merging defaults, the --config file, DS_*
environment variables and flags, as YAML. The token is redacted.

The output is a valid config file:
  dockerstats config --prefix app_ > dockerstats.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		if err := printConfig(cmd.OutOrStdout(), cfg); err != nil {
			return err
		}
		return config.Validate(cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// printConfig writes cfg as YAML with durations in their string form, so the
// output loads back through config.Load unchanged.
func printConfig(w io.Writer, cfg *config.Config) error {
	var node yaml.Node
	if err := node.Encode(cfg.Redacted()); err != nil {
		return errors.Wrap(err, "Cannot encode config as YAML")
	}

	durations := map[string]time.Duration{
		"tick_interval":     cfg.TickInterval,
		"discovery_backoff": cfg.DiscoveryBackoff,
		"fetch_timeout":     cfg.FetchTimeout,
		"inspect_cache_ttl": cfg.InspectCacheTTL,
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if d, ok := durations[node.Content[i].Value]; ok {
			node.Content[i+1].Tag = "!!str"
			node.Content[i+1].Value = d.String()
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return errors.Wrap(err, "Cannot encode config as YAML")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "Cannot encode config as YAML")
	}
	return nil
}

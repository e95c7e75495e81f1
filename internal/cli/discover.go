package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/dockerstats/internal/config"
	"github.com/rileyhilliard/dockerstats/internal/logger"
	"github.com/rileyhilliard/dockerstats/internal/registry"
	"github.com/rileyhilliard/dockerstats/internal/render"
	"github.com/rileyhilliard/dockerstats/internal/runtime"
	"github.com/rileyhilliard/dockerstats/internal/ui"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the containers the current selector picks",
	Long: `Run container discovery once and print the selected containers with
their logical names and series colors. Does not wait for containers to appear.

Fails when two containers resolve to the same logical name.

Examples:
  dockerstats discover --prefix app_
  dockerstats discover --selector labels --label-key chart.name`,
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

		return discoverCommand(cmd.Context(), cfg, provider, cmd.OutOrStdout(), log)
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

func discoverCommand(ctx context.Context, cfg *config.Config, provider runtime.Provider, w io.Writer, log logger.Logger) error {
	rule, err := cfg.Rule()
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
		fmt.Fprintln(w, ui.Muted(fmt.Sprintf("No running containers match %s", rule)))
		return nil
	}

	fmt.Fprint(w, renderRefs(refs))
	fmt.Fprintln(w, ui.Success(fmt.Sprintf("%d container(s) match %s", len(refs), rule)))
	return nil
}

func renderRefs(refs []registry.ContainerRef) string {
	columns := []ui.TableColumn{
		{Title: "NAME", Width: 24},
		{Title: "CONTAINER", Width: 14},
		{Title: "COLOR", Width: 10},
	}
	rows := make([][]string, len(refs))
	for i, ref := range refs {
		id := ref.ID
		if len(id) > 12 {
			id = id[:12]
		}
		hex := render.ColorHex(ref.Color, i)
		color := ref.Color
		if color == "" {
			color = hex
		}
		rows[i] = []string{ref.Name, id, ui.Swatch(hex) + " " + color}
	}
	return ui.RenderTable(columns, rows)
}

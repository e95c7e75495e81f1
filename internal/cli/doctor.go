package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/dockerstats/internal/config"
	"github.com/rileyhilliard/dockerstats/internal/doctor"
	"github.com/rileyhilliard/dockerstats/internal/errors"
	"github.com/rileyhilliard/dockerstats/internal/registry"
	"github.com/rileyhilliard/dockerstats/internal/runtime"
	"github.com/rileyhilliard/dockerstats/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, Docker access and delivery",
	Long: `Run preflight checks before starting 'dockerstats run':

  - the configuration is valid and has a delivery target
  - the Docker daemon answers
  - the selector picks containers without name clashes
  - stats decode in the configured cpu mode
  - the output directory is writable and the Telegram bot can see the chat

Exits non-zero when any check fails.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}

		provider, err := runtime.NewDocker(cfg.DockerHost)
		if err != nil {
			return err
		}
		defer provider.Close()

		return doctorCommand(cmd.Context(), cfg, provider, doctorExtras(cfg), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// doctorExtras returns the delivery checks that apply to cfg.
func doctorExtras(cfg *config.Config) []doctor.Check {
	var checks []doctor.Check
	if cfg.OutputDir != "" {
		checks = append(checks, &doctor.OutputDirCheck{Dir: cfg.OutputDir})
	}
	if cfg.Token != "" {
		checks = append(checks, &doctor.TelegramCheck{Token: cfg.Token, Channel: cfg.Channel})
	}
	return checks
}

func doctorCommand(ctx context.Context, cfg *config.Config, provider runtime.Provider, extras []doctor.Check, w io.Writer) error {
	checks := []doctor.Check{
		&doctor.ConfigCheck{Config: cfg},
		&doctor.DaemonCheck{Provider: provider},
	}

	// Selection and stats need a usable rule and mode; a broken config is
	// already reported by the config check.
	if config.Validate(cfg) == nil {
		rule, _ := cfg.Rule()
		mode, _ := cfg.Mode()
		reg := registry.New(provider, registry.Options{Rule: rule, CacheTTL: cfg.InspectCacheTTL})
		checks = append(checks,
			&doctor.SelectionCheck{Registry: reg},
			&doctor.StatsCheck{Provider: provider, Registry: reg, Mode: mode},
		)
	}
	checks = append(checks, extras...)

	results := doctor.RunAll(ctx, checks)
	fmt.Fprint(w, renderChecks(results))
	fmt.Fprintln(w, doctor.Summary(results))

	if doctor.HasFailures(results) {
		return errors.New(errors.ErrConfig,
			"Preflight checks failed",
			"Fix the items marked ✗ above and run 'dockerstats doctor' again.")
	}
	return nil
}

// renderChecks groups results by category in the order they first appear.
func renderChecks(results []doctor.CheckResult) string {
	successStyle := lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	errorStyle := lipgloss.NewStyle().Foreground(ui.ColorError)
	warnStyle := lipgloss.NewStyle().Foreground(ui.ColorWarning)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ui.ColorPrimary)

	var order []string
	byCategory := make(map[string][]doctor.CheckResult)
	for _, r := range results {
		if _, ok := byCategory[r.Category]; !ok {
			order = append(order, r.Category)
		}
		byCategory[r.Category] = append(byCategory[r.Category], r)
	}

	var out string
	for _, cat := range order {
		out += headerStyle.Render(cat) + "\n"
		for _, r := range byCategory[cat] {
			var icon string
			switch r.Status {
			case doctor.StatusPass:
				icon = successStyle.Render(ui.SymbolSuccess)
			case doctor.StatusWarn:
				icon = warnStyle.Render(ui.SymbolPending)
			default:
				icon = errorStyle.Render(ui.SymbolFail)
			}
			out += "  " + icon + " " + r.Message + "\n"
			if r.Suggestion != "" && r.Status != doctor.StatusPass {
				out += "    " + ui.Muted(r.Suggestion) + "\n"
			}
		}
		out += "\n"
	}
	return out
}

package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/kx0101/sessioncheck/internal/cli"
	"github.com/kx0101/sessioncheck/internal/input"
	"github.com/kx0101/sessioncheck/internal/models"
	"github.com/kx0101/sessioncheck/internal/output"
	"github.com/kx0101/sessioncheck/internal/rules"
)

func newSessionsCmd(a *app) *cobra.Command {
	var (
		sessionsFile string
		filter       input.Filter
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions available for validation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			provider, closeFn, err := newProviderFn(ctx, a.cfg, sessionsFile)
			if err != nil {
				return err
			}
			defer closeFn()

			sessions, err := provider.ListSessions(ctx, filter)
			if err != nil {
				return cli.Exit(cli.ExitRuntime, err)
			}

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), map[string]any{"sessions": sessions}); err != nil {
					return cli.Exit(cli.ExitRuntime, err)
				}
				return nil
			}

			_, err = io.WriteString(cmd.OutOrStdout(), formatSessions(sessions))
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&sessionsFile, "sessions", "s", "", "sessions file instead of the telemetry API")
	f.StringVar(&filter.App, "app", "", "app name contains")
	f.StringVar(&filter.Device, "device", "", "device model or manufacturer contains")
	f.IntVar(&filter.Limit, "limit", 0, "list at most this many sessions")
	f.BoolVar(&asJSON, "json", false, "print raw sessions as JSON")

	return cmd
}

func formatSessions(sessions []models.Session) string {
	if len(sessions) == 0 {
		return "No sessions found.\n"
	}

	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		app := rules.Resolve(s, "app.name").String()
		if app == "" {
			app = rules.Resolve(s, "app.packageName").String()
		}

		rows = append(rows, []string{
			s.ID(),
			app,
			rules.Resolve(s, "device.model").String(),
			output.FormatValue(rules.Resolve(s, "session.date").Interface()),
			output.FormatValue(rules.Resolve(s, "session.duration").Interface()),
		})
	}

	return output.FormatGrid([]string{"ID", "APP", "DEVICE", "DATE", "DURATION"}, rows)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kx0101/sessioncheck/internal/artifacts"
	"github.com/kx0101/sessioncheck/internal/cli"
	"github.com/kx0101/sessioncheck/internal/input"
	"github.com/kx0101/sessioncheck/internal/models"
	"github.com/kx0101/sessioncheck/internal/output"
	"github.com/kx0101/sessioncheck/internal/report"
	"github.com/kx0101/sessioncheck/internal/rules"
	"github.com/kx0101/sessioncheck/internal/stats"
)

func newValidateCmd(a *app) *cobra.Command {
	var (
		format string
		labels []string
		args   cli.ValidateArgs
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate sessions against the enabled rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := cli.ParseFormat(format)
			if err != nil {
				return cli.Exit(cli.ExitInvalid, err)
			}

			args.Format = f
			args.Labels = cli.ParseLabels(labels)

			return a.runValidate(cmd.Context(), &args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&args.SessionsFile, "sessions", "s", "", "sessions file (JSON array, {\"sessions\": [...]} or NDJSON)")
	f.StringSliceVar(&args.SessionIDs, "id", nil, "only validate these session ids (repeatable)")
	f.StringVar(&args.App, "app", "", "only sessions whose app name contains this")
	f.StringVar(&args.Device, "device", "", "only sessions whose device model or manufacturer contains this")
	f.IntVar(&args.Limit, "limit", 0, "validate at most this many sessions")
	f.StringVarP(&format, "format", "f", string(cli.FormatText), "output format: text, table, json, csv, html")
	f.StringVarP(&args.Output, "output", "o", "", "write output to this file instead of stdout")
	f.IntVar(&args.Workers, "workers", a.cfg.Workers, "sessions validated concurrently")
	f.BoolVar(&args.Upload, "upload", false, "upload the CSV export to S3")
	f.BoolVar(&args.SaveHistory, "save", false, "store the run in the history database")
	f.StringArrayVar(&labels, "label", nil, "label for the stored run as key=value (repeatable)")

	return cmd
}

func (a *app) runValidate(ctx context.Context, args *cli.ValidateArgs, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	set, _, err := a.loadRuleSet(ctx)
	if err != nil {
		return err
	}

	enabled := set.Snapshot()
	if len(enabled) == 0 {
		return cli.Exit(cli.ExitInvalid, errors.New("no enabled rules to validate against"))
	}

	sessions, err := a.loadSessions(ctx, args)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		return cli.Exit(cli.ExitInvalid, fmt.Errorf("%w to validate", input.ErrNoSessions))
	}

	start := time.Now()
	results := runValidationFn(sessions, enabled, args.Workers)
	summary := stats.Summarize(results)

	slog.Debug("validation finished",
		"sessions", len(sessions),
		"rules", len(enabled),
		"failed", summary.Failed,
		"duration", time.Since(start),
	)

	if err := writeResults(args, results, summary, stdout); err != nil {
		return cli.Exit(cli.ExitRuntime, err)
	}

	run := models.NewValidationRun(len(enabled), results, args.Labels)

	if args.SaveHistory {
		if err := a.saveRun(ctx, run); err != nil {
			fmt.Fprintf(stderr, "Warning: saving run failed: %v\n", err)
		} else {
			fmt.Fprintf(stderr, "Saved run %s\n", run.ID)
		}
	}

	if args.Upload {
		key, err := a.uploadRun(ctx, run)
		if err != nil {
			fmt.Fprintf(stderr, "Warning: upload failed: %v\n", err)
		} else {
			fmt.Fprintf(stderr, "Uploaded results to %s\n", key)
		}
	}

	return cli.Exit(rules.GetExitCode(results), nil)
}

func (a *app) loadSessions(ctx context.Context, args *cli.ValidateArgs) ([]models.Session, error) {
	provider, closeFn, err := newProviderFn(ctx, a.cfg, args.SessionsFile)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	filter := input.Filter{
		IDs:    args.SessionIDs,
		App:    args.App,
		Device: args.Device,
		Limit:  args.Limit,
	}

	// remote lookups by id avoid listing the whole account
	if len(args.SessionIDs) > 0 && args.SessionsFile == "" {
		sessions := make([]models.Session, 0, len(args.SessionIDs))
		for _, id := range args.SessionIDs {
			session, err := provider.GetSession(ctx, id)
			if err != nil {
				if errors.Is(err, input.ErrSessionNotFound) {
					return nil, cli.Exit(cli.ExitInvalid, err)
				}

				return nil, cli.Exit(cli.ExitRuntime, err)
			}

			sessions = append(sessions, session)
		}

		return input.Apply(sessions, input.Filter{App: args.App, Device: args.Device, Limit: args.Limit}), nil
	}

	sessions, err := provider.ListSessions(ctx, filter)
	if err != nil {
		return nil, cli.Exit(cli.ExitRuntime, fmt.Errorf("loading sessions: %w", err))
	}

	return sessions, nil
}

func writeResults(args *cli.ValidateArgs, results []models.ValidationResult, summary stats.Summary, stdout io.Writer) error {
	if args.Format == cli.FormatHTML && args.Output != "" {
		if err := generateHTMLFn(results, summary, args.SessionsFile, args.Output); err != nil {
			return fmt.Errorf("generating HTML report: %w", err)
		}

		return nil
	}

	w := stdout
	if args.Output != "" {
		file, err := os.Create(args.Output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer func() {
			if err := file.Close(); err != nil {
				slog.Warn("failed to close output file", "path", args.Output, "error", err)
			}
		}()

		w = file
	}

	switch args.Format {
	case cli.FormatJSON:
		return output.WriteJSON(w, results, summary)
	case cli.FormatCSV:
		return output.WriteCSV(w, results)
	case cli.FormatTable:
		_, err := io.WriteString(w, output.FormatTable(results, summary))
		return err
	case cli.FormatHTML:
		return report.RenderHTML(w, results, summary, args.SessionsFile)
	default:
		_, err := io.WriteString(w, rules.FormatResults(results))
		return err
	}
}

func (a *app) saveRun(ctx context.Context, run *models.ValidationRun) error {
	if a.cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL not set")
	}

	history, closeFn, err := openHistoryFn(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer closeFn()

	return history.SaveRun(ctx, run)
}

func (a *app) uploadRun(ctx context.Context, run *models.ValidationRun) (string, error) {
	store, err := openArtifactsFn(ctx, a.cfg)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := output.WriteCSV(&buf, run.Results); err != nil {
		return "", err
	}

	key := artifacts.ExportKey(a.cfg.S3Prefix, run.ID, "csv")
	if err := store.Put(ctx, key, artifacts.ContentType("csv"), buf.Bytes()); err != nil {
		return "", err
	}

	return key, nil
}

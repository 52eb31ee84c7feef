package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kx0101/sessioncheck/internal/artifacts"
	"github.com/kx0101/sessioncheck/internal/cli"
	"github.com/kx0101/sessioncheck/internal/config"
	"github.com/kx0101/sessioncheck/internal/input"
	"github.com/kx0101/sessioncheck/internal/logging"
	"github.com/kx0101/sessioncheck/internal/models"
	"github.com/kx0101/sessioncheck/internal/report"
	"github.com/kx0101/sessioncheck/internal/rules"
	"github.com/kx0101/sessioncheck/internal/ruleset"
	"github.com/kx0101/sessioncheck/internal/store"
	"github.com/kx0101/sessioncheck/internal/telemetry"
)

var (
	openRuleStoreFn = ruleset.Open
	runValidationFn = rules.RunParallel
	generateHTMLFn  = report.GenerateHTML
	newProviderFn   = newProvider
	openHistoryFn   = openHistory
	openArtifactsFn = openArtifacts
)

func main() {
	os.Exit(int(execute(os.Args[1:], os.Stdout, os.Stderr)))
}

func execute(args []string, stdout, stderr io.Writer) cli.ExitCode {
	root := newRootCmd(config.Load())
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	code := cli.CodeOf(err)

	var exitErr *cli.ExitError
	if err != nil && (!errors.As(err, &exitErr) || exitErr.Err != nil) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}

	return code
}

type app struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd(cfg config.Config) *cobra.Command {
	a := &app{cfg: cfg}

	root := &cobra.Command{
		Use:           "sessioncheck",
		Short:         "Validate recorded performance sessions against configurable rules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.logger = logging.New(a.cfg.LogLevel, a.cfg.LogFormat, cmd.ErrOrStderr())
			slog.SetDefault(a.logger)
		},
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return cli.Exit(cli.ExitInvalid, err)
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfg.RulesPath, "rules", cfg.RulesPath, "rules file (.yaml) or database (.db, .sqlite)")
	flags.StringVar(&a.cfg.APIURL, "api-url", cfg.APIURL, "telemetry API base URL")
	flags.StringVar(&a.cfg.APIToken, "api-token", cfg.APIToken, "telemetry API bearer token")
	flags.StringVar(&a.cfg.RedisAddr, "redis", cfg.RedisAddr, "redis address for the session cache")
	flags.StringVar(&a.cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&a.cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text, json)")

	root.AddCommand(newValidateCmd(a))
	root.AddCommand(newRulesCmd(a))
	root.AddCommand(newConditionsCmd())
	root.AddCommand(newSessionsCmd(a))
	root.AddCommand(newServeCmd(a))

	return root
}

// loadRuleSet opens the configured rule store and loads it, falling back to
// the default rules when nothing was stored yet.
func (a *app) loadRuleSet(ctx context.Context) (*ruleset.Set, ruleset.Store, error) {
	rs, err := openRuleStoreFn(a.cfg.RulesPath)
	if err != nil {
		return nil, nil, cli.Exit(cli.ExitRuntime, fmt.Errorf("opening rules %s: %w", a.cfg.RulesPath, err))
	}

	set, err := ruleset.LoadOrDefaults(ctx, rs)
	if err != nil {
		if errors.Is(err, models.ErrInvalidRule) {
			return nil, nil, cli.Exit(cli.ExitInvalid, err)
		}

		return nil, nil, cli.Exit(cli.ExitRuntime, err)
	}

	return set, rs, nil
}

// newProvider picks the session source: a file when given, otherwise the
// telemetry API, cached in redis when an address is configured.
func newProvider(ctx context.Context, cfg config.Config, sessionsFile string) (input.Provider, func(), error) {
	if sessionsFile != "" {
		return input.NewFileProvider(sessionsFile), func() {}, nil
	}

	if !cfg.RemoteEnabled() {
		return nil, nil, cli.Exit(cli.ExitInvalid, errors.New("no session source: pass --sessions or set SESSIONCHECK_API_URL"))
	}

	client, err := telemetry.NewClient(telemetry.Options{
		BaseURL:           cfg.APIURL,
		Token:             cfg.APIToken,
		Username:          cfg.APIUser,
		Password:          cfg.APIPassword,
		RequestsPerSecond: cfg.APIRPS,
	})
	if err != nil {
		return nil, nil, cli.Exit(cli.ExitInvalid, fmt.Errorf("creating telemetry client: %w", err))
	}

	if cfg.RedisAddr == "" {
		return client, func() {}, nil
	}

	redisClient, err := telemetry.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		slog.Warn("session cache disabled", "addr", cfg.RedisAddr, "error", err)
		return client, func() {}, nil
	}

	closeFn := func() {
		if err := redisClient.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}

	return telemetry.NewCachedProvider(client, redisClient, cfg.SessionCacheTTL), closeFn, nil
}

func openHistory(ctx context.Context, databaseURL string) (store.HistoryStore, func(), error) {
	pg, err := store.Connect(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}

	return pg, pg.Close, nil
}

func openArtifacts(ctx context.Context, cfg config.Config) (artifacts.Store, error) {
	s3Cfg := artifacts.S3Config{
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
	}

	if !s3Cfg.Enabled() {
		return artifacts.NoopStore{}, nil
	}

	s3Store, err := artifacts.NewS3Store(ctx, s3Cfg)
	if err != nil {
		return nil, err
	}

	return s3Store, nil
}

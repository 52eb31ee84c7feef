package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kx0101/sessioncheck/internal/cli"
	"github.com/kx0101/sessioncheck/internal/input"
	"github.com/kx0101/sessioncheck/internal/metrics"
	"github.com/kx0101/sessioncheck/internal/server"
	"github.com/kx0101/sessioncheck/internal/store"
)

var listenAndServeFn = func(srv *http.Server) error {
	return srv.ListenAndServe()
}

func newServeCmd(a *app) *cobra.Command {
	var sessionsFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the rule management and validation API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.serve(ctx, sessionsFile)
		},
	}

	cmd.Flags().StringVar(&a.cfg.ListenAddr, "listen", a.cfg.ListenAddr, "listen address")
	cmd.Flags().StringVarP(&sessionsFile, "sessions", "s", "", "serve sessions from this file instead of the telemetry API")

	return cmd
}

func (a *app) serve(ctx context.Context, sessionsFile string) error {
	logger := a.logger
	if logger == nil {
		logger = slog.Default()
	}

	set, ruleStore, err := a.loadRuleSet(ctx)
	if err != nil {
		return err
	}

	var provider input.Provider
	if sessionsFile != "" || a.cfg.RemoteEnabled() {
		p, closeFn, err := newProviderFn(ctx, a.cfg, sessionsFile)
		if err != nil {
			return err
		}
		defer closeFn()
		provider = p
	} else {
		logger.Warn("no session source configured, only inline sessions can be validated")
	}

	var history store.HistoryStore = store.NewMemoryStore(100)
	if a.cfg.DatabaseURL != "" {
		h, closeFn, err := openHistoryFn(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return cli.Exit(cli.ExitRuntime, fmt.Errorf("connecting to database: %w", err))
		}
		defer closeFn()
		history = h
	}

	artifactStore, err := openArtifactsFn(ctx, a.cfg)
	if err != nil {
		return cli.Exit(cli.ExitRuntime, fmt.Errorf("configuring export storage: %w", err))
	}

	srv := &http.Server{
		Addr: a.cfg.ListenAddr,
		Handler: server.New(server.Options{
			Rules:                   set,
			RuleStore:               ruleStore,
			Provider:                provider,
			History:                 history,
			Artifacts:               artifactStore,
			Metrics:                 metrics.New(),
			Logger:                  logger,
			APIKey:                  a.cfg.APIKey,
			CORSAllowedOrigins:      a.cfg.CORSAllowedOrigins,
			RateLimitRequestsPerSec: a.cfg.RateLimitRequestsPerSec,
			RateLimitBurst:          a.cfg.RateLimitBurst,
			Workers:                 a.cfg.Workers,
			ExportPrefix:            a.cfg.S3Prefix,
		}).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", a.cfg.ListenAddr, "rules", set.Len())
		errCh <- listenAndServeFn(srv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return cli.Exit(cli.ExitRuntime, fmt.Errorf("server error: %w", err))
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return cli.Exit(cli.ExitRuntime, fmt.Errorf("server shutdown: %w", err))
	}

	logger.Info("server stopped")
	return nil
}

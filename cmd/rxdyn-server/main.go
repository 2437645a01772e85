package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daniacca/rxdyn/internal/achem"
	"github.com/daniacca/rxdyn/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rxdyn-server",
		Short:         "HTTP server hosting particle reaction simulations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	registerFlags(cmd.Flags())
	return cmd
}

func serve(ctx context.Context, cfg ServerConfig) error {
	zl, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	if cfg.SnapshotDir != "" {
		if err := os.MkdirAll(cfg.SnapshotDir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	srv := NewServer(logger, cfg)
	defer srv.Close()

	if cfg.ScenarioFile != "" {
		env, err := applyInitialScenario(srv, cfg.ScenarioFile, achem.EnvironmentID(cfg.DefaultEnvID))
		if err != nil {
			return fmt.Errorf("failed to load scenario %s: %w", cfg.ScenarioFile, err)
		}
		logger.Infow("scenario loaded",
			"env_id", env.ID(),
			"scenario", env.Config().Name,
			"molecules", len(env.Molecules("")),
		)
		if cfg.RunInterval > 0 {
			env.Run(cfg.RunInterval)
			logger.Infow("environment started", "env_id", env.ID(), "interval", cfg.RunInterval)
		}
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("rxdyn-server listening",
			"addr", cfg.Addr,
			"snapshot_dir", cfg.SnapshotDir,
			"snapshot_every_ticks", cfg.SnapshotEveryTicks,
		)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("http shutdown failed", zap.Error(err))
	}
	return nil
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/cachesync/internal/api"
	"github.com/gyaneshwarpardhi/cachesync/internal/app"
	"github.com/gyaneshwarpardhi/cachesync/internal/config"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP event ingestion server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, addr, cmd)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides http.addr)")

	return cmd
}

func runServe(opts *RootOptions, addr string, cmd *cobra.Command) error {
	loader, err := loadConfig(opts, cmd)
	if err != nil {
		return err
	}
	cfg := loader.Config()
	if addr == "" {
		addr = cfg.HTTP.Addr
	}

	logger, level := newLogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		level.Set(parseLevel(newCfg.Log.Level))
		if newCfg.Store != cfg.Store || newCfg.Queue != cfg.Queue || newCfg.Engine != cfg.Engine {
			logger.Warn("config reloaded: store, queue and engine changes need a restart")
			return
		}
		logger.Info("config reloaded", "log_level", newCfg.Log.Level)
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		logger.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.New(a.Engine, loader, a.Ready, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		logger.Info("shutting down…")
	case err := <-serveErr:
		_ = a.Close()
		return err
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	if err := a.Close(); err != nil {
		logger.Warn("closing backends", "err", err)
	}
	logger.Info("goodbye")
	return nil
}

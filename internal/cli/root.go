// Package cli implements the cachesync command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/cachesync/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command for the cachesync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cachesync",
		Short: "Keep the patron cache in step with loan and request events",
		Long: `cachesync applies loan and request events to the patron cache: item
records are upserted or deleted and the owning account's reference sets are
kept in step. Accounts missing from the cache are queued for reconciliation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "",
		"path to YAML config (defaults and "+config.EnvPrefix+"* variables apply when empty)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewDispatchCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// newLogger builds the process logger. The returned LevelVar lets a config
// reload change the level in place.
func newLogger(lc config.LogConf, w io.Writer) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(lc.Level))
	hopts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(w, hopts)
	if lc.Format == "json" {
		h = slog.NewJSONHandler(w, hopts)
	}
	return slog.New(h), level
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadConfig(opts *RootOptions, cmd *cobra.Command) (*config.Loader, error) {
	// Reload failures after startup are logged by the loader itself.
	bootstrap := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
	loader, err := config.NewLoader(opts.ConfigPath, bootstrap)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return loader, nil
}

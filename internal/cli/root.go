package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rpattn/clubhouse/internal/config"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Store      string
}

// NewRootCommand creates the root command for the clubhouse binary.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "clubhouse",
		Short: "Club member lifecycle service",
		Long: `Serves member eligibility, fee quotes, audited section edits and
renewals over HTTP, plus the admin commands that prepare its store.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", ".", "directory holding config.yaml")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "override the configured store (postgres|memory)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))

	return cmd
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Store != "" {
		cfg.Store = opts.Store
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

// newLogger builds the process logger from log.level and log.format.
func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: must be text or json", cfg.Log.Format)
	}
}

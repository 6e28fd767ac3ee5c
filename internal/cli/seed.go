package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rpattn/clubhouse/internal/catalog"

	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load membership types and members from a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer f.Close()

			file, err := catalog.ParseSeed(f)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			app, err := NewApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := catalog.Seed(cmd.Context(), app.Services.Catalog, app.Services.Members, file)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
		},
	}
}

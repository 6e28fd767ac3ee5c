package cli

import (
	"fmt"

	"github.com/rpattn/clubhouse/internal/config"
	"github.com/rpattn/clubhouse/internal/db"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		Long: `Applies every pending embedded migration. With --down N the last N
migrations are rolled back instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return fmt.Errorf("migrate needs the postgres store, configured store is %q", cfg.Store)
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if down > 0 {
				return db.RollbackMigrations(cfg.Database, down, logger)
			}
			return db.RunMigrations(cfg.Database, logger)
		},
	}

	cmd.Flags().IntVar(&down, "down", 0, "number of migrations to roll back")
	return cmd
}

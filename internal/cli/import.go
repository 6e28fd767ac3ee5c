package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rpattn/clubhouse/internal/ingestion"

	"github.com/spf13/cobra"
)

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dryRun    bool
		headerRow int
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv|file.xlsx>",
		Short: "Import membership types from a spreadsheet",
		Long: `Reads one membership type per row. Required columns are name, scope,
base amount, currency and frequency. With --dry-run every row is validated
and nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer f.Close()

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

			req := ingestion.Request{
				FileName: filepath.Base(args[0]),
				DryRun:   dryRun,
				Data:     f,
			}
			if cmd.Flags().Changed("header-row") {
				req.HeaderRowIndex = &headerRow
			}
			summary, err := app.Services.Importer.Import(cmd.Context(), req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return err
			}
			if summary.InvalidRows > 0 {
				return fmt.Errorf("%d of %d rows are invalid", summary.InvalidRows, summary.TotalRows)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate rows without writing")
	cmd.Flags().IntVar(&headerRow, "header-row", 0, "0-based index of the header row")
	return cmd
}

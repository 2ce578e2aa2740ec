package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yeboster/trade-republic-tracker/internal/export"
	"github.com/Yeboster/trade-republic-tracker/internal/store"
)

var (
	exportFormat   string
	exportOutput   string
	exportCardOnly bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored transactions to CSV or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}

		exporter, err := export.ByName(exportFormat)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}

		db, err := store.Open(cfg.StorePath)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		defer db.Close()

		records, err := db.Records(cmd.Context())
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if exportCardOnly {
			records = export.CardOnly(records)
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			defer f.Close()
			w = f
		}

		if err := exporter.Export(w, records); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if exportOutput != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d records to %s\n", len(records), exportOutput)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv or json")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
	exportCmd.Flags().BoolVar(&exportCardOnly, "card-only", false, "Export card transactions only")
	rootCmd.AddCommand(exportCmd)
}

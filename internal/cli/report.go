package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yeboster/trade-republic-tracker/internal/report"
	"github.com/Yeboster/trade-republic-tracker/internal/store"
)

var reportTop int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize stored transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}

		db, err := store.Open(cfg.StorePath)
		if err != nil {
			return fmt.Errorf("report: %w", err)
		}
		defer db.Close()

		records, err := db.Records(cmd.Context())
		if err != nil {
			return fmt.Errorf("report: %w", err)
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No transactions stored yet. Run 'trtracker sync' first.")
			return nil
		}

		summary := report.Compute(records, reportTop)
		fmt.Fprint(cmd.OutOrStdout(), report.Render(summary, records[0].Currency))
		return nil
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportTop, "top", 10, "Number of merchants to list")
	rootCmd.AddCommand(reportCmd)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yeboster/trade-republic-tracker/internal/logger"
	"github.com/Yeboster/trade-republic-tracker/internal/notionsync"
	"github.com/Yeboster/trade-republic-tracker/internal/store"
)

var notionDryRun bool

var notionCmd = &cobra.Command{
	Use:   "notion",
	Short: "Mirror stored transactions into a Notion database",
	Long: `Pushes stored transactions to the Notion database named in the config.
Pages are matched on the Transaction ID column, so re-running updates
existing pages instead of duplicating them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		if cfg.Notion.Token == "" || cfg.Notion.DatabaseID == "" {
			return fmt.Errorf("notion: token and database_id must be set in the config")
		}

		db, err := store.Open(cfg.StorePath)
		if err != nil {
			return fmt.Errorf("notion: %w", err)
		}
		defer db.Close()

		ctx := logger.WithContext(cmd.Context(), log)
		records, err := db.Records(ctx)
		if err != nil {
			return fmt.Errorf("notion: %w", err)
		}

		client := notionsync.NewNotionClient(cfg.Notion.Token)
		res, err := notionsync.SyncRecords(ctx, client, cfg.Notion.DatabaseID, records, notionDryRun)
		if err != nil {
			return fmt.Errorf("notion: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Notion sync: %d created, %d updated, %d skipped.\n",
			res.Created, res.Updated, res.Skipped)
		return nil
	},
}

func init() {
	notionCmd.Flags().BoolVar(&notionDryRun, "dry-run", false, "Report what would change without writing")
	rootCmd.AddCommand(notionCmd)
}

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yeboster/trade-republic-tracker/internal/auth"
	"github.com/Yeboster/trade-republic-tracker/internal/config"
	"github.com/Yeboster/trade-republic-tracker/internal/domain"
	"github.com/Yeboster/trade-republic-tracker/internal/logger"
	"github.com/Yeboster/trade-republic-tracker/internal/protocol"
	"github.com/Yeboster/trade-republic-tracker/internal/store"
	"github.com/Yeboster/trade-republic-tracker/internal/timeline"
	"github.com/Yeboster/trade-republic-tracker/internal/transport"
)

var syncFull bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull new transactions from the timeline",
	Long: `Opens the duplex connection, walks the transaction timeline from the
last confirmed cursor and stores normalized records locally. The first
run (or --full) walks the entire history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Minute)
		defer cancel()
		ctx = logger.WithContext(ctx, log)

		session, err := auth.LoadSession(cfg.TokenPath)
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		if session == nil {
			return fmt.Errorf("sync: no cached session, run 'trtracker login' first")
		}

		authClient := auth.NewClient(cfg.API.RESTBaseURL, log)
		if session.NeedsRefresh(time.Now()) {
			if err := authClient.Refresh(ctx, session); err != nil {
				return fmt.Errorf("sync: session expired and refresh failed, run 'trtracker login': %w", err)
			}
		}

		db, err := store.Open(cfg.StorePath)
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		defer db.Close()

		account := accountKey()
		after := domain.Cursor("")
		if !syncFull {
			after, err = db.Cursor(ctx, account)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}
		}

		client := transport.NewClient(
			cfg.Transport,
			protocol.DefaultConnectMeta(cfg.API.Locale),
			transport.WSDialer(cfg.API.WSURL, func() string { return session.Token }),
			log,
		)
		client.OnAuthError(func() {
			if err := authClient.Refresh(ctx, session); err != nil {
				log.Error().Err(err).Msg("session refresh after auth error failed")
			}
		})
		if err := client.Connect(ctx); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		defer client.Close()

		syncer := timeline.NewSyncer(timeline.ClientConn{Client: client}, session, authClient, cfg.Sync, log)
		res, syncErr := syncer.Sync(ctx, after)

		// Completed pages are kept even when the run aborts midway; the
		// confirmed cursor lets the next run resume.
		if res != nil && len(res.Records) > 0 {
			if _, err := db.UpsertRecords(ctx, res.Records); err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			if err := db.SaveCursor(ctx, account, res.Cursor); err != nil {
				return fmt.Errorf("sync: %w", err)
			}
		}
		// Refresh may have rotated the tokens.
		if err := auth.SaveSession(cfg.TokenPath, session); err != nil {
			log.Warn().Err(err).Msg("failed to update cached session")
		}

		if syncErr != nil {
			return fmt.Errorf("sync: %w", syncErr)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Synced %d records over %d pages (%d skipped).\n",
			len(res.Records), res.Diag.Pages, res.Diag.Skipped)
		return nil
	},
}

// accountKey scopes the persisted cursor. Falls back to a single
// shared key when no phone number is configured.
func accountKey() string {
	if phone := os.Getenv(config.EnvPhone); phone != "" {
		return phone
	}
	return "default"
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "Ignore the saved cursor and walk the entire history")
	rootCmd.AddCommand(syncCmd)
}

// Package notionsync mirrors synchronized transaction records into a
// Notion database. Pages are matched on the Transaction ID column, so
// re-running a sync updates rather than duplicates.
package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/Yeboster/trade-republic-tracker/internal/domain"
	"github.com/Yeboster/trade-republic-tracker/internal/logger"
)

const (
	// BatchSize defines the number of records to process in a single batch
	BatchSize = 100
)

// Result summarizes one sync pass.
type Result struct {
	Created int
	Updated int
	Skipped int
}

// SyncRecords pushes records to the Notion database. Existing pages
// are updated in place; a page-level failure is logged and skipped so
// one bad record cannot abort the whole pass. With dryRun set, the
// pass only reports what it would do.
func SyncRecords(ctx context.Context, notionClient NotionService, notionDBID string, records []domain.TransactionRecord, dryRun bool) (*Result, error) {
	log := logger.FromContext(ctx)

	log.Info().
		Int("record_count", len(records)).
		Bool("dry_run", dryRun).
		Msg("Starting transaction sync to Notion")

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return nil, fmt.Errorf("SyncRecords: querying existing pages: %w", err)
	}

	// Map Transaction ID -> existing page for upsert matching.
	existing := make(map[string]notionapi.Page)
	for _, page := range pages {
		if id := extractRecordID(page); id != "" {
			existing[id] = page
		}
	}

	log.Info().Int("notion_page_count", len(existing)).Msg("Retrieved existing Notion pages")

	res := &Result{}
	for i := 0; i < len(records); i += BatchSize {
		end := i + BatchSize
		if end > len(records) {
			end = len(records)
		}

		for _, rec := range records[i:end] {
			page, found := existing[rec.ID]

			if dryRun {
				if found {
					res.Updated++
				} else {
					res.Created++
				}
				continue
			}

			props := RecordToNotionProperties(rec)
			if found {
				if _, err := notionClient.UpdatePage(ctx, string(page.ID), props); err != nil {
					log.Warn().
						Err(err).
						Str("transaction_id", rec.ID).
						Str("page_id", string(page.ID)).
						Msg("Failed to update Notion page")
					res.Skipped++
					continue
				}
				res.Updated++
			} else {
				created, err := notionClient.CreatePage(ctx, notionDBID, props)
				if err != nil {
					log.Warn().
						Err(err).
						Str("transaction_id", rec.ID).
						Msg("Failed to create Notion page")
					res.Skipped++
					continue
				}
				log.Debug().
					Str("transaction_id", rec.ID).
					Str("page_id", string(created.ID)).
					Msg("Created Notion page")
				res.Created++
			}
		}
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Int("total", len(records)).
		Msg("Transaction sync to Notion complete")

	return res, nil
}

// queryAllNotionPages walks the database query pagination to collect
// every page.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, notionDBID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	req := &notionapi.DatabaseQueryRequest{PageSize: 100}

	for {
		resp, err := notionClient.QueryDatabase(ctx, notionDBID, req)
		if err != nil {
			return nil, err
		}
		pages = append(pages, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		req.StartCursor = notionapi.Cursor(resp.NextCursor)
	}
	return pages, nil
}

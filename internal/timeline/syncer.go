// Package timeline drives cursor-based pagination over the
// transaction subscription and assembles the canonical, ordered,
// de-duplicated record stream.
package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Yeboster/trade-republic-tracker/internal/auth"
	"github.com/Yeboster/trade-republic-tracker/internal/config"
	"github.com/Yeboster/trade-republic-tracker/internal/domain"
	"github.com/Yeboster/trade-republic-tracker/internal/normalize"
	"github.com/Yeboster/trade-republic-tracker/internal/protocol"
	"github.com/Yeboster/trade-republic-tracker/internal/transport"
)

// Stream is one subscription's frame sequence.
type Stream interface {
	ID() uint64
	Next(ctx context.Context) (protocol.Frame, error)
}

// Conn abstracts the duplex transport for the pagination manager.
type Conn interface {
	Subscribe(ctx context.Context, request any) (Stream, error)
	Unsubscribe(id uint64)
}

// ClientConn adapts *transport.Client to Conn.
type ClientConn struct {
	*transport.Client
}

func (c ClientConn) Subscribe(ctx context.Context, request any) (Stream, error) {
	return c.Client.Subscribe(ctx, request)
}

// Refresher proactively renews the session before it expires.
type Refresher interface {
	Refresh(ctx context.Context, s *auth.Session) error
}

type pageRequest struct {
	Type  string `json:"type"`
	Token string `json:"token"`
	After string `json:"after,omitempty"`
	Size  int    `json:"size,omitempty"`
}

type detailRequest struct {
	Type  string `json:"type"`
	Token string `json:"token"`
	ID    string `json:"id"`
}

type pagePayload struct {
	Items   []map[string]any `json:"items"`
	Cursors struct {
		After string `json:"after"`
	} `json:"cursors"`
}

// Diagnostics counts what happened during one synchronization run.
// Skipped records are reported here, never silently discarded.
type Diagnostics struct {
	RunID         string
	Pages         int
	Events        int
	Skipped       int
	DetailFetches int
	Restarts      int
}

// SyncResult is the consumer-facing output: a finite, replayable
// record sequence plus the final confirmed cursor for the next run.
type SyncResult struct {
	Records []domain.TransactionRecord
	Cursor  domain.Cursor
	Diag    Diagnostics
}

// Syncer is the timeline pagination manager.
type Syncer struct {
	conn      Conn
	session   *auth.Session
	refresher Refresher
	cfg       config.SyncConfig
	log       zerolog.Logger
}

// NewSyncer builds a pagination manager on top of an established
// connection. refresher may be nil when the caller manages the session
// lifetime itself (tests, short runs).
func NewSyncer(conn Conn, session *auth.Session, refresher Refresher, cfg config.SyncConfig, log zerolog.Logger) *Syncer {
	return &Syncer{conn: conn, session: session, refresher: refresher, cfg: cfg, log: log}
}

// Sync walks the timeline from after (zero value means full history)
// and returns the ordered record stream. On abort the partial result
// is returned alongside the error: records for fully completed pages
// remain valid and Cursor is the resume point.
func (s *Syncer) Sync(ctx context.Context, after domain.Cursor) (*SyncResult, error) {
	res := &SyncResult{
		Cursor: after,
		Diag:   Diagnostics{RunID: uuid.NewString()},
	}
	seen := make(map[string]bool)
	cursor := after

	s.log.Info().Str("run_id", res.Diag.RunID).Str("cursor", string(cursor)).Msg("timeline sync started")

	for {
		if err := s.refreshIfDue(ctx); err != nil {
			return res, err
		}

		items, next, err := s.fetchPage(ctx, cursor, &res.Diag)
		if err != nil {
			return res, fmt.Errorf("Sync: page after %q: %w", cursor, err)
		}

		// A page is confirmed only once its detail fetches finished. If
		// the run is cancelled mid-enrichment the page is abandoned
		// unmerged, so the next run re-requests it instead of
		// persisting summaries with missing amounts.
		if err := s.fetchDetails(ctx, items, &res.Diag); err != nil {
			return res, fmt.Errorf("Sync: page after %q: %w", cursor, err)
		}

		// Merge in server summary order; detail arrival order must not
		// leak into the output.
		for _, item := range items {
			res.Diag.Events++
			rec, err := normalize.Normalize(normalize.RawEventFromMap(item))
			if err != nil {
				res.Diag.Skipped++
				s.log.Warn().Err(err).Msg("skipping unnormalizable event")
				continue
			}
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			res.Records = append(res.Records, rec)
		}
		res.Diag.Pages++

		// The requested size rides on the page request, so a short page
		// is a reliable end-of-history signal alongside an absent next
		// cursor.
		done := next == "" || len(items) == 0 || len(items) < s.cfg.PageSize
		if next != "" {
			// The page is fully merged; its cursor is now confirmed.
			cursor = domain.Cursor(next)
			res.Cursor = cursor
		}
		if done {
			break
		}
	}

	s.log.Info().
		Str("run_id", res.Diag.RunID).
		Int("pages", res.Diag.Pages).
		Int("records", len(res.Records)).
		Int("skipped", res.Diag.Skipped).
		Msg("timeline sync finished")
	return res, nil
}

func (s *Syncer) refreshIfDue(ctx context.Context) error {
	if s.refresher == nil || !s.session.NeedsRefresh(time.Now()) {
		return nil
	}
	return s.refresher.Refresh(ctx, s.session)
}

// fetchPage opens one timelineTransactions subscription and waits for
// its snapshot frame. A restart marker resets nothing but the wait:
// the re-issued request carries the same cursor, so the snapshot that
// eventually arrives is the same page.
func (s *Syncer) fetchPage(ctx context.Context, cursor domain.Cursor, diag *Diagnostics) ([]map[string]any, string, error) {
	sub, err := s.conn.Subscribe(ctx, pageRequest{
		Type:  "timelineTransactions",
		Token: s.session.Token,
		After: string(cursor),
		Size:  s.cfg.PageSize,
	})
	if err != nil {
		return nil, "", err
	}
	defer s.conn.Unsubscribe(sub.ID())

	payload, err := s.awaitSnapshot(ctx, sub, diag)
	if err != nil {
		return nil, "", err
	}

	var page pagePayload
	if err := json.Unmarshal(payload, &page); err != nil {
		return nil, "", fmt.Errorf("decoding page payload: %w", err)
	}
	return page.Items, page.Cursors.After, nil
}

// fetchDetails enriches summaries lacking amount or merchant data via
// independent timelineDetailV2 subscriptions, a bounded pool at a
// time. Each goroutine writes only its own index, so summary order is
// preserved by construction. A server-side detail failure leaves the
// summary as is; cancellation is returned to the caller so the page
// is not confirmed half-enriched.
func (s *Syncer) fetchDetails(ctx context.Context, items []map[string]any, diag *Diagnostics) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.DetailConcurrency)

	for i := range items {
		if !needsDetail(items[i]) {
			continue
		}
		diag.DetailFetches++
		item := items[i]
		g.Go(func() error {
			detail, err := s.fetchDetail(gctx, item)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.Warn().Err(err).Msg("detail fetch failed, keeping summary")
				return nil
			}
			// Summaries win over details except where they are empty;
			// the detail view is the authoritative source only for
			// fields the summary omitted.
			for k, v := range detail {
				if cur, exists := item[k]; !exists || cur == nil || cur == "" {
					item[k] = v
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Syncer) fetchDetail(ctx context.Context, item map[string]any) (map[string]any, error) {
	id, _ := item["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("summary without id")
	}

	sub, err := s.conn.Subscribe(ctx, detailRequest{
		Type:  "timelineDetailV2",
		Token: s.session.Token,
		ID:    id,
	})
	if err != nil {
		return nil, err
	}
	defer s.conn.Unsubscribe(sub.ID())

	payload, err := s.awaitSnapshot(ctx, sub, nil)
	if err != nil {
		return nil, err
	}

	var detail map[string]any
	if err := json.Unmarshal(payload, &detail); err != nil {
		return nil, fmt.Errorf("decoding detail payload: %w", err)
	}
	return detail, nil
}

// awaitSnapshot consumes frames until the snapshot (A) frame arrives.
// Continue frames are progress markers and carry no page data; restart
// markers mean the subscription was re-issued after a reconnect and
// the snapshot starts over.
func (s *Syncer) awaitSnapshot(ctx context.Context, sub Stream, diag *Diagnostics) ([]byte, error) {
	for {
		f, err := sub.Next(ctx)
		if errors.Is(err, transport.ErrRestarted) {
			if diag != nil {
				diag.Restarts++
			}
			s.log.Debug().Uint64("sub_id", sub.ID()).Msg("subscription restarted, awaiting fresh snapshot")
			continue
		}
		if err == io.EOF {
			return nil, fmt.Errorf("stream ended before snapshot")
		}
		if err != nil {
			return nil, err
		}
		if f.State == protocol.StateData {
			return f.Payload, nil
		}
	}
}

// needsDetail reports whether a summary lacks the amount/merchant
// breakdown and requires a detail fetch.
func needsDetail(item map[string]any) bool {
	if _, ok := item["amount"]; !ok {
		return true
	}
	title, _ := item["title"].(string)
	return title == ""
}

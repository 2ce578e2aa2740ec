// Package store persists synchronized transaction records and the
// per-account resume cursor in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/Yeboster/trade-republic-tracker/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id         TEXT PRIMARY KEY,
	timestamp  TEXT NOT NULL,
	kind       TEXT NOT NULL,
	merchant   TEXT NOT NULL,
	amount     TEXT NOT NULL,
	currency   TEXT NOT NULL,
	event_type TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions (timestamp);

CREATE TABLE IF NOT EXISTS sync_state (
	account    TEXT PRIMARY KEY,
	cursor     TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Store wraps the SQLite handle. Safe for concurrent use; SQLite
// serializes writers internally.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
// Parent directories are created as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// UpsertRecords writes records transactionally, replacing rows that
// share an id. Returns the number of rows written.
func (s *Store) UpsertRecords(ctx context.Context, records []domain.TransactionRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("UpsertRecords: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (id, timestamp, kind, merchant, amount, currency, event_type, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp = excluded.timestamp,
			kind = excluded.kind,
			merchant = excluded.merchant,
			amount = excluded.amount,
			currency = excluded.currency,
			event_type = excluded.event_type,
			status = excluded.status`)
	if err != nil {
		return 0, fmt.Errorf("UpsertRecords: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.ID,
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			string(r.Kind),
			r.Merchant,
			r.Amount.String(),
			r.Currency,
			r.EventType,
			r.Status,
		)
		if err != nil {
			return 0, fmt.Errorf("UpsertRecords: row %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("UpsertRecords: %w", err)
	}
	return len(records), nil
}

// Records returns all stored records ordered by timestamp ascending.
func (s *Store) Records(ctx context.Context) ([]domain.TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, kind, merchant, amount, currency, event_type, status
		FROM transactions ORDER BY timestamp ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("Records: %w", err)
	}
	defer rows.Close()

	var out []domain.TransactionRecord
	for rows.Next() {
		var (
			rec       domain.TransactionRecord
			ts        string
			kind      string
			amountStr string
		)
		if err := rows.Scan(&rec.ID, &ts, &kind, &rec.Merchant, &amountStr, &rec.Currency, &rec.EventType, &rec.Status); err != nil {
			return nil, fmt.Errorf("Records: %w", err)
		}
		rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("Records: row %s: %w", rec.ID, err)
		}
		rec.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("Records: row %s: %w", rec.ID, err)
		}
		rec.Kind = domain.Kind(kind)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Cursor returns the saved resume cursor for the account, or the zero
// cursor when the account has never synced.
func (s *Store) Cursor(ctx context.Context, account string) (domain.Cursor, error) {
	var cursor string
	err := s.db.QueryRowContext(ctx,
		`SELECT cursor FROM sync_state WHERE account = ?`, account).Scan(&cursor)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("Cursor: %w", err)
	}
	return domain.Cursor(cursor), nil
}

// SaveCursor records the confirmed resume cursor for the account.
func (s *Store) SaveCursor(ctx context.Context, account string, cursor domain.Cursor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (account, cursor, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			cursor = excluded.cursor,
			updated_at = excluded.updated_at`,
		account, string(cursor), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("SaveCursor: %w", err)
	}
	return nil
}

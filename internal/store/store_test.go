package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Yeboster/trade-republic-tracker/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(id string, ts time.Time, amount string) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:        id,
		Timestamp: ts,
		Kind:      domain.KindCardSpend,
		Merchant:  "Shop",
		Amount:    decimal.RequireFromString(amount),
		Currency:  "EUR",
		EventType: "card_successful_transaction",
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 27, 10, 0, 0, 0, time.UTC)

	recs := []domain.TransactionRecord{
		record("t1", base, "-5.5"),
		record("t2", base.Add(time.Hour), "-12.5"),
	}
	if _, err := s.UpsertRecords(ctx, recs); err != nil {
		t.Fatalf("UpsertRecords: %v", err)
	}

	// Re-syncing the same page must not duplicate rows; the newer
	// version of a record wins.
	recs[0].Amount = decimal.RequireFromString("-6")
	if _, err := s.UpsertRecords(ctx, recs); err != nil {
		t.Fatalf("UpsertRecords (again): %v", err)
	}

	got, err := s.Records(ctx)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].Amount.Equal(decimal.RequireFromString("-6")) {
		t.Errorf("Amount = %s, want updated value -6", got[0].Amount)
	}
}

func TestRecordsOrderedByTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 27, 10, 0, 0, 0, time.UTC)

	// Inserted out of order on purpose.
	_, err := s.UpsertRecords(ctx, []domain.TransactionRecord{
		record("late", base.Add(2*time.Hour), "-1"),
		record("early", base, "-2"),
		record("mid", base.Add(time.Hour), "-3"),
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Records(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"early", "mid", "late"}
	for i, w := range want {
		if got[i].ID != w {
			t.Errorf("got[%d] = %s, want %s", i, got[i].ID, w)
		}
	}
}

func TestCursorRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cur, err := s.Cursor(ctx, "+491701234567")
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	if !cur.IsZero() {
		t.Errorf("fresh account cursor = %q, want zero", cur)
	}

	if err := s.SaveCursor(ctx, "+491701234567", "c42"); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}
	if err := s.SaveCursor(ctx, "+491701234567", "c43"); err != nil {
		t.Fatalf("SaveCursor (update): %v", err)
	}

	cur, err = s.Cursor(ctx, "+491701234567")
	if err != nil {
		t.Fatal(err)
	}
	if cur != "c43" {
		t.Errorf("cursor = %q, want c43", cur)
	}

	// Cursors are scoped per account.
	other, err := s.Cursor(ctx, "+491700000000")
	if err != nil {
		t.Fatal(err)
	}
	if !other.IsZero() {
		t.Errorf("other account cursor = %q, want zero", other)
	}
}

func TestRecordsPreserveDecimalPrecision(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := record("t1", time.Date(2024, 5, 27, 10, 0, 0, 0, time.UTC), "-27.50")
	if _, err := s.UpsertRecords(ctx, []domain.TransactionRecord{rec}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Records(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !got[0].Amount.Equal(decimal.RequireFromString("-27.5")) {
		t.Errorf("Amount = %s, want -27.5", got[0].Amount)
	}
	if got[0].Currency != "EUR" || got[0].Kind != domain.KindCardSpend {
		t.Errorf("row fields not preserved: %+v", got[0])
	}
}

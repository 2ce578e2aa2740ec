// Package export serializes transaction records for spreadsheets and
// downstream tooling.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Yeboster/trade-republic-tracker/internal/domain"
)

// Exporter writes a record sequence to w in one format.
type Exporter interface {
	Export(w io.Writer, records []domain.TransactionRecord) error
}

// ByName returns the exporter for a format name.
func ByName(format string) (Exporter, error) {
	switch format {
	case "csv":
		return CSV{}, nil
	case "json":
		return JSON{}, nil
	}
	return nil, fmt.Errorf("ByName: unknown export format %q", format)
}

// CardOnly keeps card transactions (spends, refunds, declines) and
// drops trading and cash movements.
func CardOnly(records []domain.TransactionRecord) []domain.TransactionRecord {
	var out []domain.TransactionRecord
	for _, r := range records {
		switch r.Kind {
		case domain.KindCardSpend, domain.KindCardRefund, domain.KindCardFailed:
			out = append(out, r)
		}
	}
	return out
}

// CSV writes one header row plus one row per record.
type CSV struct{}

var csvHeader = []string{"id", "timestamp", "kind", "merchant", "amount", "currency", "event_type", "status"}

func (CSV) Export(w io.Writer, records []domain.TransactionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("Export: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.ID,
			r.Timestamp.UTC().Format(time.RFC3339),
			string(r.Kind),
			r.Merchant,
			r.Amount.String(),
			r.Currency,
			r.EventType,
			r.Status,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("Export: row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// JSON writes an indented array of records.
type JSON struct{}

func (JSON) Export(w io.Writer, records []domain.TransactionRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if records == nil {
		records = []domain.TransactionRecord{}
	}
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("Export: %w", err)
	}
	return nil
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a canonical transaction record. The set is closed:
// every raw event maps to exactly one Kind, with KindUnknown as the
// catch-all for payloads the normalizer cannot place.
type Kind string

const (
	KindCardSpend      Kind = "card-spend"
	KindCardRefund     Kind = "card-refund"
	KindCardFailed     Kind = "card-failed"
	KindInvestment     Kind = "investment-order"
	KindCashDeposit    Kind = "cash-deposit"
	KindCashWithdrawal Kind = "cash-withdrawal"
	KindUnknown        Kind = "unknown"
)

// Kinds lists every valid Kind value.
func Kinds() []Kind {
	return []Kind{
		KindCardSpend,
		KindCardRefund,
		KindCardFailed,
		KindInvestment,
		KindCashDeposit,
		KindCashWithdrawal,
		KindUnknown,
	}
}

// CountsTowardSpend reports whether records of this kind contribute to
// cash-effect totals. Failed card transactions are retained in the
// stream but excluded from sums.
func (k Kind) CountsTowardSpend() bool {
	return k != KindCardFailed && k != KindUnknown
}

// Cursor is an opaque pagination token referencing the last
// successfully consumed timeline event. Callers persist it between
// runs and never interpret its structure.
type Cursor string

// IsZero reports whether the cursor marks the start of history.
func (c Cursor) IsZero() bool { return c == "" }

// RawEvent is one timeline entry as received from the wire, before
// classification. Fields holds the full decoded JSON object; ID and
// EventType are lifted out because every consumer needs them.
type RawEvent struct {
	ID        string
	EventType string
	Fields    map[string]any
}

// TransactionRecord is the canonical, normalized representation of one
// financial event, consumed by downstream reporting.
type TransactionRecord struct {
	// ID is stable and derived from the raw event's own identifier,
	// never regenerated.
	ID string `json:"id"`

	// Timestamp is the event instant normalized to UTC.
	Timestamp time.Time `json:"timestamp"`

	Kind Kind `json:"kind"`

	// Merchant is the raw counterparty label; name normalization is a
	// downstream concern.
	Merchant string `json:"merchant"`

	// Amount is signed so that summation yields net cash effect:
	// spends and buys negative, refunds and deposits positive.
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`

	// EventType retains the raw wire tag for debugging and fallback.
	EventType string `json:"event_type"`

	Status string `json:"status,omitempty"`
}

// Package normalize maps raw timeline events onto canonical
// transaction records. Classification is total: every event lands in
// exactly one Kind, with unknown as the terminal fallback. A foreign
// payload is never an error, only an unparsable record is.
package normalize

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Yeboster/trade-republic-tracker/internal/domain"
)

// NormalizationError marks one malformed raw event. It is recovered
// locally: the record is skipped and counted, the run continues.
type NormalizationError struct {
	EventID string
	Err     error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize: event %q: %v", e.EventID, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// kindByTag is the closed set of known event-type tags, the primary
// classification signal.
var kindByTag = map[string]domain.Kind{
	"card_successful_transaction": domain.KindCardSpend,
	"card_refund":                 domain.KindCardRefund,
	"card_failed_transaction":     domain.KindCardFailed,

	"ORDER_EXECUTED":                  domain.KindInvestment,
	"SAVINGS_PLAN_EXECUTED":           domain.KindInvestment,
	"benefits_saveback_execution":     domain.KindInvestment,
	"benefits_spare_change_execution": domain.KindInvestment,

	"PAYMENT_INBOUND":                   domain.KindCashDeposit,
	"PAYMENT_INBOUND_SEPA_DIRECT_DEBIT": domain.KindCashDeposit,
	"INTEREST_PAYOUT":                   domain.KindCashDeposit,
	"PAYMENT_OUTBOUND":                  domain.KindCashWithdrawal,
}

// investmentSubtitles identify investment events in legacy payloads
// that carry no event-type tag.
var investmentSubtitles = []string{
	"buy order", "sell order", "saving executed", "saveback",
	"round up", "dividend", "interest", "limit order",
}

// RawEventFromMap lifts a decoded timeline item into a RawEvent.
func RawEventFromMap(m map[string]any) domain.RawEvent {
	return domain.RawEvent{
		ID:        stringField(m, "id"),
		EventType: stringField(m, "eventType"),
		Fields:    m,
	}
}

// Normalize converts one raw event into its canonical record. The
// only failure modes are a missing event id and an unparsable
// timestamp; classification never fails.
func Normalize(ev domain.RawEvent) (domain.TransactionRecord, error) {
	if ev.ID == "" {
		return domain.TransactionRecord{}, &NormalizationError{Err: fmt.Errorf("missing event id")}
	}

	ts, err := parseTimestamp(ev.Fields["timestamp"])
	if err != nil {
		return domain.TransactionRecord{}, &NormalizationError{EventID: ev.ID, Err: err}
	}

	amount, currency := rawAmount(ev.Fields)
	kind := classify(ev, amount)

	merchant := stringField(ev.Fields, "title")
	if merchant == "" {
		merchant = "Unknown"
	}

	return domain.TransactionRecord{
		ID:        ev.ID,
		Timestamp: ts,
		Kind:      kind,
		Merchant:  merchant,
		Amount:    applySign(kind, amount),
		Currency:  currency,
		EventType: ev.EventType,
		Status:    stringField(ev.Fields, "status"),
	}, nil
}

// classify resolves the Kind: tag first, shape heuristics second,
// unknown last. The heuristic rules are a tunable policy, not a wire
// contract.
func classify(ev domain.RawEvent, amount decimal.Decimal) domain.Kind {
	if k, ok := kindByTag[ev.EventType]; ok {
		return k
	}

	icon := stringField(ev.Fields, "icon")
	subtitle := strings.ToLower(strings.TrimSpace(stringField(ev.Fields, "subtitle")))
	status := strings.ToUpper(stringField(ev.Fields, "status"))
	hasCashAccount := hasField(ev.Fields, "cashAccountNumber")

	// A merchant icon is the strongest card signal.
	if strings.Contains(icon, "merchant-") {
		return cardKind(status, amount)
	}

	if subtitle != "" {
		for _, s := range investmentSubtitles {
			if strings.Contains(subtitle, s) {
				return domain.KindInvestment
			}
		}
		if strings.Contains(subtitle, "deposit") {
			return domain.KindCashDeposit
		}
		if strings.Contains(subtitle, "withdrawal") {
			return domain.KindCashWithdrawal
		}
	}

	if hasCashAccount {
		return domain.KindInvestment
	}

	// No subtitle, no brokerage account, money going out: card spend.
	if subtitle == "" && !hasCashAccount && amount.IsNegative() {
		return cardKind(status, amount)
	}

	return domain.KindUnknown
}

func cardKind(status string, amount decimal.Decimal) domain.Kind {
	switch {
	case status == "FAILED" || status == "DECLINED":
		return domain.KindCardFailed
	case amount.IsPositive():
		return domain.KindCardRefund
	default:
		return domain.KindCardSpend
	}
}

// rawAmount reads the nested amount object. The wire carries the
// value as a plain decimal number; fractionDigits describes display
// precision, not scaling.
func rawAmount(fields map[string]any) (decimal.Decimal, string) {
	m := mapField(fields, "amount")
	if m == nil {
		return decimal.Zero, "EUR"
	}

	currency := stringField(m, "currency")
	if currency == "" {
		currency = "EUR"
	}

	value, ok := floatField(m, "value")
	if !ok {
		return decimal.Zero, currency
	}
	return decimal.NewFromFloat(value), currency
}

// applySign enforces the cash-effect convention: spends, buys and
// withdrawals negative; refunds and deposits positive. Investment
// events keep the wire sign when it is meaningful (sells are
// positive), unknown events are passed through untouched.
func applySign(kind domain.Kind, amount decimal.Decimal) decimal.Decimal {
	abs := amount.Abs()
	switch kind {
	case domain.KindCardSpend, domain.KindCardFailed, domain.KindCashWithdrawal:
		return abs.Neg()
	case domain.KindCardRefund, domain.KindCashDeposit:
		return abs
	case domain.KindInvestment:
		if !amount.IsZero() {
			return amount
		}
		return abs.Neg()
	default:
		return amount
	}
}

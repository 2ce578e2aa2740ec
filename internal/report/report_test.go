package report

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Yeboster/trade-republic-tracker/internal/domain"
)

func rec(id string, ts time.Time, kind domain.Kind, merchant, amount string) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID: id, Timestamp: ts, Kind: kind, Merchant: merchant,
		Amount: decimal.RequireFromString(amount), Currency: "EUR",
	}
}

func fixture() []domain.TransactionRecord {
	may := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	june := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	return []domain.TransactionRecord{
		rec("t1", may, domain.KindCardSpend, "Amazon", "-40"),
		rec("t2", may.Add(time.Hour), domain.KindCardRefund, "Amazon", "12.5"),
		rec("t3", may.Add(2*time.Hour), domain.KindCardFailed, "Shop", "-1000"),
		rec("t4", june, domain.KindCardSpend, "REWE Berlin", "-30"),
		rec("t5", june.Add(time.Hour), domain.KindInvestment, "MSCI World", "-25"),
		rec("t6", june.Add(2*time.Hour), domain.KindCashDeposit, "John", "500"),
		rec("t7", june.Add(3*time.Hour), domain.KindCardSpend, "Amazon", "-10"),
	}
}

func TestCompute_CardTotals(t *testing.T) {
	s := Compute(fixture(), 10)

	if !s.CardSpend.Equal(decimal.RequireFromString("80")) {
		t.Errorf("CardSpend = %s, want 80", s.CardSpend)
	}
	if !s.CardRefunds.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("CardRefunds = %s, want 12.5", s.CardRefunds)
	}
	if !s.CardNet.Equal(decimal.RequireFromString("-67.5")) {
		t.Errorf("CardNet = %s, want -67.5", s.CardNet)
	}
	// The declined 1000 must be visible as a count only.
	if s.FailedCount != 1 {
		t.Errorf("FailedCount = %d, want 1", s.FailedCount)
	}
	if _, ok := s.PerKind[domain.KindCardFailed]; ok {
		t.Error("failed kind must not appear in totals")
	}
	if s.Count != 7 {
		t.Errorf("Count = %d, want 7", s.Count)
	}
}

func TestCompute_TopMerchants(t *testing.T) {
	s := Compute(fixture(), 10)

	if len(s.TopMerchants) != 2 {
		t.Fatalf("merchants = %d, want 2", len(s.TopMerchants))
	}
	first := s.TopMerchants[0]
	if first.Merchant != "Amazon" || !first.Total.Equal(decimal.RequireFromString("50")) || first.Count != 2 {
		t.Errorf("top merchant = %+v, want Amazon 50 x2", first)
	}
	if first.Category != "shopping" {
		t.Errorf("category = %q, want shopping", first.Category)
	}
	if s.TopMerchants[1].Category != "groceries" {
		t.Errorf("REWE category = %q, want groceries", s.TopMerchants[1].Category)
	}
}

func TestCompute_TopNLimit(t *testing.T) {
	s := Compute(fixture(), 1)
	if len(s.TopMerchants) != 1 || s.TopMerchants[0].Merchant != "Amazon" {
		t.Errorf("TopMerchants = %+v, want only Amazon", s.TopMerchants)
	}
}

func TestCompute_MonthlyNet(t *testing.T) {
	s := Compute(fixture(), 10)

	if len(s.Monthly) != 2 {
		t.Fatalf("months = %d, want 2", len(s.Monthly))
	}
	if s.Monthly[0].Month != "2024-05" || s.Monthly[1].Month != "2024-06" {
		t.Fatalf("months out of order: %+v", s.Monthly)
	}
	// May: -40 spend + 12.5 refund; the declined transaction is out.
	if !s.Monthly[0].Net.Equal(decimal.RequireFromString("-27.5")) {
		t.Errorf("May net = %s, want -27.5", s.Monthly[0].Net)
	}
	// June: -30 - 25 + 500 - 10.
	if !s.Monthly[1].Net.Equal(decimal.RequireFromString("435")) {
		t.Errorf("June net = %s, want 435", s.Monthly[1].Net)
	}
}

func TestCategorize(t *testing.T) {
	tests := map[string]string{
		"REWE Markt GmbH":    "groceries",
		"Starbucks Berlin":   "dining",
		"AMAZON EU":          "shopping",
		"Netflix.com":        "subscriptions",
		"BVG Ticket App":     "transport",
		"Zur Letzten Instanz": CategoryOther,
	}
	for merchant, want := range tests {
		if got := Categorize(merchant); got != want {
			t.Errorf("Categorize(%q) = %q, want %q", merchant, got, want)
		}
	}
}

func TestRender(t *testing.T) {
	out := Render(Compute(fixture(), 5), "EUR")

	for _, want := range []string{"Transaction Report", "Card activity", "Amazon", "2024-05", "excluded from totals"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderEmpty(t *testing.T) {
	out := Render(Compute(nil, 5), "EUR")
	if !strings.Contains(out, "Transaction Report") {
		t.Error("empty summary must still render a header")
	}
}

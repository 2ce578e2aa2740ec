// Package report aggregates normalized records into spending summaries
// and renders them for the terminal.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Yeboster/trade-republic-tracker/internal/domain"
)

// MerchantTotal is one merchant's aggregated card spend.
type MerchantTotal struct {
	Merchant string
	Category string
	Total    decimal.Decimal
	Count    int
}

// MonthTotal is the net cash effect of one calendar month.
type MonthTotal struct {
	Month string // YYYY-MM
	Net   decimal.Decimal
	Count int
}

// Summary is the aggregate view over one record sequence. Failed and
// unknown records are counted but excluded from every total.
type Summary struct {
	From, To time.Time
	Count    int

	CardSpend   decimal.Decimal // magnitude of card spends
	CardRefunds decimal.Decimal
	CardNet     decimal.Decimal
	FailedCount int

	PerKind      map[domain.Kind]decimal.Decimal
	TopMerchants []MerchantTotal
	Monthly      []MonthTotal
}

// Compute builds the summary, keeping at most topN merchants.
func Compute(records []domain.TransactionRecord, topN int) *Summary {
	s := &Summary{
		CardSpend:   decimal.Zero,
		CardRefunds: decimal.Zero,
		CardNet:     decimal.Zero,
		PerKind:     make(map[domain.Kind]decimal.Decimal),
	}

	merchants := make(map[string]*MerchantTotal)
	months := make(map[string]*MonthTotal)

	for _, r := range records {
		s.Count++
		if s.From.IsZero() || r.Timestamp.Before(s.From) {
			s.From = r.Timestamp
		}
		if r.Timestamp.After(s.To) {
			s.To = r.Timestamp
		}

		if r.Kind == domain.KindCardFailed {
			s.FailedCount++
		}
		if !r.Kind.CountsTowardSpend() {
			continue
		}

		total, ok := s.PerKind[r.Kind]
		if !ok {
			total = decimal.Zero
		}
		s.PerKind[r.Kind] = total.Add(r.Amount)

		month := r.Timestamp.UTC().Format("2006-01")
		mt, ok := months[month]
		if !ok {
			mt = &MonthTotal{Month: month, Net: decimal.Zero}
			months[month] = mt
		}
		mt.Net = mt.Net.Add(r.Amount)
		mt.Count++

		switch r.Kind {
		case domain.KindCardSpend:
			s.CardSpend = s.CardSpend.Add(r.Amount.Abs())
			s.CardNet = s.CardNet.Add(r.Amount)
			m, ok := merchants[r.Merchant]
			if !ok {
				m = &MerchantTotal{Merchant: r.Merchant, Category: Categorize(r.Merchant), Total: decimal.Zero}
				merchants[r.Merchant] = m
			}
			m.Total = m.Total.Add(r.Amount.Abs())
			m.Count++
		case domain.KindCardRefund:
			s.CardRefunds = s.CardRefunds.Add(r.Amount)
			s.CardNet = s.CardNet.Add(r.Amount)
		}
	}

	for _, m := range merchants {
		s.TopMerchants = append(s.TopMerchants, *m)
	}
	sort.Slice(s.TopMerchants, func(i, j int) bool {
		if !s.TopMerchants[i].Total.Equal(s.TopMerchants[j].Total) {
			return s.TopMerchants[i].Total.GreaterThan(s.TopMerchants[j].Total)
		}
		return s.TopMerchants[i].Merchant < s.TopMerchants[j].Merchant
	})
	if topN > 0 && len(s.TopMerchants) > topN {
		s.TopMerchants = s.TopMerchants[:topN]
	}

	for _, m := range months {
		s.Monthly = append(s.Monthly, *m)
	}
	sort.Slice(s.Monthly, func(i, j int) bool { return s.Monthly[i].Month < s.Monthly[j].Month })

	return s
}

package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/shopspring/decimal"

	"github.com/Yeboster/trade-republic-tracker/internal/domain"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).MarginBottom(1)
	sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(22)
	negStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	posStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func amountText(d decimal.Decimal, currency string) string {
	text := fmt.Sprintf("%s %s", d.StringFixed(2), currency)
	if d.IsNegative() {
		return negStyle.Render(text)
	}
	return posStyle.Render(text)
}

// Render formats the summary for the terminal.
func Render(s *Summary, currency string) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Transaction Report"))
	b.WriteString("\n")
	if !s.From.IsZero() {
		b.WriteString(dimStyle.Render(fmt.Sprintf("%s to %s, %d records",
			s.From.UTC().Format("2006-01-02"), s.To.UTC().Format("2006-01-02"), s.Count)))
		b.WriteString("\n\n")
	}

	b.WriteString(sectionStyle.Render("Card activity"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Spend"), amountText(s.CardSpend.Neg(), currency))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Refunds"), amountText(s.CardRefunds, currency))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Net"), amountText(s.CardNet, currency))
	if s.FailedCount > 0 {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Declined"),
			dimStyle.Render(fmt.Sprintf("%d (excluded from totals)", s.FailedCount)))
	}

	if len(s.PerKind) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("By kind"))
		b.WriteString("\n")
		for _, k := range domain.Kinds() {
			total, ok := s.PerKind[k]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(string(k)), amountText(total, currency))
		}
	}

	if len(s.TopMerchants) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Top merchants"))
		b.WriteString("\n")
		for _, m := range s.TopMerchants {
			label := fmt.Sprintf("%s (%s)", m.Merchant, m.Category)
			fmt.Fprintf(&b, "%s %s %s\n", labelStyle.Render(label),
				amountText(m.Total.Neg(), currency), dimStyle.Render(fmt.Sprintf("x%d", m.Count)))
		}
	}

	if len(s.Monthly) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Monthly net"))
		b.WriteString("\n")
		for _, m := range s.Monthly {
			fmt.Fprintf(&b, "%s %s %s\n", labelStyle.Render(m.Month),
				amountText(m.Net, currency), dimStyle.Render(fmt.Sprintf("x%d", m.Count)))
		}
	}

	return b.String()
}

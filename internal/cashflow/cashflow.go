// Package cashflow turns receivables into summaries, inflow forecasts and a
// 0-100 health score. Everything here is pure: callers load the rows.
package cashflow

import (
	"math"
	"time"

	"bizportal/internal/models"
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Invoice is the calculator's view of an invoice row.
type Invoice struct {
	ID         uint
	ClientID   uint
	Amount     float64
	AmountPaid float64
	Status     models.InvoiceStatus
	IssueDate  time.Time
	DueDate    time.Time
	PaidAt     *time.Time
}

// FromModel converts a persisted invoice.
func FromModel(inv models.Invoice) Invoice {
	return Invoice{
		ID:         inv.ID,
		ClientID:   inv.ClientID,
		Amount:     inv.Amount.InexactFloat64(),
		AmountPaid: inv.AmountPaid.InexactFloat64(),
		Status:     inv.Status,
		IssueDate:  inv.IssueDate,
		DueDate:    inv.DueDate,
		PaidAt:     inv.PaidAt,
	}
}

func FromModels(invs []models.Invoice) []Invoice {
	out := make([]Invoice, 0, len(invs))
	for _, inv := range invs {
		out = append(out, FromModel(inv))
	}
	return out
}

// Outstanding is zero for drafts and closed invoices.
func Outstanding(inv Invoice) float64 {
	if !inv.Status.Open() {
		return 0
	}
	return math.Max(0, inv.Amount-inv.AmountPaid)
}

// DaysPastDue is negative while the invoice is not yet due.
func DaysPastDue(inv Invoice, now time.Time) int {
	return dayDiff(inv.DueDate, now)
}

func dayDiff(from, to time.Time) int {
	return int(startOfDay(to).Sub(startOfDay(from)).Hours() / 24)
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

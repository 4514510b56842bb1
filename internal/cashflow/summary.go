package cashflow

import (
	"time"

	"bizportal/internal/models"
)

type AgingBuckets struct {
	Current    float64 `json:"current"`
	Days1To30  float64 `json:"days_1_30"`
	Days31To60 float64 `json:"days_31_60"`
	Days61To90 float64 `json:"days_61_90"`
	Over90     float64 `json:"over_90"`
}

type Summary struct {
	TotalOutstanding   float64          `json:"total_outstanding"`
	OverdueAmount      float64          `json:"overdue_amount"`
	OverdueCount       int              `json:"overdue_count"`
	OpenCount          int              `json:"open_count"`
	AvgDaysOutstanding float64          `json:"avg_days_outstanding"`
	Aging              AgingBuckets     `json:"aging"`
	ByClient           map[uint]float64 `json:"by_client"`
}

// OverdueRatio is the share of receivables past due, 0 when nothing is owed.
func (s Summary) OverdueRatio() float64 {
	if s.TotalOutstanding <= 0 {
		return 0
	}
	return s.OverdueAmount / s.TotalOutstanding
}

// Summarize aggregates open receivables as of now.
func Summarize(invoices []Invoice, now time.Time) Summary {
	s := Summary{ByClient: make(map[uint]float64)}

	var ageSum float64
	for _, inv := range invoices {
		out := Outstanding(inv)
		if out <= 0 {
			continue
		}

		s.OpenCount++
		s.TotalOutstanding += out
		s.ByClient[inv.ClientID] += out
		ageSum += float64(max(0, dayDiff(inv.IssueDate, now)))

		late := DaysPastDue(inv, now)
		switch {
		case late <= 0:
			s.Aging.Current += out
		case late <= 30:
			s.Aging.Days1To30 += out
		case late <= 60:
			s.Aging.Days31To60 += out
		case late <= 90:
			s.Aging.Days61To90 += out
		default:
			s.Aging.Over90 += out
		}
		if late > 0 {
			s.OverdueAmount += out
			s.OverdueCount++
		}
	}

	if s.OpenCount > 0 {
		s.AvgDaysOutstanding = round2(ageSum / float64(s.OpenCount))
	}
	s.TotalOutstanding = round2(s.TotalOutstanding)
	s.OverdueAmount = round2(s.OverdueAmount)
	s.Aging = AgingBuckets{
		Current:    round2(s.Aging.Current),
		Days1To30:  round2(s.Aging.Days1To30),
		Days31To60: round2(s.Aging.Days31To60),
		Days61To90: round2(s.Aging.Days61To90),
		Over90:     round2(s.Aging.Over90),
	}
	return s
}

// History is a client's observed payment behaviour.
type History struct {
	PaidCount    int     `json:"paid_count"`
	AvgDaysToPay float64 `json:"avg_days_to_pay"`
	OnTimeRatio  float64 `json:"on_time_ratio"`
	AvgDaysLate  float64 `json:"avg_days_late"`
}

// ClientHistories derives payment behaviour from paid invoices that carry a paid date.
func ClientHistories(invoices []Invoice) map[uint]History {
	type acc struct {
		n, onTime       int
		daysToPay, late float64
	}
	accs := make(map[uint]*acc)

	for _, inv := range invoices {
		if inv.Status != models.InvoicePaid || inv.PaidAt == nil {
			continue
		}
		a, ok := accs[inv.ClientID]
		if !ok {
			a = &acc{}
			accs[inv.ClientID] = a
		}
		a.n++
		a.daysToPay += float64(max(0, dayDiff(inv.IssueDate, *inv.PaidAt)))
		late := dayDiff(inv.DueDate, *inv.PaidAt)
		if late <= 0 {
			a.onTime++
		} else {
			a.late += float64(late)
		}
	}

	out := make(map[uint]History, len(accs))
	for clientID, a := range accs {
		n := float64(a.n)
		out[clientID] = History{
			PaidCount:    a.n,
			AvgDaysToPay: round2(a.daysToPay / n),
			OnTimeRatio:  round2(float64(a.onTime) / n),
			AvgDaysLate:  round2(a.late / n),
		}
	}
	return out
}

// AverageDaysToPay is the mean over all clients weighted by paid count.
func AverageDaysToPay(histories map[uint]History) float64 {
	var days float64
	var n int
	for _, h := range histories {
		days += h.AvgDaysToPay * float64(h.PaidCount)
		n += h.PaidCount
	}
	if n == 0 {
		return 0
	}
	return round2(days / float64(n))
}

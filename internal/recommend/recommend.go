// Package recommend produces collection advice for open invoices, either from
// a fixed threshold ladder or from a language model constrained to the same schema.
package recommend

import (
	"fmt"
	"sort"
	"time"

	"bizportal/internal/cashflow"
)

// Disclaimer is attached to every recommendation.
const Disclaimer = "This is an automated suggestion based on your own records. It is not financial, legal, or tax advice; consider consulting a qualified professional before acting."

type Action string

const (
	ActionFriendlyReminder Action = "send_friendly_reminder"
	ActionReminder         Action = "send_reminder"
	ActionCallClient       Action = "call_client"
	ActionPaymentPlan      Action = "offer_payment_plan"
	ActionEscalate         Action = "escalate"
	ActionWriteOff         Action = "consider_write_off"
)

func (a Action) Valid() bool {
	switch a {
	case ActionFriendlyReminder, ActionReminder, ActionCallClient, ActionPaymentPlan, ActionEscalate, ActionWriteOff:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return -1
}

func (p Priority) Valid() bool {
	return p.rank() >= 0
}

type Source string

const (
	SourceRules Source = "rules"
	SourceAI    Source = "ai"
)

// Input describes one open invoice.
type Input struct {
	InvoiceID     uint
	InvoiceNumber string
	ClientName    string
	Outstanding   float64
	Currency      string
	DueDate       time.Time
	History       cashflow.History
}

type Recommendation struct {
	InvoiceID     uint                `json:"invoice_id"`
	InvoiceNumber string              `json:"invoice_number"`
	Action        Action              `json:"action"`
	Priority      Priority            `json:"priority"`
	Title         string              `json:"title"`
	Message       string              `json:"message"`
	Confidence    cashflow.Confidence `json:"confidence"`
	Source        Source              `json:"source"`
	Disclaimer    string              `json:"disclaimer"`
}

// dueSoonDays is how far ahead of the due date a friendly reminder is suggested.
const dueSoonDays = 7

// GenerateRuleBasedRecommendations walks the days-past-due ladder for each input.
func GenerateRuleBasedRecommendations(inputs []Input, now time.Time) []Recommendation {
	recs := make([]Recommendation, 0, len(inputs))
	for _, in := range inputs {
		if in.Outstanding <= 0 {
			continue
		}
		rec, ok := ruleFor(in, now)
		if !ok {
			continue
		}
		recs = append(recs, rec)
	}
	sortRecommendations(recs, inputs)
	return recs
}

func ruleFor(in Input, now time.Time) (Recommendation, bool) {
	late := cashflow.DaysPastDue(cashflow.Invoice{DueDate: in.DueDate}, now)
	amount := formatAmount(in.Outstanding, in.Currency)
	h := in.History

	rec := Recommendation{
		InvoiceID:     in.InvoiceID,
		InvoiceNumber: in.InvoiceNumber,
		Confidence:    ConfidenceFor(h),
		Source:        SourceRules,
		Disclaimer:    Disclaimer,
	}

	switch {
	case late < -dueSoonDays:
		return Recommendation{}, false

	case late <= 0:
		rec.Action = ActionFriendlyReminder
		rec.Priority = PriorityLow
		rec.Title = fmt.Sprintf("Invoice %s is due soon", in.InvoiceNumber)
		rec.Message = fmt.Sprintf("%s owes %s due in %d day(s). A short, friendly reminder may help it get paid on time.",
			in.ClientName, amount, -late)

	case late <= 14:
		rec.Action = ActionReminder
		rec.Priority = PriorityMedium
		rec.Title = fmt.Sprintf("Invoice %s is %d day(s) overdue", in.InvoiceNumber, late)
		rec.Message = fmt.Sprintf("Consider sending %s a reminder for %s.", in.ClientName, amount)
		if h.PaidCount > 0 && h.OnTimeRatio >= 0.8 {
			rec.Priority = PriorityLow
			rec.Message += " This client has usually paid on time, so this may be an oversight."
		}

	case late <= 30:
		rec.Action = ActionCallClient
		rec.Priority = PriorityHigh
		rec.Title = fmt.Sprintf("Invoice %s is %d days overdue", in.InvoiceNumber, late)
		rec.Message = fmt.Sprintf("A phone call to %s about %s may resolve the delay faster than another email.",
			in.ClientName, amount)

	case late <= 60:
		if h.PaidCount > 0 && h.AvgDaysLate > 30 {
			rec.Action = ActionEscalate
			rec.Priority = PriorityUrgent
			rec.Title = fmt.Sprintf("Invoice %s is %d days overdue from a habitually late client", in.InvoiceNumber, late)
			rec.Message = fmt.Sprintf("%s has paid an average of %.0f days late. Consider escalating %s and pausing new work until it is settled.",
				in.ClientName, h.AvgDaysLate, amount)
		} else {
			rec.Action = ActionPaymentPlan
			rec.Priority = PriorityHigh
			rec.Title = fmt.Sprintf("Invoice %s is %d days overdue", in.InvoiceNumber, late)
			rec.Message = fmt.Sprintf("Consider offering %s a payment plan for %s; splitting the balance may make collection more likely.",
				in.ClientName, amount)
		}

	case late <= 90:
		rec.Action = ActionEscalate
		rec.Priority = PriorityUrgent
		rec.Title = fmt.Sprintf("Invoice %s is %d days overdue", in.InvoiceNumber, late)
		rec.Message = fmt.Sprintf("%s for %s may need a formal demand letter. Consider pausing further work for this client.",
			amount, in.ClientName)

	default:
		rec.Action = ActionWriteOff
		rec.Priority = PriorityUrgent
		rec.Title = fmt.Sprintf("Invoice %s is more than 90 days overdue", in.InvoiceNumber)
		rec.Message = fmt.Sprintf("Recovery of %s from %s is increasingly unlikely. Consider a collections agency or writing the balance off.",
			amount, in.ClientName)
	}

	return rec, true
}

// ConfidenceFor maps how much payment history backs a suggestion.
func ConfidenceFor(h cashflow.History) cashflow.Confidence {
	switch {
	case h.PaidCount >= 5:
		return cashflow.ConfidenceHigh
	case h.PaidCount >= 2:
		return cashflow.ConfidenceMedium
	default:
		return cashflow.ConfidenceLow
	}
}

// sortRecommendations orders by priority, then by outstanding amount descending.
func sortRecommendations(recs []Recommendation, inputs []Input) {
	amounts := make(map[uint]float64, len(inputs))
	for _, in := range inputs {
		amounts[in.InvoiceID] = in.Outstanding
	}
	sort.SliceStable(recs, func(i, j int) bool {
		ri, rj := recs[i].Priority.rank(), recs[j].Priority.rank()
		if ri != rj {
			return ri < rj
		}
		return amounts[recs[i].InvoiceID] > amounts[recs[j].InvoiceID]
	})
}

func formatAmount(v float64, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%s %.2f", currency, v)
}

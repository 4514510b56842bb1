package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bizportal/internal/ai"
	"bizportal/internal/cashflow"
)

// Generator is the subset of ai.Client used here.
type Generator interface {
	Chat(ctx context.Context, req ai.Request, result any) (*ai.Response, error)
}

type Result struct {
	Recommendations []Recommendation `json:"recommendations"`
	Source          Source           `json:"source"`
	FallbackReason  string           `json:"fallback_reason,omitempty"`
}

type aiRecommendation struct {
	InvoiceID  uint   `json:"invoice_id" jsonschema:"description=ID of the invoice this advice is about"`
	Action     string `json:"action" jsonschema:"enum=send_friendly_reminder,enum=send_reminder,enum=call_client,enum=offer_payment_plan,enum=escalate,enum=consider_write_off"`
	Priority   string `json:"priority" jsonschema:"enum=low,enum=medium,enum=high,enum=urgent"`
	Title      string `json:"title"`
	Message    string `json:"message" jsonschema:"description=One or two hedged sentences of advice"`
	Confidence string `json:"confidence" jsonschema:"enum=low,enum=medium,enum=high"`
}

type aiRecommendationSet struct {
	Recommendations []aiRecommendation `json:"recommendations"`
}

const systemPrompt = `You help small business owners follow up on unpaid invoices.
Return one recommendation per invoice that needs attention, using only the invoice IDs provided.
Use cautious, hedged language such as "may", "might" or "consider". Never promise outcomes and never give legal, tax or financial guarantees.`

var (
	hedgeWords     = []string{"may", "might", "consider", "could", "perhaps"}
	forbiddenWords = []string{"guarantee", "definitely", "certainly will", "you must", "legally required"}
)

// GenerateAIRecommendations asks the model for recommendations with the same schema as
// the rule ladder. Any failure returns the rule-based result for the whole batch.
func GenerateAIRecommendations(ctx context.Context, gen Generator, inputs []Input, now time.Time) Result {
	fallback := func(reason string) Result {
		return Result{
			Recommendations: GenerateRuleBasedRecommendations(inputs, now),
			Source:          SourceRules,
			FallbackReason:  reason,
		}
	}

	if gen == nil {
		return fallback("ai not configured")
	}
	if len(inputs) == 0 {
		return Result{Recommendations: []Recommendation{}, Source: SourceAI}
	}

	prompt, err := buildPrompt(inputs, now)
	if err != nil {
		return fallback(err.Error())
	}

	var out aiRecommendationSet
	_, err = gen.Chat(ctx, ai.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		SchemaName:   "collection_recommendations",
		Schema:       ai.GenerateSchema[aiRecommendationSet](),
		Temperature:  ai.Temp(0.2),
	}, &out)
	if err != nil {
		return fallback(err.Error())
	}

	recs, err := validate(out, inputs)
	if err != nil {
		return fallback(err.Error())
	}
	if len(recs) == 0 && len(GenerateRuleBasedRecommendations(inputs, now)) > 0 {
		return fallback("ai returned no recommendations")
	}

	sortRecommendations(recs, inputs)
	return Result{Recommendations: recs, Source: SourceAI}
}

type promptInvoice struct {
	InvoiceID    uint    `json:"invoice_id"`
	Number       string  `json:"number"`
	Client       string  `json:"client"`
	Outstanding  float64 `json:"outstanding"`
	Currency     string  `json:"currency"`
	DaysPastDue  int     `json:"days_past_due"`
	PaidInvoices int     `json:"client_paid_invoices"`
	AvgDaysToPay float64 `json:"client_avg_days_to_pay"`
	OnTimeRatio  float64 `json:"client_on_time_ratio"`
	AvgDaysLate  float64 `json:"client_avg_days_late"`
}

func buildPrompt(inputs []Input, now time.Time) (string, error) {
	rows := make([]promptInvoice, 0, len(inputs))
	for _, in := range inputs {
		rows = append(rows, promptInvoice{
			InvoiceID:    in.InvoiceID,
			Number:       in.InvoiceNumber,
			Client:       in.ClientName,
			Outstanding:  in.Outstanding,
			Currency:     in.Currency,
			DaysPastDue:  cashflow.DaysPastDue(cashflow.Invoice{DueDate: in.DueDate}, now),
			PaidInvoices: in.History.PaidCount,
			AvgDaysToPay: in.History.AvgDaysToPay,
			OnTimeRatio:  in.History.OnTimeRatio,
			AvgDaysLate:  in.History.AvgDaysLate,
		})
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("marshal prompt: %w", err)
	}
	return "Today is " + now.Format("2006-01-02") + ". Open invoices:\n" + string(data), nil
}

func validate(set aiRecommendationSet, inputs []Input) ([]Recommendation, error) {
	known := make(map[uint]Input, len(inputs))
	for _, in := range inputs {
		known[in.InvoiceID] = in
	}

	seen := make(map[uint]bool)
	recs := make([]Recommendation, 0, len(set.Recommendations))
	for _, r := range set.Recommendations {
		in, ok := known[r.InvoiceID]
		if !ok {
			return nil, fmt.Errorf("unknown invoice id %d", r.InvoiceID)
		}
		if seen[r.InvoiceID] {
			return nil, fmt.Errorf("duplicate recommendation for invoice %d", r.InvoiceID)
		}
		seen[r.InvoiceID] = true

		action, priority, conf := Action(r.Action), Priority(r.Priority), cashflow.Confidence(r.Confidence)
		if !action.Valid() {
			return nil, fmt.Errorf("invalid action %q", r.Action)
		}
		if !priority.Valid() {
			return nil, fmt.Errorf("invalid priority %q", r.Priority)
		}
		switch conf {
		case cashflow.ConfidenceLow, cashflow.ConfidenceMedium, cashflow.ConfidenceHigh:
		default:
			return nil, fmt.Errorf("invalid confidence %q", r.Confidence)
		}
		if err := checkWording(r.Message); err != nil {
			return nil, err
		}

		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = "Follow up on invoice " + in.InvoiceNumber
		}

		recs = append(recs, Recommendation{
			InvoiceID:     in.InvoiceID,
			InvoiceNumber: in.InvoiceNumber,
			Action:        action,
			Priority:      priority,
			Title:         title,
			Message:       strings.TrimSpace(r.Message),
			Confidence:    conf,
			Source:        SourceAI,
			Disclaimer:    Disclaimer,
		})
	}
	return recs, nil
}

var errEmptyMessage = errors.New("empty recommendation message")

func checkWording(msg string) error {
	lower := strings.ToLower(strings.TrimSpace(msg))
	if lower == "" {
		return errEmptyMessage
	}
	for _, w := range forbiddenWords {
		if strings.Contains(lower, w) {
			return fmt.Errorf("message contains forbidden wording %q", w)
		}
	}
	for _, w := range hedgeWords {
		if containsWord(lower, w) {
			return nil
		}
	}
	return errors.New("message is missing hedged wording")
}

func containsWord(s, w string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if f == w {
			return true
		}
	}
	return false
}

package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bizportal/internal/ai"
	"bizportal/internal/cashflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

func input(id uint, daysPastDue int, outstanding float64) Input {
	return Input{
		InvoiceID:     id,
		InvoiceNumber: "INV-" + string(rune('0'+id)),
		ClientName:    "Acme",
		Outstanding:   outstanding,
		Currency:      "USD",
		DueDate:       now.AddDate(0, 0, -daysPastDue),
	}
}

func TestRuleLadder(t *testing.T) {
	cases := []struct {
		name     string
		late     int
		history  cashflow.History
		action   Action
		priority Priority
	}{
		{"due in five days", -5, cashflow.History{}, ActionFriendlyReminder, PriorityLow},
		{"due today", 0, cashflow.History{}, ActionFriendlyReminder, PriorityLow},
		{"one day late", 1, cashflow.History{}, ActionReminder, PriorityMedium},
		{"late but reliable client", 10, cashflow.History{PaidCount: 4, OnTimeRatio: 0.9}, ActionReminder, PriorityLow},
		{"late after a single on-time payment", 5, cashflow.History{PaidCount: 1, OnTimeRatio: 1}, ActionReminder, PriorityLow},
		{"fourteen days", 14, cashflow.History{}, ActionReminder, PriorityMedium},
		{"fifteen days", 15, cashflow.History{}, ActionCallClient, PriorityHigh},
		{"thirty days", 30, cashflow.History{}, ActionCallClient, PriorityHigh},
		{"forty days", 40, cashflow.History{}, ActionPaymentPlan, PriorityHigh},
		{"forty days habitual late payer", 40, cashflow.History{PaidCount: 3, AvgDaysLate: 35}, ActionEscalate, PriorityUrgent},
		{"ninety days", 90, cashflow.History{}, ActionEscalate, PriorityUrgent},
		{"over ninety", 91, cashflow.History{}, ActionWriteOff, PriorityUrgent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := input(1, tc.late, 500)
			in.History = tc.history
			recs := GenerateRuleBasedRecommendations([]Input{in}, now)
			require.Len(t, recs, 1)
			assert.Equal(t, tc.action, recs[0].Action)
			assert.Equal(t, tc.priority, recs[0].Priority)
			assert.Equal(t, SourceRules, recs[0].Source)
			assert.Equal(t, Disclaimer, recs[0].Disclaimer)
			assert.NotEmpty(t, recs[0].Message)
		})
	}
}

func TestRulesSkipFarFutureAndSettled(t *testing.T) {
	recs := GenerateRuleBasedRecommendations([]Input{
		input(1, -20, 500),
		input(2, 10, 0),
	}, now)
	assert.Empty(t, recs)
}

func TestRulesSortByPriorityThenAmount(t *testing.T) {
	recs := GenerateRuleBasedRecommendations([]Input{
		input(1, 5, 100),
		input(2, 100, 50),
		input(3, 5, 900),
		input(4, 20, 10),
	}, now)

	require.Len(t, recs, 4)
	ids := []uint{recs[0].InvoiceID, recs[1].InvoiceID, recs[2].InvoiceID, recs[3].InvoiceID}
	assert.Equal(t, []uint{2, 4, 3, 1}, ids)
}

func TestConfidenceFor(t *testing.T) {
	assert.Equal(t, cashflow.ConfidenceLow, ConfidenceFor(cashflow.History{PaidCount: 1}))
	assert.Equal(t, cashflow.ConfidenceMedium, ConfidenceFor(cashflow.History{PaidCount: 2}))
	assert.Equal(t, cashflow.ConfidenceHigh, ConfidenceFor(cashflow.History{PaidCount: 5}))
}

type fakeGenerator struct {
	payload string
	err     error
	calls   int
}

func (f *fakeGenerator) Chat(_ context.Context, req ai.Request, result any) (*ai.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if err := json.Unmarshal([]byte(f.payload), result); err != nil {
		return nil, err
	}
	return &ai.Response{}, nil
}

func TestAIRecommendationsAccepted(t *testing.T) {
	gen := &fakeGenerator{payload: `{"recommendations":[
		{"invoice_id":1,"action":"call_client","priority":"high","title":"Call Acme","message":"You might get a faster answer by phone.","confidence":"medium"},
		{"invoice_id":2,"action":"send_reminder","priority":"urgent","title":"","message":"Consider a firm reminder.","confidence":"low"}
	]}`}

	res := GenerateAIRecommendations(context.Background(), gen, []Input{input(1, 20, 300), input(2, 5, 100)}, now)

	assert.Equal(t, SourceAI, res.Source)
	assert.Empty(t, res.FallbackReason)
	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, uint(2), res.Recommendations[0].InvoiceID)
	assert.Equal(t, "Follow up on invoice INV-2", res.Recommendations[0].Title)
	assert.Equal(t, Disclaimer, res.Recommendations[1].Disclaimer)
	assert.Equal(t, SourceAI, res.Recommendations[1].Source)
}

func TestAIRecommendationsFallback(t *testing.T) {
	inputs := []Input{input(1, 20, 300)}

	cases := []struct {
		name   string
		gen    Generator
		reason string
	}{
		{"not configured", nil, "ai not configured"},
		{"provider error", &fakeGenerator{err: errors.New("timeout")}, "timeout"},
		{"unknown invoice", &fakeGenerator{payload: `{"recommendations":[{"invoice_id":9,"action":"call_client","priority":"high","title":"t","message":"may help","confidence":"low"}]}`}, "unknown invoice id 9"},
		{"bad action", &fakeGenerator{payload: `{"recommendations":[{"invoice_id":1,"action":"sue","priority":"high","title":"t","message":"may help","confidence":"low"}]}`}, `invalid action "sue"`},
		{"overconfident", &fakeGenerator{payload: `{"recommendations":[{"invoice_id":1,"action":"call_client","priority":"high","title":"t","message":"This will definitely work, you may call.","confidence":"high"}]}`}, "forbidden wording"},
		{"unhedged", &fakeGenerator{payload: `{"recommendations":[{"invoice_id":1,"action":"call_client","priority":"high","title":"t","message":"Call them now.","confidence":"high"}]}`}, "hedged wording"},
		{"empty while rules apply", &fakeGenerator{payload: `{"recommendations":[]}`}, "no recommendations"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := GenerateAIRecommendations(context.Background(), tc.gen, inputs, now)
			assert.Equal(t, SourceRules, res.Source)
			assert.Contains(t, res.FallbackReason, tc.reason)
			require.Len(t, res.Recommendations, 1)
			assert.Equal(t, ActionCallClient, res.Recommendations[0].Action)
		})
	}
}

func TestAIRecommendationsNoInputs(t *testing.T) {
	gen := &fakeGenerator{}
	res := GenerateAIRecommendations(context.Background(), gen, nil, now)
	assert.Equal(t, SourceAI, res.Source)
	assert.Empty(t, res.Recommendations)
	assert.Zero(t, gen.calls)
}

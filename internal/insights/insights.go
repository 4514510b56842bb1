// Package insights correlates receivables, payroll and industry benchmarks
// into short, hedged observations for the dashboard.
package insights

import (
	"fmt"
	"math"
	"sort"

	"bizportal/internal/cashflow"
)

type Category string

const (
	CategoryCashflow    Category = "cashflow"
	CategoryPayroll     Category = "payroll"
	CategoryBenchmark   Category = "benchmark"
	CategoryCorrelation Category = "correlation"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	}
	return 2
}

type Insight struct {
	Category       Category            `json:"category"`
	Severity       Severity            `json:"severity"`
	Title          string              `json:"title"`
	Summary        string              `json:"summary"`
	Recommendation string              `json:"recommendation"`
	Confidence     cashflow.Confidence `json:"confidence"`
	Data           map[string]any      `json:"data"`
}

// Payroll is one processed pay run, newest first in Input.Payrolls.
type Payroll struct {
	Gross         float64
	EmployerTaxes float64
	EmployeeCount int
}

func (p Payroll) Cost() float64 {
	return p.Gross + p.EmployerTaxes
}

type Benchmark struct {
	Industry         string
	AvgDaysToPay     float64
	OverdueRate      float64
	PayrollToRevenue float64
}

type Input struct {
	Summary      cashflow.Summary
	Forecast     cashflow.Forecast
	AvgDaysToPay float64 // across clients with paid invoices; 0 when unknown
	Payrolls     []Payroll
	// Revenue30 is money received in the last 30 days; PreviousRevenue30 the 30 days before.
	Revenue30         float64
	PreviousRevenue30 float64
	Benchmark         *Benchmark
	ClientNames       map[uint]string
}

const (
	payrollCoverageWarn   = 1.5
	payrollRatioTolerance = 1.2
	slowPayerFactor       = 1.25
	concentrationShare    = 0.40
)

// Generate applies every rule and returns insights ordered by severity.
func Generate(in Input) []Insight {
	var out []Insight
	for _, rule := range []func(Input) (Insight, bool){
		payrollCoverage,
		payrollToRevenue,
		daysToPay,
		overdueRate,
		clientConcentration,
		headcountVsRevenue,
	} {
		if ins, ok := rule(in); ok {
			out = append(out, ins)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.rank() < out[j].Severity.rank()
	})
	return out
}

func payrollCoverage(in Input) (Insight, bool) {
	if len(in.Payrolls) == 0 {
		return Insight{}, false
	}
	cost := in.Payrolls[0].Cost()
	if cost <= 0 {
		return Insight{}, false
	}
	expected := in.Forecast.Expected
	data := map[string]any{"payroll_cost": round2(cost), "forecast_30d": round2(expected)}

	switch {
	case expected < cost:
		return Insight{
			Category:       CategoryCorrelation,
			Severity:       SeverityCritical,
			Title:          "Expected collections may not cover the next payroll",
			Summary:        fmt.Sprintf("About %.2f is expected in the next 30 days against a payroll of roughly %.2f.", expected, cost),
			Recommendation: "Consider following up on overdue invoices now or arranging short-term funding before payroll runs.",
			Confidence:     in.Forecast.Confidence,
			Data:           data,
		}, true
	case expected < cost*payrollCoverageWarn:
		return Insight{
			Category:       CategoryCorrelation,
			Severity:       SeverityWarning,
			Title:          "Payroll coverage is thin",
			Summary:        fmt.Sprintf("Expected collections of %.2f leave little room over a payroll of about %.2f.", expected, cost),
			Recommendation: "It may help to prioritize collecting the largest open invoices this month.",
			Confidence:     in.Forecast.Confidence,
			Data:           data,
		}, true
	}
	return Insight{}, false
}

func payrollToRevenue(in Input) (Insight, bool) {
	if in.Benchmark == nil || len(in.Payrolls) == 0 || in.Revenue30 <= 0 || in.Benchmark.PayrollToRevenue <= 0 {
		return Insight{}, false
	}
	ratio := in.Payrolls[0].Cost() / in.Revenue30
	if ratio <= in.Benchmark.PayrollToRevenue*payrollRatioTolerance {
		return Insight{}, false
	}
	return Insight{
		Category: CategoryPayroll,
		Severity: SeverityWarning,
		Title:    "Payroll is high relative to revenue",
		Summary: fmt.Sprintf("Payroll is about %.0f%% of recent revenue, compared with a typical %.0f%% in %s.",
			ratio*100, in.Benchmark.PayrollToRevenue*100, in.Benchmark.Industry),
		Recommendation: "Consider reviewing staffing plans against expected revenue for the next quarter.",
		Confidence:     cashflow.ConfidenceMedium,
		Data: map[string]any{
			"payroll_to_revenue": round2(ratio),
			"benchmark":          in.Benchmark.PayrollToRevenue,
		},
	}, true
}

func daysToPay(in Input) (Insight, bool) {
	if in.Benchmark == nil || in.AvgDaysToPay <= 0 || in.Benchmark.AvgDaysToPay <= 0 {
		return Insight{}, false
	}
	bench := in.Benchmark.AvgDaysToPay
	data := map[string]any{"avg_days_to_pay": round2(in.AvgDaysToPay), "benchmark": bench}

	switch {
	case in.AvgDaysToPay > bench*slowPayerFactor:
		return Insight{
			Category: CategoryBenchmark,
			Severity: SeverityWarning,
			Title:    "Clients pay slower than the industry",
			Summary: fmt.Sprintf("Invoices take about %.0f days to be paid, against roughly %.0f days in %s.",
				in.AvgDaysToPay, bench, in.Benchmark.Industry),
			Recommendation: "Shorter payment terms or a deposit on new work may reduce the wait.",
			Confidence:     cashflow.ConfidenceMedium,
			Data:           data,
		}, true
	case in.AvgDaysToPay < bench:
		return Insight{
			Category: CategoryBenchmark,
			Severity: SeverityInfo,
			Title:    "Clients pay faster than the industry",
			Summary: fmt.Sprintf("Invoices are paid in about %.0f days, ahead of roughly %.0f days in %s.",
				in.AvgDaysToPay, bench, in.Benchmark.Industry),
			Recommendation: "Your current invoicing habits appear to be working; consider keeping them consistent.",
			Confidence:     cashflow.ConfidenceMedium,
			Data:           data,
		}, true
	}
	return Insight{}, false
}

func overdueRate(in Input) (Insight, bool) {
	if in.Benchmark == nil || in.Summary.TotalOutstanding <= 0 {
		return Insight{}, false
	}
	rate := in.Summary.OverdueRatio()
	if rate <= in.Benchmark.OverdueRate {
		return Insight{}, false
	}
	return Insight{
		Category: CategoryCashflow,
		Severity: SeverityWarning,
		Title:    "A large share of receivables is overdue",
		Summary: fmt.Sprintf("%.0f%% of outstanding receivables are past due, above a typical %.0f%%.",
			rate*100, in.Benchmark.OverdueRate*100),
		Recommendation: "Consider a regular reminder cadence for invoices as soon as they fall due.",
		Confidence:     cashflow.ConfidenceMedium,
		Data: map[string]any{
			"overdue_rate": round2(rate),
			"benchmark":    in.Benchmark.OverdueRate,
		},
	}, true
}

func clientConcentration(in Input) (Insight, bool) {
	total := in.Summary.TotalOutstanding
	if total <= 0 {
		return Insight{}, false
	}
	var topID uint
	var top float64
	for id, amt := range in.Summary.ByClient {
		if amt > top || (amt == top && id < topID) {
			topID, top = id, amt
		}
	}
	share := top / total
	if share <= concentrationShare {
		return Insight{}, false
	}
	name := in.ClientNames[topID]
	if name == "" {
		name = fmt.Sprintf("client #%d", topID)
	}
	return Insight{
		Category:       CategoryCashflow,
		Severity:       SeverityWarning,
		Title:          "Receivables are concentrated in one client",
		Summary:        fmt.Sprintf("%s accounts for %.0f%% of what you are owed.", name, share*100),
		Recommendation: "A late payment from this client could affect cash flow noticeably; consider staged billing.",
		Confidence:     cashflow.ConfidenceHigh,
		Data: map[string]any{
			"client_id": topID,
			"share":     round2(share),
			"amount":    round2(top),
		},
	}, true
}

func headcountVsRevenue(in Input) (Insight, bool) {
	if len(in.Payrolls) < 2 || in.PreviousRevenue30 <= 0 {
		return Insight{}, false
	}
	latest, prev := in.Payrolls[0], in.Payrolls[1]
	if latest.EmployeeCount <= prev.EmployeeCount || in.Revenue30 >= in.PreviousRevenue30 {
		return Insight{}, false
	}
	return Insight{
		Category: CategoryCorrelation,
		Severity: SeverityInfo,
		Title:    "Headcount grew while revenue dipped",
		Summary: fmt.Sprintf("The team grew from %d to %d people while 30-day revenue fell from %.2f to %.2f.",
			prev.EmployeeCount, latest.EmployeeCount, in.PreviousRevenue30, in.Revenue30),
		Recommendation: "This may be timing, but it could be worth watching whether revenue catches up next month.",
		Confidence:     cashflow.ConfidenceLow,
		Data: map[string]any{
			"headcount_before": prev.EmployeeCount,
			"headcount_after":  latest.EmployeeCount,
			"revenue_before":   round2(in.PreviousRevenue30),
			"revenue_after":    round2(in.Revenue30),
		},
	}, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

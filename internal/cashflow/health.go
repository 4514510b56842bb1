package cashflow

import "math"

const (
	weightOverdue  = 0.40
	weightDays     = 0.25
	weightCoverage = 0.20
	weightLoad     = 0.15
)

type Grade string

const (
	GradeHealthy  Grade = "healthy"
	GradeFair     Grade = "fair"
	GradeAtRisk   Grade = "at_risk"
	GradeCritical Grade = "critical"
)

type HealthInputs struct {
	TotalOutstanding   float64
	OverdueAmount      float64
	AvgDaysOutstanding float64
	Forecast30         float64
	MonthlyRevenue     float64 // 0 when unknown
}

type HealthComponents struct {
	Overdue  float64 `json:"overdue"`
	Days     float64 `json:"days_outstanding"`
	Coverage float64 `json:"forecast_coverage"`
	Load     float64 `json:"receivables_load"`
}

type HealthScore struct {
	Score      int              `json:"score"`
	Grade      Grade            `json:"grade"`
	Components HealthComponents `json:"components"`
}

// CalculateHealthScore combines four 0-100 components into a weighted score.
// The score never increases as the overdue ratio grows.
func CalculateHealthScore(in HealthInputs) HealthScore {
	outstanding := math.Max(0, in.TotalOutstanding)
	overdue := clamp(in.OverdueAmount, 0, outstanding)

	c := HealthComponents{
		Overdue:  100,
		Coverage: 100,
	}

	if outstanding > 0 {
		c.Overdue = 100 * (1 - overdue/outstanding)
		c.Coverage = 100 * math.Min(1, math.Max(0, in.Forecast30)/outstanding)
	}

	switch days := in.AvgDaysOutstanding; {
	case days <= 30:
		c.Days = 100
	case days >= 120:
		c.Days = 0
	default:
		c.Days = 100 * (120 - days) / 90
	}

	switch {
	case in.MonthlyRevenue <= 0 && outstanding == 0:
		c.Load = 100
	case in.MonthlyRevenue <= 0:
		c.Load = 50
	default:
		ratio := outstanding / in.MonthlyRevenue
		c.Load = clamp(100*(3-ratio)/2, 0, 100)
	}

	raw := weightOverdue*c.Overdue + weightDays*c.Days + weightCoverage*c.Coverage + weightLoad*c.Load
	score := int(math.Round(clamp(raw, 0, 100)))

	return HealthScore{
		Score: score,
		Grade: gradeFor(score),
		Components: HealthComponents{
			Overdue:  round2(c.Overdue),
			Days:     round2(c.Days),
			Coverage: round2(c.Coverage),
			Load:     round2(c.Load),
		},
	}
}

func gradeFor(score int) Grade {
	switch {
	case score >= 80:
		return GradeHealthy
	case score >= 60:
		return GradeFair
	case score >= 40:
		return GradeAtRisk
	default:
		return GradeCritical
	}
}

// HealthFrom is the usual wiring of Summarize and ForecastInflow into CalculateHealthScore.
func HealthFrom(s Summary, f Forecast, monthlyRevenue float64) HealthScore {
	return CalculateHealthScore(HealthInputs{
		TotalOutstanding:   s.TotalOutstanding,
		OverdueAmount:      s.OverdueAmount,
		AvgDaysOutstanding: s.AvgDaysOutstanding,
		Forecast30:         f.Expected,
		MonthlyRevenue:     monthlyRevenue,
	})
}

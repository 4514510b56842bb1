package models

// IndustryBenchmark holds reference ratios used by the insight engine.
type IndustryBenchmark struct {
	ID                   uint    `gorm:"primaryKey"`
	Industry             string  `gorm:"size:100;uniqueIndex;not null"`
	AvgDaysToPay         float64 `gorm:"not null"`
	OverdueRate          float64 `gorm:"not null"` // share of receivables past due
	PayrollToRevenue     float64 `gorm:"not null"`
	MedianMonthlyRevenue float64
}

// DefaultIndustry is the benchmark row used when an organization's industry has none.
const DefaultIndustry = "general"

package services

import (
	"context"
	"fmt"
	"time"

	"bizportal/internal/cashflow"
	"bizportal/internal/metrics"
	"bizportal/internal/models"
	"bizportal/internal/recommend"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CashflowReport is everything the cash-flow endpoints and the insight engine read.
type CashflowReport struct {
	Summary     cashflow.Summary          `json:"summary"`
	Forecast    cashflow.Forecast         `json:"forecast"`
	Health      cashflow.HealthScore      `json:"health"`
	Revenue30   float64                   `json:"revenue_30d"`
	Histories   map[uint]cashflow.History `json:"-"`
	AvgToPay    float64                   `json:"avg_days_to_pay"`
	GeneratedAt time.Time                 `json:"generated_at"`

	invoices []models.Invoice
}

// LoadCashflow reads the organization's invoices and payments and runs the calculators.
func LoadCashflow(ctx context.Context, db *gorm.DB, orgID uint, now time.Time, horizonDays int) (*CashflowReport, error) {
	var invoices []models.Invoice
	if err := db.WithContext(ctx).
		Preload("Client").
		Where("organization_id = ? AND status <> ?", orgID, models.InvoiceDraft).
		Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("load invoices: %w", err)
	}

	revenue, err := Revenue(ctx, db, orgID, now.AddDate(0, 0, -30), now)
	if err != nil {
		return nil, err
	}

	rows := cashflow.FromModels(invoices)
	histories := cashflow.ClientHistories(rows)
	summary := cashflow.Summarize(rows, now)
	forecast := cashflow.ForecastInflow(rows, histories, now, horizonDays)

	// health always looks at a 30 day window, whatever horizon was asked for
	forecast30 := forecast
	if forecast.HorizonDays != cashflow.DefaultHorizonDays {
		forecast30 = cashflow.ForecastInflow(rows, histories, now, cashflow.DefaultHorizonDays)
	}

	return &CashflowReport{
		Summary:     summary,
		Forecast:    forecast,
		Health:      cashflow.HealthFrom(summary, forecast30, revenue),
		Revenue30:   revenue,
		Histories:   histories,
		AvgToPay:    cashflow.AverageDaysToPay(histories),
		GeneratedAt: now,
		invoices:    invoices,
	}, nil
}

// Revenue sums payments received in [from, to).
func Revenue(ctx context.Context, db *gorm.DB, orgID uint, from, to time.Time) (float64, error) {
	var payments []models.Payment
	if err := db.WithContext(ctx).
		Where("organization_id = ? AND paid_at >= ? AND paid_at < ?", orgID, from, to).
		Find(&payments).Error; err != nil {
		return 0, fmt.Errorf("load payments: %w", err)
	}
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total.InexactFloat64(), nil
}

// RecommendationInputs lists the open invoices the recommender looks at.
func (r *CashflowReport) RecommendationInputs() []recommend.Input {
	inputs := make([]recommend.Input, 0, len(r.invoices))
	for _, inv := range r.invoices {
		if !inv.Status.Open() {
			continue
		}
		inputs = append(inputs, recommend.Input{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.Number,
			ClientName:    inv.Client.Name,
			Outstanding:   inv.Outstanding().InexactFloat64(),
			Currency:      inv.Currency,
			DueDate:       inv.DueDate,
			History:       r.Histories[inv.ClientID],
		})
	}
	return inputs
}

// ClientNames maps client ids of loaded invoices to display names.
func (r *CashflowReport) ClientNames() map[uint]string {
	names := make(map[uint]string)
	for _, inv := range r.invoices {
		names[inv.ClientID] = inv.Client.Name
	}
	return names
}

// Recommendations returns collection advice, asking the model first when useAI is set.
func Recommendations(ctx context.Context, db *gorm.DB, gen recommend.Generator, orgID uint, useAI bool, now time.Time) (recommend.Result, error) {
	report, err := LoadCashflow(ctx, db, orgID, now, cashflow.DefaultHorizonDays)
	if err != nil {
		return recommend.Result{}, err
	}
	inputs := report.RecommendationInputs()

	var res recommend.Result
	if useAI {
		res = recommend.GenerateAIRecommendations(ctx, gen, inputs, now)
		if res.FallbackReason != "" {
			metrics.RecordAIFallback("recommendations")
		}
	} else {
		res = recommend.Result{
			Recommendations: recommend.GenerateRuleBasedRecommendations(inputs, now),
			Source:          recommend.SourceRules,
		}
	}
	metrics.RecordRecommendations(string(res.Source), len(res.Recommendations))
	return res, nil
}

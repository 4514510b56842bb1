package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bizportal/internal/cashflow"
	"bizportal/internal/insights"
	"bizportal/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RefreshInsights regenerates the organization's insights, replacing every
// non-dismissed one in a single transaction.
func RefreshInsights(ctx context.Context, db *gorm.DB, orgID uint, now time.Time) ([]models.BusinessInsight, error) {
	in, err := insightInput(ctx, db, orgID, now)
	if err != nil {
		return nil, err
	}
	generated := insights.Generate(in)

	rows := make([]models.BusinessInsight, 0, len(generated))
	for _, g := range generated {
		data, err := json.Marshal(g.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal insight data: %w", err)
		}
		rows = append(rows, models.BusinessInsight{
			OrganizationID: orgID,
			Category:       string(g.Category),
			Severity:       string(g.Severity),
			Title:          g.Title,
			Summary:        g.Summary,
			Recommendation: g.Recommendation,
			Confidence:     string(g.Confidence),
			Source:         "rules",
			Data:           datatypes.JSON(data),
			GeneratedAt:    now,
		})
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("organization_id = ? AND dismissed_at IS NULL", orgID).
			Delete(&models.BusinessInsight{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("replace insights: %w", err)
	}
	return rows, nil
}

func insightInput(ctx context.Context, db *gorm.DB, orgID uint, now time.Time) (insights.Input, error) {
	report, err := LoadCashflow(ctx, db, orgID, now, cashflow.DefaultHorizonDays)
	if err != nil {
		return insights.Input{}, err
	}
	prevRevenue, err := Revenue(ctx, db, orgID, now.AddDate(0, 0, -60), now.AddDate(0, 0, -30))
	if err != nil {
		return insights.Input{}, err
	}

	var snapshots []models.PayrollSnapshot
	if err := db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("check_date DESC").
		Limit(2).
		Find(&snapshots).Error; err != nil {
		return insights.Input{}, fmt.Errorf("load payroll: %w", err)
	}
	payrolls := make([]insights.Payroll, 0, len(snapshots))
	for _, s := range snapshots {
		payrolls = append(payrolls, insights.Payroll{
			Gross:         s.GrossPay.InexactFloat64(),
			EmployerTaxes: s.EmployerTaxes.InexactFloat64(),
			EmployeeCount: s.EmployeeCount,
		})
	}

	bench, err := benchmarkFor(ctx, db, orgID)
	if err != nil {
		return insights.Input{}, err
	}

	return insights.Input{
		Summary:           report.Summary,
		Forecast:          report.Forecast,
		AvgDaysToPay:      report.AvgToPay,
		Payrolls:          payrolls,
		Revenue30:         report.Revenue30,
		PreviousRevenue30: prevRevenue,
		Benchmark:         bench,
		ClientNames:       report.ClientNames(),
	}, nil
}

// benchmarkFor picks the organization's industry row, falling back to the general one.
func benchmarkFor(ctx context.Context, db *gorm.DB, orgID uint) (*insights.Benchmark, error) {
	var org models.Organization
	if err := db.WithContext(ctx).First(&org, orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	for _, industry := range []string{org.Industry, models.DefaultIndustry} {
		if industry == "" {
			continue
		}
		var b models.IndustryBenchmark
		err := db.WithContext(ctx).Where("industry = ?", industry).First(&b).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &insights.Benchmark{
			Industry:         b.Industry,
			AvgDaysToPay:     b.AvgDaysToPay,
			OverdueRate:      b.OverdueRate,
			PayrollToRevenue: b.PayrollToRevenue,
		}, nil
	}
	return nil, nil
}

// DismissInsight hides an insight; dismissed insights survive regeneration.
func DismissInsight(ctx context.Context, db *gorm.DB, orgID, insightID uint, now time.Time) error {
	res := db.WithContext(ctx).Model(&models.BusinessInsight{}).
		Where("id = ? AND organization_id = ? AND dismissed_at IS NULL", insightID, orgID).
		Update("dismissed_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bizportal/internal/database"
	"bizportal/internal/models"
	"bizportal/internal/payroll"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConnectInput struct {
	AccessToken       string
	ExternalCompanyID string
}

// ConnectIntegration stores credentials for a provider. Only Gusto is implemented;
// accounting providers answer ErrNotSupported.
func ConnectIntegration(ctx context.Context, db *gorm.DB, actor Actor, provider models.IntegrationProvider, in ConnectInput) (*models.Integration, error) {
	if !provider.Valid() {
		return nil, ErrNotFound
	}
	if !provider.Supported() {
		return nil, ErrNotSupported
	}

	integ := models.Integration{
		OrganizationID:    actor.OrganizationID,
		Provider:          provider,
		Status:            models.IntegrationConnected,
		AccessToken:       in.AccessToken,
		ExternalCompanyID: in.ExternalCompanyID,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "access_token", "external_company_id", "last_error", "updated_at", "deleted_at"}),
	}).Create(&integ).Error
	if err != nil {
		return nil, fmt.Errorf("save integration: %w", err)
	}

	database.CreateAuditLog(actor.OrganizationID, actor.userID(), "integration", integ.ID, "connect", string(provider))
	return GetIntegration(ctx, db, actor.OrganizationID, provider)
}

func GetIntegration(ctx context.Context, db *gorm.DB, orgID uint, provider models.IntegrationProvider) (*models.Integration, error) {
	var integ models.Integration
	err := db.WithContext(ctx).
		Where("organization_id = ? AND provider = ?", orgID, provider).
		First(&integ).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &integ, err
}

// DisconnectIntegration drops stored credentials and marks the integration disconnected.
func DisconnectIntegration(ctx context.Context, db *gorm.DB, actor Actor, provider models.IntegrationProvider) error {
	res := db.WithContext(ctx).Model(&models.Integration{}).
		Where("organization_id = ? AND provider = ?", actor.OrganizationID, provider).
		Updates(map[string]any{"status": models.IntegrationDisconnected, "access_token": ""})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	database.CreateAuditLog(actor.OrganizationID, actor.userID(), "integration", 0, "disconnect", string(provider))
	return nil
}

type SyncResult struct {
	Payrolls  int `json:"payrolls"`
	Employees int `json:"employees"`
}

// payrollLookback bounds how far back the first sync reaches.
const payrollLookback = 180 * 24 * time.Hour

// SyncPayroll pulls employees and processed payrolls from the provider and upserts them.
// Errors are also stored on the integration row.
func SyncPayroll(ctx context.Context, db *gorm.DB, newProvider payroll.Factory, orgID uint, now time.Time) (SyncResult, error) {
	integ, err := GetIntegration(ctx, db, orgID, models.ProviderGusto)
	if err != nil {
		return SyncResult{}, err
	}
	if integ.Status == models.IntegrationDisconnected || integ.AccessToken == "" {
		return SyncResult{}, fmt.Errorf("gusto is not connected: %w", ErrInvalidTransition)
	}

	res, err := syncPayroll(ctx, db, newProvider(integ.AccessToken), integ, now)
	updates := map[string]any{"status": models.IntegrationConnected, "last_error": "", "last_synced_at": now}
	if err != nil {
		updates = map[string]any{"status": models.IntegrationError, "last_error": err.Error()}
		slog.ErrorContext(ctx, "payroll sync failed", "error", err, "organization_id", orgID)
	}
	if uerr := db.WithContext(ctx).Model(&models.Integration{}).Where("id = ?", integ.ID).Updates(updates).Error; uerr != nil {
		slog.ErrorContext(ctx, "failed to update integration status", "error", uerr, "integration_id", integ.ID)
	}
	return res, err
}

func syncPayroll(ctx context.Context, db *gorm.DB, p payroll.Provider, integ *models.Integration, now time.Time) (SyncResult, error) {
	var res SyncResult

	employees, err := p.ListEmployees(ctx, integ.ExternalCompanyID)
	if err != nil {
		return res, err
	}
	since := now.Add(-payrollLookback)
	if integ.LastSyncedAt != nil {
		since = integ.LastSyncedAt.AddDate(0, 0, -31)
	}
	payrolls, err := p.ListPayrolls(ctx, integ.ExternalCompanyID, since)
	if err != nil {
		return res, err
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make(map[string]uint, len(employees))
		for _, e := range employees {
			row := models.Employee{
				OrganizationID: integ.OrganizationID,
				ExternalID:     e.ExternalID,
				FirstName:      e.FirstName,
				LastName:       e.LastName,
				Title:          e.Title,
				Department:     e.Department,
				Active:         e.Active,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "organization_id"}, {Name: "external_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "title", "department", "active", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return fmt.Errorf("upsert employee %s: %w", e.ExternalID, err)
			}
			var saved models.Employee
			if err := tx.Where("organization_id = ? AND external_id = ?", integ.OrganizationID, e.ExternalID).First(&saved).Error; err != nil {
				return err
			}
			ids[e.ExternalID] = saved.ID
			res.Employees++
		}

		for _, pr := range payrolls {
			var existing int64
			if err := tx.Model(&models.PayrollSnapshot{}).
				Where("organization_id = ? AND provider = ? AND external_id = ?", integ.OrganizationID, integ.Provider, pr.ExternalID).
				Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				continue
			}

			snap := models.PayrollSnapshot{
				OrganizationID: integ.OrganizationID,
				Provider:       string(integ.Provider),
				ExternalID:     pr.ExternalID,
				PeriodStart:    pr.PeriodStart,
				PeriodEnd:      pr.PeriodEnd,
				CheckDate:      pr.CheckDate,
				GrossPay:       pr.GrossPay,
				NetPay:         pr.NetPay,
				EmployerTaxes:  pr.EmployerTaxes,
				EmployeeCount:  len(pr.Entries),
			}
			for _, en := range pr.Entries {
				snap.Entries = append(snap.Entries, models.PayrollEntry{
					EmployeeID: ids[en.EmployeeExternalID],
					GrossPay:   en.GrossPay,
					NetPay:     en.NetPay,
				})
			}
			if err := tx.Create(&snap).Error; err != nil {
				return fmt.Errorf("save payroll %s: %w", pr.ExternalID, err)
			}
			res.Payrolls++
		}
		return nil
	})
	return res, err
}

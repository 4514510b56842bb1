package services

import (
	"context"
	"errors"
	"fmt"

	"bizportal/internal/database"
	"bizportal/internal/models"

	"gorm.io/gorm"
)

type InvoiceFilter struct {
	Status   models.InvoiceStatus
	ClientID uint
}

// portalClientIDs lists the clients a portal user is linked to.
func portalClientIDs(ctx context.Context, db *gorm.DB, actor Actor) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).Model(&models.Client{}).
		Where("organization_id = ? AND portal_user_id = ?", actor.OrganizationID, actor.UserID).
		Pluck("id", &ids).Error
	return ids, err
}

// scopeForActor narrows a query on a table with client_id to what the actor may see.
func scopeForActor(ctx context.Context, db *gorm.DB, q *gorm.DB, actor Actor) (*gorm.DB, error) {
	q = q.Where("organization_id = ?", actor.OrganizationID)
	if actor.Role != models.RoleClient {
		return q, nil
	}
	ids, err := portalClientIDs(ctx, db, actor)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return q.Where("1 = 0"), nil
	}
	return q.Where("client_id IN ?", ids), nil
}

// ListInvoices returns invoices newest first. Portal users never see drafts.
func ListInvoices(ctx context.Context, db *gorm.DB, actor Actor, f InvoiceFilter) ([]models.Invoice, error) {
	q, err := scopeForActor(ctx, db, db.WithContext(ctx).Preload("Client"), actor)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleClient {
		q = q.Where("status <> ?", models.InvoiceDraft)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}

	var invoices []models.Invoice
	if err := q.Order("issue_date desc, id desc").Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

// GetInvoiceFor is GetInvoice with portal scoping.
func GetInvoiceFor(ctx context.Context, db *gorm.DB, actor Actor, invoiceID uint) (*models.Invoice, error) {
	inv, err := GetInvoice(ctx, db, actor.OrganizationID, invoiceID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleClient {
		cid := inv.ClientID
		ok, err := PortalOwnsClient(ctx, db, actor, &cid)
		if err != nil {
			return nil, err
		}
		if !ok || inv.Status == models.InvoiceDraft {
			return nil, ErrNotFound
		}
	}
	return inv, nil
}

func ListProjects(ctx context.Context, db *gorm.DB, actor Actor) ([]models.WebsiteProject, error) {
	q, err := scopeForActor(ctx, db, db.WithContext(ctx).Preload("Client"), actor)
	if err != nil {
		return nil, err
	}
	var projects []models.WebsiteProject
	if err := q.Order("created_at desc").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func GetProject(ctx context.Context, db *gorm.DB, actor Actor, projectID uint) (*models.WebsiteProject, error) {
	var p models.WebsiteProject
	err := db.WithContext(ctx).
		Preload("Client").
		Preload("ChangeRequests", func(q *gorm.DB) *gorm.DB { return q.Order("created_at desc") }).
		Where("id = ? AND organization_id = ?", projectID, actor.OrganizationID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleClient {
		ok, err := PortalOwnsClient(ctx, db, actor, p.ClientID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotFound
		}
	}
	return &p, nil
}

// DeleteProject soft-deletes a project; only the owner may.
func DeleteProject(ctx context.Context, db *gorm.DB, actor Actor, projectID uint) error {
	if actor.Role != models.RoleOwner {
		return ErrForbidden
	}
	res := db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", projectID, actor.OrganizationID).
		Delete(&models.WebsiteProject{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	database.CreateAuditLog(actor.OrganizationID, actor.userID(), "project", projectID, "delete", "")
	return nil
}

func ListChangeRequests(ctx context.Context, db *gorm.DB, actor Actor, projectID uint) ([]models.ChangeRequest, error) {
	if _, err := GetProject(ctx, db, actor, projectID); err != nil {
		return nil, err
	}
	var out []models.ChangeRequest
	err := db.WithContext(ctx).
		Where("organization_id = ? AND project_id = ?", actor.OrganizationID, projectID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

func ListInsights(ctx context.Context, db *gorm.DB, orgID uint, includeDismissed bool) ([]models.BusinessInsight, error) {
	q := db.WithContext(ctx).Where("organization_id = ?", orgID)
	if !includeDismissed {
		q = q.Where("dismissed_at IS NULL")
	}
	var out []models.BusinessInsight
	err := q.Order("generated_at desc, id asc").Find(&out).Error
	return out, err
}

func ListIntegrations(ctx context.Context, db *gorm.DB, orgID uint) ([]models.Integration, error) {
	var out []models.Integration
	err := db.WithContext(ctx).Where("organization_id = ?", orgID).Order("provider asc").Find(&out).Error
	return out, err
}

func ListAuditLogs(ctx context.Context, db *gorm.DB, orgID uint, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	var logs []models.AuditLog
	err := db.WithContext(ctx).
		Preload("User").
		Where("organization_id = ?", orgID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// GetSubscription returns nil without error for organizations on the free plan.
func GetSubscription(ctx context.Context, db *gorm.DB, orgID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := db.WithContext(ctx).Where("organization_id = ?", orgID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func GetOrganization(ctx context.Context, db *gorm.DB, orgID uint) (*models.Organization, error) {
	var org models.Organization
	err := db.WithContext(ctx).First(&org, orgID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// OrganizationIDs lists every tenant, for background jobs.
func OrganizationIDs(ctx context.Context, db *gorm.DB) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).Model(&models.Organization{}).Order("id asc").Pluck("id", &ids).Error
	return ids, err
}

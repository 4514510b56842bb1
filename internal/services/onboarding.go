package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bizportal/internal/database"
	"bizportal/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrganizationInput struct {
	Name     string
	Industry string
}

// EnsureOrganization returns the user's organization, creating it (and making the
// user its owner) when the user has none. It must run inside tx so that callers can
// create dependent rows atomically.
func EnsureOrganization(tx *gorm.DB, userID uint, in OrganizationInput) (*models.Organization, bool, error) {
	var user models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}

	if user.OrganizationID != nil {
		var org models.Organization
		if err := tx.First(&org, *user.OrganizationID).Error; err != nil {
			return nil, false, err
		}
		return &org, false, nil
	}
	if user.Role == models.RoleClient {
		return nil, false, ErrForbidden
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = defaultOrgName(user)
	}
	slug, err := database.UniqueSlug(tx, name)
	if err != nil {
		return nil, false, err
	}
	industry := strings.ToLower(strings.TrimSpace(in.Industry))
	if industry == "" {
		industry = models.DefaultIndustry
	}

	org := models.Organization{Name: name, Slug: slug, Industry: industry, Plan: models.PlanFree}
	if err := tx.Create(&org).Error; err != nil {
		return nil, false, fmt.Errorf("create organization: %w", err)
	}
	if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]any{"organization_id": org.ID, "role": models.RoleOwner}).Error; err != nil {
		return nil, false, err
	}
	database.WriteAuditLog(tx, org.ID, &user.ID, "organization", org.ID, "create", org.Name)
	return &org, true, nil
}

func defaultOrgName(u models.User) string {
	if u.Name != "" {
		return u.Name + "'s workspace"
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at] + "'s workspace"
	}
	return "My workspace"
}

// CreateOrganization is explicit onboarding.
func CreateOrganization(ctx context.Context, db *gorm.DB, userID uint, in OrganizationInput) (*models.Organization, bool, error) {
	var (
		org     *models.Organization
		created bool
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		org, created, err = EnsureOrganization(tx, userID, in)
		return err
	})
	return org, created, err
}

type ProjectInput struct {
	Name             string
	Domain           string
	Description      string
	ClientID         *uint
	Budget           decimal.Decimal
	StartDate        *time.Time
	LaunchDate       *time.Time
	OrganizationName string // used only when the organization has to be created
}

// CreateProject stores a project, creating the user's organization first when needed.
// Both rows are written in one transaction.
func CreateProject(ctx context.Context, db *gorm.DB, userID uint, in ProjectInput) (*models.WebsiteProject, error) {
	var project models.WebsiteProject
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, _, err := EnsureOrganization(tx, userID, OrganizationInput{Name: in.OrganizationName})
		if err != nil {
			return err
		}

		if in.ClientID != nil {
			var n int64
			if err := tx.Model(&models.Client{}).
				Where("id = ? AND organization_id = ?", *in.ClientID, org.ID).
				Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("client %d: %w", *in.ClientID, ErrNotFound)
			}
		}

		project = models.WebsiteProject{
			OrganizationID: org.ID,
			ClientID:       in.ClientID,
			Name:           in.Name,
			Domain:         in.Domain,
			Description:    in.Description,
			Status:         models.ProjectPlanning,
			Budget:         in.Budget,
			StartDate:      in.StartDate,
			LaunchDate:     in.LaunchDate,
		}
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		uid := userID
		database.WriteAuditLog(tx, org.ID, &uid, "project", project.ID, "create", project.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// projectProgress is the default completion shown for each stage.
var projectProgress = map[models.ProjectStatus]int{
	models.ProjectPlanning:    5,
	models.ProjectDesign:      25,
	models.ProjectDevelopment: 50,
	models.ProjectReview:      80,
	models.ProjectLaunched:    100,
	models.ProjectMaintenance: 100,
}

// ChangeProjectStatus moves a project along its stages and updates progress.
func ChangeProjectStatus(ctx context.Context, db *gorm.DB, actor Actor, projectID uint, next models.ProjectStatus) (*models.WebsiteProject, error) {
	var p models.WebsiteProject
	if err := db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", projectID, actor.OrganizationID).
		First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !models.CanChangeProjectStatus(actor.Role, p.Status, next) {
		return nil, fmt.Errorf("%s -> %s: %w", p.Status, next, ErrInvalidTransition)
	}

	prev := p.Status
	updates := map[string]any{"status": next, "progress": projectProgress[next]}
	if next == models.ProjectLaunched && p.LaunchDate == nil {
		now := time.Now().UTC()
		updates["launch_date"] = now
		p.LaunchDate = &now
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.WebsiteProject{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
			return err
		}
		database.WriteAuditLog(tx, actor.OrganizationID, actor.userID(), "project", p.ID, "status_change",
			fmt.Sprintf("%s -> %s", prev, next))
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.Status = next
	p.Progress = projectProgress[next]
	return &p, nil
}

type ChangeRequestInput struct {
	Title          string
	Description    string
	Priority       models.ChangeRequestPriority
	EstimatedHours float64
	Cost           decimal.Decimal
}

// CreateChangeRequest files a request against a project of the actor's organization.
// Portal users may only file against projects of their own client.
func CreateChangeRequest(ctx context.Context, db *gorm.DB, actor Actor, projectID uint, in ChangeRequestInput) (*models.ChangeRequest, error) {
	var p models.WebsiteProject
	if err := db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", projectID, actor.OrganizationID).
		First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
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
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}

	cr := models.ChangeRequest{
		OrganizationID: actor.OrganizationID,
		ProjectID:      p.ID,
		RequestedByID:  actor.UserID,
		Title:          in.Title,
		Description:    in.Description,
		Priority:       in.Priority,
		Status:         models.ChangeSubmitted,
		EstimatedHours: in.EstimatedHours,
		Cost:           in.Cost,
	}
	if err := db.WithContext(ctx).Create(&cr).Error; err != nil {
		return nil, err
	}
	database.CreateAuditLog(actor.OrganizationID, actor.userID(), "change_request", cr.ID, "create", cr.Title)
	return &cr, nil
}

// ChangeRequestStatus moves a change request; only managers may.
func ChangeRequestStatus(ctx context.Context, db *gorm.DB, actor Actor, requestID uint, next models.ChangeRequestStatus) (*models.ChangeRequest, error) {
	var cr models.ChangeRequest
	if err := db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", requestID, actor.OrganizationID).
		First(&cr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !actor.Role.IsManager() {
		return nil, ErrForbidden
	}
	if !models.CanChangeRequestStatus(actor.Role, cr.Status, next) {
		return nil, fmt.Errorf("%s -> %s: %w", cr.Status, next, ErrInvalidTransition)
	}

	prev := cr.Status
	if err := db.WithContext(ctx).Model(&models.ChangeRequest{}).
		Where("id = ? AND status = ?", cr.ID, prev).
		Update("status", next).Error; err != nil {
		return nil, err
	}
	database.CreateAuditLog(actor.OrganizationID, actor.userID(), "change_request", cr.ID, "status_change",
		fmt.Sprintf("%s -> %s", prev, next))
	cr.Status = next
	return &cr, nil
}

// PortalOwnsClient reports whether a portal user is linked to the given client.
func PortalOwnsClient(ctx context.Context, db *gorm.DB, actor Actor, clientID *uint) (bool, error) {
	if clientID == nil {
		return false, nil
	}
	var n int64
	err := db.WithContext(ctx).Model(&models.Client{}).
		Where("id = ? AND organization_id = ? AND portal_user_id = ?", *clientID, actor.OrganizationID, actor.UserID).
		Count(&n).Error
	return n > 0, err
}

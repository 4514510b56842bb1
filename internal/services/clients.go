package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bizportal/internal/database"
	"bizportal/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type ClientInput struct {
	Name    string
	Email   string
	Phone   string
	Company string
	Notes   string
}

func (in ClientInput) apply(c *models.Client) {
	c.Name = strings.TrimSpace(in.Name)
	c.Email = normalizeEmail(in.Email)
	c.Phone = strings.TrimSpace(in.Phone)
	c.Company = strings.TrimSpace(in.Company)
	c.Notes = strings.TrimSpace(in.Notes)
}

func ListClients(ctx context.Context, db *gorm.DB, orgID uint) ([]models.Client, error) {
	var clients []models.Client
	err := db.WithContext(ctx).Where("organization_id = ?", orgID).Order("name asc").Find(&clients).Error
	return clients, err
}

func GetClient(ctx context.Context, db *gorm.DB, orgID, clientID uint) (*models.Client, error) {
	var client models.Client
	err := db.WithContext(ctx).Where("id = ? AND organization_id = ?", clientID, orgID).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func CreateClient(ctx context.Context, db *gorm.DB, actor Actor, in ClientInput) (*models.Client, error) {
	if actor.Role == models.RoleClient {
		return nil, ErrForbidden
	}
	client := models.Client{OrganizationID: actor.OrganizationID}
	in.apply(&client)

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&client).Error; err != nil {
			return err
		}
		database.WriteAuditLog(tx, actor.OrganizationID, actor.userID(), "client", client.ID, "create", client.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &client, nil
}

func UpdateClient(ctx context.Context, db *gorm.DB, actor Actor, clientID uint, in ClientInput) (*models.Client, error) {
	if actor.Role == models.RoleClient {
		return nil, ErrForbidden
	}
	client, err := GetClient(ctx, db, actor.OrganizationID, clientID)
	if err != nil {
		return nil, err
	}
	in.apply(client)

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(client).Error; err != nil {
			return err
		}
		database.WriteAuditLog(tx, actor.OrganizationID, actor.userID(), "client", client.ID, "update", client.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return client, nil
}

// CreatePortalUser gives a client a login that only sees its own invoices and projects.
func CreatePortalUser(ctx context.Context, db *gorm.DB, actor Actor, clientID uint, email, password string) (*models.User, error) {
	if !actor.Role.IsManager() {
		return nil, ErrForbidden
	}
	client, err := GetClient(ctx, db, actor.OrganizationID, clientID)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		OrganizationID: &actor.OrganizationID,
		Email:          normalizeEmail(email),
		Name:           client.Name,
		PasswordHash:   string(hash),
		Role:           models.RoleClient,
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Client{}).Where("id = ?", client.ID).Update("portal_user_id", user.ID).Error; err != nil {
			return err
		}
		database.WriteAuditLog(tx, actor.OrganizationID, actor.userID(), "client", client.ID, "portal_access", user.Email)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bizportal/internal/auth"
	"bizportal/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterUser creates an account without an organization; onboarding attaches one
// and promotes the user to owner.
func RegisterUser(ctx context.Context, db *gorm.DB, in RegisterInput) (*models.User, error) {
	email := normalizeEmail(in.Email)

	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		Role:         models.RoleMember,
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Authenticate checks a password login. OAuth-only accounts have no hash and never match.
func Authenticate(ctx context.Context, db *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// UpsertOAuthUser finds the user by provider id, then by email (linking the
// identity), and creates a new account otherwise.
func UpsertOAuthUser(ctx context.Context, db *gorm.DB, id auth.Identity) (*models.User, error) {
	email := normalizeEmail(id.Email)
	var user models.User

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("workos_id = ?", id.ProviderID).First(&user).Error
		if err == nil {
			if user.Email != email && email != "" {
				return tx.Model(&user).Update("email", email).Error
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		err = tx.Where("email = ?", email).First(&user).Error
		if err == nil {
			return tx.Model(&user).Update("workos_id", id.ProviderID).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		providerID := id.ProviderID
		user = models.User{Email: email, Name: id.Name, Role: models.RoleMember, WorkOSID: &providerID}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, fmt.Errorf("upsert oauth user: %w", err)
	}
	return &user, nil
}

func GetUser(ctx context.Context, db *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Preload("Organization").First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

package database

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bizportal/internal/config"
	"bizportal/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultBenchmarks are reference figures for small service businesses.
var DefaultBenchmarks = []models.IndustryBenchmark{
	{Industry: models.DefaultIndustry, AvgDaysToPay: 32, OverdueRate: 0.22, PayrollToRevenue: 0.32, MedianMonthlyRevenue: 45000},
	{Industry: "agency", AvgDaysToPay: 38, OverdueRate: 0.27, PayrollToRevenue: 0.45, MedianMonthlyRevenue: 60000},
	{Industry: "consulting", AvgDaysToPay: 35, OverdueRate: 0.24, PayrollToRevenue: 0.40, MedianMonthlyRevenue: 55000},
	{Industry: "construction", AvgDaysToPay: 52, OverdueRate: 0.35, PayrollToRevenue: 0.30, MedianMonthlyRevenue: 90000},
	{Industry: "retail", AvgDaysToPay: 18, OverdueRate: 0.12, PayrollToRevenue: 0.15, MedianMonthlyRevenue: 70000},
	{Industry: "software", AvgDaysToPay: 30, OverdueRate: 0.18, PayrollToRevenue: 0.50, MedianMonthlyRevenue: 80000},
}

// Seed inserts benchmarks and the default owner. Safe to run on every start.
func Seed(db *gorm.DB, cfg config.SeedConfig) error {
	if err := SeedBenchmarks(db); err != nil {
		return err
	}
	return createDefaultOwner(db, cfg)
}

func SeedBenchmarks(db *gorm.DB) error {
	for _, b := range DefaultBenchmarks {
		row := b
		if err := db.Where(models.IndustryBenchmark{Industry: b.Industry}).FirstOrCreate(&row).Error; err != nil {
			return fmt.Errorf("seed benchmark %s: %w", b.Industry, err)
		}
	}
	return nil
}

// createDefaultOwner makes an owner and their organization when no owner exists yet.
func createDefaultOwner(db *gorm.DB, cfg config.SeedConfig) error {
	if cfg.OwnerEmail == "" || cfg.OwnerPassword == "" {
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleOwner).Count(&count).Error; err != nil {
		return fmt.Errorf("check owner: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.OwnerPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash owner password: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		org := models.Organization{
			Name:     cfg.OrgName,
			Slug:     Slugify(cfg.OrgName),
			Industry: models.DefaultIndustry,
			Plan:     models.PlanFree,
		}
		if err := tx.Create(&org).Error; err != nil {
			return fmt.Errorf("create organization: %w", err)
		}

		owner := models.User{
			OrganizationID: &org.ID,
			Email:          strings.ToLower(cfg.OwnerEmail),
			Name:           "Owner",
			PasswordHash:   string(hash),
			Role:           models.RoleOwner,
		}
		if err := tx.Create(&owner).Error; err != nil {
			return fmt.Errorf("create owner: %w", err)
		}

		slog.Info("created default owner", "email", owner.Email, "organization", org.Name)
		return nil
	})
}

// Slugify lowercases and joins alphanumeric runs with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		s = "org"
	}
	return s
}

// UniqueSlug appends a counter until no organization uses the slug.
func UniqueSlug(db *gorm.DB, name string) (string, error) {
	base := Slugify(name)
	slug := base
	for i := 2; ; i++ {
		var org models.Organization
		err := db.Unscoped().Where("slug = ?", slug).First(&org).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return slug, nil
		}
		if err != nil {
			return "", err
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

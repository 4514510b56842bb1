package database_test

import (
	"testing"

	"bizportal/internal/config"
	"bizportal/internal/database"
	"bizportal/internal/database/dbtest"
	"bizportal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSeedIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	cfg := config.SeedConfig{OwnerEmail: "Owner@Example.com", OwnerPassword: "secret-pass", OrgName: "Acme Web Studio"}

	require.NoError(t, database.Seed(db, cfg))
	require.NoError(t, database.Seed(db, cfg))

	var benchmarks int64
	db.Model(&models.IndustryBenchmark{}).Count(&benchmarks)
	assert.Equal(t, int64(len(database.DefaultBenchmarks)), benchmarks)

	var owners []models.User
	require.NoError(t, db.Where("role = ?", models.RoleOwner).Find(&owners).Error)
	require.Len(t, owners, 1)
	assert.Equal(t, "owner@example.com", owners[0].Email)
	require.NotNil(t, owners[0].OrganizationID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(owners[0].PasswordHash), []byte("secret-pass")))

	var org models.Organization
	require.NoError(t, db.First(&org, *owners[0].OrganizationID).Error)
	assert.Equal(t, "acme-web-studio", org.Slug)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "acme-co", database.Slugify("  Acme & Co. "))
	assert.Equal(t, "org", database.Slugify("!!!"))
}

func TestUniqueSlug(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, db.Create(&models.Organization{Name: "Acme", Slug: "acme"}).Error)

	slug, err := database.UniqueSlug(db, "ACME")
	require.NoError(t, err)
	assert.Equal(t, "acme-2", slug)
}

func TestCreateAuditLog(t *testing.T) {
	db := dbtest.Open(t)
	org := models.Organization{Name: "Acme", Slug: "acme"}
	require.NoError(t, db.Create(&org).Error)

	database.CreateAuditLog(org.ID, nil, "invoice", 7, "status_change", "sent -> overdue")

	var logs []models.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].UserID)
	assert.Equal(t, "status_change", logs[0].Action)
}

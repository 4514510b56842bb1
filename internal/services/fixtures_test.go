package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"bizportal/internal/database/dbtest"
	"bizportal/internal/mailer"
	"bizportal/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db     *gorm.DB
	org    models.Organization
	owner  models.User
	member models.User
	client models.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)

	f := &fixture{db: db}
	f.org = models.Organization{Name: "Acme", Slug: "acme", Industry: models.DefaultIndustry, Plan: models.PlanFree}
	require.NoError(t, db.Create(&f.org).Error)

	f.owner = models.User{OrganizationID: &f.org.ID, Email: "owner@acme.test", Role: models.RoleOwner}
	f.member = models.User{OrganizationID: &f.org.ID, Email: "member@acme.test", Role: models.RoleMember}
	require.NoError(t, db.Create(&f.owner).Error)
	require.NoError(t, db.Create(&f.member).Error)

	f.client = models.Client{OrganizationID: f.org.ID, Name: "Globex", Email: "ap@globex.test"}
	require.NoError(t, db.Create(&f.client).Error)
	return f
}

func (f *fixture) ownerActor() Actor {
	return Actor{UserID: f.owner.ID, OrganizationID: f.org.ID, Role: models.RoleOwner}
}

func (f *fixture) memberActor() Actor {
	return Actor{UserID: f.member.ID, OrganizationID: f.org.ID, Role: models.RoleMember}
}

func (f *fixture) invoice(t *testing.T, number string, amount int64, status models.InvoiceStatus, issue, due time.Time) models.Invoice {
	t.Helper()
	inv := models.Invoice{
		OrganizationID: f.org.ID,
		ClientID:       f.client.ID,
		Number:         number,
		Amount:         decimal.NewFromInt(amount),
		AmountPaid:     decimal.Zero,
		Currency:       "USD",
		Status:         status,
		IssueDate:      issue,
		DueDate:        due,
	}
	require.NoError(t, f.db.Create(&inv).Error)
	return inv
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

package billing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"bizportal/internal/config"
	"bizportal/internal/database/dbtest"
	"bizportal/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
	"gorm.io/gorm"
)

const testSecret = "whsec_test"

var stripeCfg = config.StripeConfig{
	SecretKey:     "sk_test",
	WebhookSecret: testSecret,
	PriceStarter:  "price_starter",
	PricePro:      "price_pro",
}

func signedEvent(t *testing.T, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_" + eventType,
		"object":      "event",
		"type":        eventType,
		"created":     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).Unix(),
		"api_version": "2023-10-16",
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testSecret})
	return signed.Payload, signed.Header
}

func setup(t *testing.T) (*gorm.DB, models.Organization, *Processor) {
	db := dbtest.Open(t)
	org := models.Organization{Name: "Acme", Slug: "acme", Plan: models.PlanFree}
	require.NoError(t, db.Create(&org).Error)
	return db, org, &Processor{DB: db, Cfg: stripeCfg}
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	payload, _ := signedEvent(t, "payment_intent.succeeded", map[string]any{"id": "pi_1"})
	_, err := ParseWebhook(payload, "t=1,v1=deadbeef", testSecret)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = ParseWebhook(payload, "", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPaymentIntentRecordsInvoicePaymentOnce(t *testing.T) {
	db, org, p := setup(t)
	client := models.Client{OrganizationID: org.ID, Name: "Globex"}
	require.NoError(t, db.Create(&client).Error)
	inv := models.Invoice{
		OrganizationID: org.ID, ClientID: client.ID, Number: "INV-1",
		Amount: decimal.NewFromInt(120), AmountPaid: decimal.Zero, Currency: "USD",
		Status: models.InvoiceSent, IssueDate: time.Now().UTC(), DueDate: time.Now().UTC().AddDate(0, 0, 30),
	}
	require.NoError(t, db.Create(&inv).Error)

	payload, header := signedEvent(t, "payment_intent.succeeded", map[string]any{
		"id":              "pi_123",
		"object":          "payment_intent",
		"amount":          12000,
		"amount_received": 12000,
		"currency":        "usd",
		"metadata":        map[string]string{"invoice_id": itoa(inv.ID), "organization_id": itoa(org.ID)},
	})
	event, err := ParseWebhook(payload, header, testSecret)
	require.NoError(t, err)

	outcome, err := p.Handle(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	outcome, err = p.Handle(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	var stored models.Invoice
	require.NoError(t, db.First(&stored, inv.ID).Error)
	assert.Equal(t, models.InvoicePaid, stored.Status)
	assert.True(t, stored.AmountPaid.Equal(decimal.NewFromInt(120)))

	var payments int64
	db.Model(&models.Payment{}).Count(&payments)
	assert.Equal(t, int64(1), payments)
}

func TestPaymentForSettledInvoiceIsRejectedWithoutRetry(t *testing.T) {
	db, org, p := setup(t)
	client := models.Client{OrganizationID: org.ID, Name: "Globex"}
	require.NoError(t, db.Create(&client).Error)
	due := time.Now().UTC().AddDate(0, 0, 30)

	paid := models.Invoice{
		OrganizationID: org.ID, ClientID: client.ID, Number: "INV-1",
		Amount: decimal.NewFromInt(120), AmountPaid: decimal.NewFromInt(120), Currency: "USD",
		Status: models.InvoicePaid, IssueDate: time.Now().UTC(), DueDate: due,
	}
	partial := models.Invoice{
		OrganizationID: org.ID, ClientID: client.ID, Number: "INV-2",
		Amount: decimal.NewFromInt(100), AmountPaid: decimal.NewFromInt(80), Currency: "USD",
		Status: models.InvoicePartial, IssueDate: time.Now().UTC(), DueDate: due,
	}
	require.NoError(t, db.Create(&paid).Error)
	require.NoError(t, db.Create(&partial).Error)

	for i, inv := range []models.Invoice{paid, partial} {
		payload, header := signedEvent(t, "payment_intent.succeeded", map[string]any{
			"id":              "pi_late_" + itoa(uint(i+1)),
			"object":          "payment_intent",
			"amount":          12000,
			"amount_received": 12000,
			"currency":        "usd",
			"metadata":        map[string]string{"invoice_id": itoa(inv.ID), "organization_id": itoa(org.ID)},
		})
		event, err := ParseWebhook(payload, header, testSecret)
		require.NoError(t, err)

		outcome, err := p.Handle(context.Background(), event)
		require.NoError(t, err, inv.Number)
		assert.Equal(t, OutcomeRejected, outcome, inv.Number)
	}

	var payments, unapplied int64
	db.Model(&models.Payment{}).Count(&payments)
	db.Model(&models.AuditLog{}).Where("action = ?", "payment_unapplied").Count(&unapplied)
	assert.Zero(t, payments)
	assert.Equal(t, int64(2), unapplied)

	var stored models.Invoice
	require.NoError(t, db.First(&stored, partial.ID).Error)
	assert.True(t, stored.AmountPaid.Equal(decimal.NewFromInt(80)))
}

func TestSubscriptionLifecycle(t *testing.T) {
	db, org, p := setup(t)
	ctx := context.Background()

	payload, header := signedEvent(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_1",
		"object":              "checkout.session",
		"mode":                "subscription",
		"client_reference_id": itoa(org.ID),
		"customer":            "cus_1",
		"subscription":        "sub_1",
		"metadata":            map[string]string{"plan": "pro"},
	})
	event, err := ParseWebhook(payload, header, testSecret)
	require.NoError(t, err)
	_, err = p.Handle(ctx, event)
	require.NoError(t, err)

	var reloaded models.Organization
	require.NoError(t, db.First(&reloaded, org.ID).Error)
	assert.Equal(t, models.PlanPro, reloaded.Plan)
	assert.Equal(t, "cus_1", reloaded.StripeCustomerID)

	payload, header = signedEvent(t, "invoice.payment_failed", map[string]any{
		"id": "in_1", "object": "invoice", "subscription": "sub_1",
	})
	event, err = ParseWebhook(payload, header, testSecret)
	require.NoError(t, err)
	_, err = p.Handle(ctx, event)
	require.NoError(t, err)

	var sub models.Subscription
	require.NoError(t, db.Where("organization_id = ?", org.ID).First(&sub).Error)
	assert.Equal(t, models.SubscriptionPastDue, sub.Status)

	payload, header = signedEvent(t, "customer.subscription.deleted", map[string]any{
		"id": "sub_1", "object": "subscription", "status": "canceled",
		"items": map[string]any{"object": "list", "data": []map[string]any{{"id": "si_1", "price": map[string]any{"id": "price_pro"}}}},
	})
	event, err = ParseWebhook(payload, header, testSecret)
	require.NoError(t, err)
	_, err = p.Handle(ctx, event)
	require.NoError(t, err)

	require.NoError(t, db.Where("organization_id = ?", org.ID).First(&sub).Error)
	assert.Equal(t, models.SubscriptionCanceled, sub.Status)
	require.NoError(t, db.First(&reloaded, org.ID).Error)
	assert.Equal(t, models.PlanFree, reloaded.Plan)
}

func TestUnknownEventIgnored(t *testing.T) {
	_, _, p := setup(t)
	payload, header := signedEvent(t, "customer.created", map[string]any{"id": "cus_9", "object": "customer"})
	event, err := ParseWebhook(payload, header, testSecret)
	require.NoError(t, err)

	outcome, err := p.Handle(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
}

func TestPlanPriceMapping(t *testing.T) {
	price, err := PriceFor(stripeCfg, models.PlanPro)
	require.NoError(t, err)
	assert.Equal(t, "price_pro", price)
	_, err = PriceFor(stripeCfg, models.PlanFree)
	assert.ErrorIs(t, err, ErrUnknownPlan)

	assert.Equal(t, models.PlanStarter, PlanForPrice(stripeCfg, "price_starter"))
	assert.Equal(t, models.PlanFree, PlanForPrice(stripeCfg, "price_other"))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(12050), ToMinorUnits(decimal.RequireFromString("120.50")))
	assert.True(t, FromMinorUnits(999).Equal(decimal.RequireFromString("9.99")))
}

func itoa(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"bizportal/internal/mailer"
	"bizportal/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInvoiceNumbersSequentially(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := InvoiceInput{ClientID: f.client.ID, Amount: decimal.NewFromInt(100), IssueDate: now, DueDate: now.AddDate(0, 0, 30)}
	a, err := CreateInvoice(ctx, f.db, f.memberActor(), in)
	require.NoError(t, err)
	b, err := CreateInvoice(ctx, f.db, f.memberActor(), in)
	require.NoError(t, err)

	assert.Equal(t, "INV-0001", a.Number)
	assert.Equal(t, "INV-0002", b.Number)
	assert.Equal(t, models.InvoiceDraft, a.Status)
	assert.Equal(t, "USD", a.Currency)
}

func TestCreateInvoiceRejectsForeignClient(t *testing.T) {
	f := newFixture(t)
	other := models.Client{OrganizationID: f.org.ID + 100, Name: "Elsewhere"}
	require.NoError(t, f.db.Create(&other).Error)

	_, err := CreateInvoice(context.Background(), f.db, f.ownerActor(), InvoiceInput{
		ClientID: other.ID, Amount: decimal.NewFromInt(5), IssueDate: now, DueDate: now,
	})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = CreateInvoice(context.Background(), f.db, f.ownerActor(), InvoiceInput{ClientID: f.client.ID, Amount: decimal.Zero})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestChangeInvoiceStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t, "INV-1", 500, models.InvoiceSent, now.AddDate(0, 0, -40), now.AddDate(0, 0, -10))

	_, err := ChangeInvoiceStatus(ctx, f.db, f.memberActor(), inv.ID, models.InvoiceWrittenOff)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = ChangeInvoiceStatus(ctx, f.db, f.memberActor(), inv.ID, models.InvoicePaid)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := ChangeInvoiceStatus(ctx, f.db, f.ownerActor(), inv.ID, models.InvoiceWrittenOff)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceWrittenOff, got.Status)

	_, err = ChangeInvoiceStatus(ctx, f.db, f.ownerActor(), inv.ID, models.InvoiceSent)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	var logs []models.AuditLog
	require.NoError(t, f.db.Where("entity = ? AND entity_id = ?", "invoice", inv.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "sent -> written_off", logs[0].Details)
}

func TestChangeInvoiceStatusOtherTenant(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice(t, "INV-1", 500, models.InvoiceSent, now, now)

	actor := f.ownerActor()
	actor.OrganizationID++
	_, err := ChangeInvoiceStatus(context.Background(), f.db, actor, inv.ID, models.InvoiceViewed)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t, "INV-1", 500, models.InvoiceSent, now.AddDate(0, 0, -5), now.AddDate(0, 0, 25))

	_, got, err := RecordPayment(ctx, f.db, f.memberActor(), inv.ID, PaymentInput{
		Amount: decimal.NewFromInt(200), Method: models.MethodBankTransfer, PaidAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePartial, got.Status)
	assert.True(t, got.AmountPaid.Equal(decimal.NewFromInt(200)))

	_, _, err = RecordPayment(ctx, f.db, f.memberActor(), inv.ID, PaymentInput{
		Amount: decimal.NewFromInt(301), Method: models.MethodCash, PaidAt: now,
	})
	assert.ErrorIs(t, err, ErrOverpayment)

	_, got, err = RecordPayment(ctx, f.db, f.memberActor(), inv.ID, PaymentInput{
		Amount: decimal.NewFromInt(300), Method: models.MethodCheck, PaidAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, got.Status)
	require.NotNil(t, got.PaidAt)

	_, _, err = RecordPayment(ctx, f.db, f.memberActor(), inv.ID, PaymentInput{
		Amount: decimal.NewFromInt(1), Method: models.MethodCash, PaidAt: now,
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	var stored models.Invoice
	require.NoError(t, f.db.First(&stored, inv.ID).Error)
	assert.Equal(t, models.InvoicePaid, stored.Status)
	assert.True(t, stored.AmountPaid.Equal(decimal.NewFromInt(500)))

	var payments int64
	f.db.Model(&models.Payment{}).Where("invoice_id = ?", inv.ID).Count(&payments)
	assert.Equal(t, int64(2), payments)
}

func TestRecordPaymentIsIdempotentByExternalID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t, "INV-1", 500, models.InvoiceSent, now, now.AddDate(0, 0, 30))

	in := PaymentInput{Amount: decimal.NewFromInt(100), Method: models.MethodStripe, PaidAt: now, ExternalID: "pi_123"}
	_, _, err := RecordPayment(ctx, f.db, Actor{OrganizationID: f.org.ID}, inv.ID, in)
	require.NoError(t, err)
	_, _, err = RecordPayment(ctx, f.db, Actor{OrganizationID: f.org.ID}, inv.ID, in)
	assert.ErrorIs(t, err, ErrDuplicatePayment)

	var stored models.Invoice
	require.NoError(t, f.db.First(&stored, inv.ID).Error)
	assert.True(t, stored.AmountPaid.Equal(decimal.NewFromInt(100)))
}

func TestMarkOverdueInvoices(t *testing.T) {
	f := newFixture(t)
	late := f.invoice(t, "INV-1", 100, models.InvoiceSent, now.AddDate(0, 0, -40), now.AddDate(0, 0, -10))
	partial := f.invoice(t, "INV-2", 100, models.InvoicePartial, now.AddDate(0, 0, -40), now.AddDate(0, 0, -1))
	notYet := f.invoice(t, "INV-3", 100, models.InvoiceSent, now.AddDate(0, 0, -5), now.AddDate(0, 0, 3))
	draft := f.invoice(t, "INV-4", 100, models.InvoiceDraft, now.AddDate(0, 0, -40), now.AddDate(0, 0, -10))

	n, err := MarkOverdueInvoices(context.Background(), f.db, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	status := func(id uint) models.InvoiceStatus {
		var inv models.Invoice
		require.NoError(t, f.db.First(&inv, id).Error)
		return inv.Status
	}
	assert.Equal(t, models.InvoiceOverdue, status(late.ID))
	assert.Equal(t, models.InvoiceOverdue, status(partial.ID))
	assert.Equal(t, models.InvoiceSent, status(notYet.ID))
	assert.Equal(t, models.InvoiceDraft, status(draft.ID))

	n, err = MarkOverdueInvoices(context.Background(), f.db, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSendInvoiceMovesDraftToSent(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice(t, "INV-9", 250, models.InvoiceDraft, now, now.AddDate(0, 0, 30))
	m := &recordingMailer{}

	got, err := SendInvoice(context.Background(), f.db, m, f.memberActor(), inv.ID, "https://pay.test/abc")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceSent, got.Status)

	require.Len(t, m.sent, 1)
	assert.Equal(t, []string{"ap@globex.test"}, m.sent[0].To)
	assert.Contains(t, m.sent[0].HTML, "https://pay.test/abc")
}

type mailerFunc func(ctx context.Context, msg mailer.Message) error

func (f mailerFunc) Send(ctx context.Context, msg mailer.Message) error { return f(ctx, msg) }

func TestSendInvoiceMarksSentBeforeEmailing(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice(t, "INV-9", 250, models.InvoiceDraft, now, now.AddDate(0, 0, 30))

	var statusAtSend models.InvoiceStatus
	m := mailerFunc(func(ctx context.Context, msg mailer.Message) error {
		var stored models.Invoice
		require.NoError(t, f.db.First(&stored, inv.ID).Error)
		statusAtSend = stored.Status
		return nil
	})

	_, err := SendInvoice(context.Background(), f.db, m, f.memberActor(), inv.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceSent, statusAtSend)
}

func TestSendInvoiceMailFailureIsAudited(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice(t, "INV-9", 250, models.InvoiceDraft, now, now.AddDate(0, 0, 30))
	m := &recordingMailer{err: errors.New("smtp down")}

	_, err := SendInvoice(context.Background(), f.db, m, f.memberActor(), inv.ID, "")
	require.Error(t, err)

	var stored models.Invoice
	require.NoError(t, f.db.First(&stored, inv.ID).Error)
	assert.Equal(t, models.InvoiceSent, stored.Status)

	var failures int64
	f.db.Model(&models.AuditLog{}).Where("entity_id = ? AND action = ?", inv.ID, "send_failed").Count(&failures)
	assert.Equal(t, int64(1), failures)
}

func TestInvoiceEmailCountsCalendarDaysOverdue(t *testing.T) {
	due := time.Date(2024, 6, 1, 23, 0, 0, 0, time.UTC)
	inv := models.Invoice{Number: "INV-1", DueDate: due, Amount: decimal.NewFromInt(10), AmountPaid: decimal.Zero}

	got := invoiceEmail(models.Organization{Name: "Acme"}, inv, "", time.Date(2024, 6, 3, 1, 0, 0, 0, time.UTC))
	assert.Equal(t, 2, got.DaysOverdue)
}

func TestSendRemindersAtMostWeekly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	overdue := f.invoice(t, "INV-1", 100, models.InvoiceOverdue, now.AddDate(0, 0, -40), now.AddDate(0, 0, -10))
	f.invoice(t, "INV-2", 100, models.InvoiceSent, now.AddDate(0, 0, -1), now.AddDate(0, 0, 29))
	m := &recordingMailer{}

	sent, err := SendReminders(ctx, f.db, m, "https://app.test", now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, m.sent, 1)
	assert.Equal(t, "payment_reminder", m.sent[0].Template)

	sent, err = SendReminders(ctx, f.db, m, "https://app.test", now.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Zero(t, sent)

	sent, err = SendReminders(ctx, f.db, m, "https://app.test", now.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	var stored models.Invoice
	require.NoError(t, f.db.First(&stored, overdue.ID).Error)
	require.NotNil(t, stored.LastReminderAt)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bizportal/internal/cashflow"
	"bizportal/internal/database"
	"bizportal/internal/mailer"
	"bizportal/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvoiceInput struct {
	ClientID    uint
	Number      string // generated when empty
	Description string
	Amount      decimal.Decimal
	Currency    string
	IssueDate   time.Time
	DueDate     time.Time
}

// CreateInvoice stores a draft invoice for a client of the actor's organization.
func CreateInvoice(ctx context.Context, db *gorm.DB, actor Actor, in InvoiceInput) (*models.Invoice, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var client models.Client
	if err := db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", in.ClientID, actor.OrganizationID).
		First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("client %d: %w", in.ClientID, ErrNotFound)
		}
		return nil, err
	}

	inv := models.Invoice{
		OrganizationID: actor.OrganizationID,
		ClientID:       client.ID,
		Number:         in.Number,
		Description:    in.Description,
		Amount:         in.Amount.Round(2),
		AmountPaid:     decimal.Zero,
		Currency:       in.Currency,
		Status:         models.InvoiceDraft,
		IssueDate:      in.IssueDate,
		DueDate:        in.DueDate,
	}
	if inv.Currency == "" {
		inv.Currency = "USD"
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if inv.Number == "" {
			n, err := nextInvoiceNumber(tx, actor.OrganizationID)
			if err != nil {
				return err
			}
			inv.Number = n
		}
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		database.WriteAuditLog(tx, actor.OrganizationID, actor.userID(), "invoice", inv.ID, "create",
			fmt.Sprintf("%s %s %s", inv.Number, inv.Currency, inv.Amount.StringFixed(2)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	inv.Client = client
	return &inv, nil
}

func nextInvoiceNumber(tx *gorm.DB, orgID uint) (string, error) {
	var count int64
	if err := tx.Unscoped().Model(&models.Invoice{}).Where("organization_id = ?", orgID).Count(&count).Error; err != nil {
		return "", err
	}
	for n := count + 1; ; n++ {
		num := fmt.Sprintf("INV-%04d", n)
		var exists int64
		if err := tx.Unscoped().Model(&models.Invoice{}).
			Where("organization_id = ? AND number = ?", orgID, num).
			Count(&exists).Error; err != nil {
			return "", err
		}
		if exists == 0 {
			return num, nil
		}
	}
}

// GetInvoice loads an invoice scoped to the organization.
func GetInvoice(ctx context.Context, db *gorm.DB, orgID, invoiceID uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := db.WithContext(ctx).
		Preload("Client").
		Preload("Payments").
		Where("id = ? AND organization_id = ?", invoiceID, orgID).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ChangeInvoiceStatus applies a manual transition. Payments drive partial and paid
// through RecordPayment instead.
func ChangeInvoiceStatus(ctx context.Context, db *gorm.DB, actor Actor, invoiceID uint, next models.InvoiceStatus) (*models.Invoice, error) {
	inv, err := GetInvoice(ctx, db, actor.OrganizationID, invoiceID)
	if err != nil {
		return nil, err
	}
	if next == models.InvoicePartial || next == models.InvoicePaid {
		return nil, fmt.Errorf("%s is set by recording payments: %w", next, ErrInvalidTransition)
	}
	if !models.CanTransitionInvoice(actor.Role, inv.Status, next) {
		return nil, fmt.Errorf("%s -> %s: %w", inv.Status, next, ErrInvalidTransition)
	}

	prev := inv.Status
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Invoice{}).
			Where("id = ? AND status = ?", inv.ID, prev).
			Update("status", next)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		database.WriteAuditLog(tx, actor.OrganizationID, actor.userID(), "invoice", inv.ID, "status_change",
			fmt.Sprintf("%s -> %s", prev, next))
		return nil
	})
	if err != nil {
		return nil, err
	}

	inv.Status = next
	return inv, nil
}

type PaymentInput struct {
	Amount     decimal.Decimal
	Method     models.PaymentMethod
	PaidAt     time.Time
	ExternalID string // provider reference; empty for manual payments
	Note       string
}

// RecordPayment adds a payment and moves the invoice to partial or paid.
// A payment larger than the outstanding balance is rejected with ErrOverpayment.
func RecordPayment(ctx context.Context, db *gorm.DB, actor Actor, invoiceID uint, in PaymentInput) (*models.Payment, *models.Invoice, error) {
	if !in.Amount.IsPositive() {
		return nil, nil, ErrInvalidAmount
	}
	if !in.Method.Valid() {
		return nil, nil, fmt.Errorf("unknown payment method %q", in.Method)
	}
	if in.PaidAt.IsZero() {
		in.PaidAt = time.Now().UTC()
	}

	var (
		payment models.Payment
		inv     models.Invoice
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.ExternalID != "" {
			var dup int64
			if err := tx.Model(&models.Payment{}).Where("external_id = ?", in.ExternalID).Count(&dup).Error; err != nil {
				return err
			}
			if dup > 0 {
				return ErrDuplicatePayment
			}
		}

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND organization_id = ?", invoiceID, actor.OrganizationID).
			First(&inv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !inv.Status.Open() {
			return fmt.Errorf("invoice is %s: %w", inv.Status, ErrInvalidTransition)
		}

		amount := in.Amount.Round(2)
		if amount.GreaterThan(inv.Outstanding()) {
			return fmt.Errorf("%s over %s: %w", amount.StringFixed(2), inv.Outstanding().StringFixed(2), ErrOverpayment)
		}

		payment = models.Payment{
			OrganizationID: inv.OrganizationID,
			InvoiceID:      inv.ID,
			Amount:         amount,
			Method:         in.Method,
			PaidAt:         in.PaidAt,
			Note:           in.Note,
		}
		if in.ExternalID != "" {
			ext := in.ExternalID
			payment.ExternalID = &ext
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		inv.AmountPaid = inv.AmountPaid.Add(amount)
		updates := map[string]any{"amount_paid": inv.AmountPaid}
		if inv.Outstanding().IsZero() {
			inv.Status = models.InvoicePaid
			paidAt := in.PaidAt
			inv.PaidAt = &paidAt
			updates["paid_at"] = paidAt
		} else {
			inv.Status = models.InvoicePartial
		}
		updates["status"] = inv.Status
		if err := tx.Model(&models.Invoice{}).Where("id = ?", inv.ID).Updates(updates).Error; err != nil {
			return err
		}

		database.WriteAuditLog(tx, inv.OrganizationID, actor.userID(), "invoice", inv.ID, "payment",
			fmt.Sprintf("%s %s via %s, now %s", inv.Currency, amount.StringFixed(2), in.Method, inv.Status))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &payment, &inv, nil
}

// SendInvoice emails the invoice to the client and moves a draft to sent.
func SendInvoice(ctx context.Context, db *gorm.DB, m mailer.Mailer, actor Actor, invoiceID uint, payURL string) (*models.Invoice, error) {
	inv, err := GetInvoice(ctx, db, actor.OrganizationID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == models.InvoiceWrittenOff || inv.Status == models.InvoicePaid {
		return nil, fmt.Errorf("cannot send a %s invoice: %w", inv.Status, ErrInvalidTransition)
	}
	if inv.Client.Email == "" {
		return nil, fmt.Errorf("client has no email address: %w", ErrInvalidTransition)
	}

	var org models.Organization
	if err := db.WithContext(ctx).First(&org, inv.OrganizationID).Error; err != nil {
		return nil, err
	}

	msg, err := mailer.Render(mailer.TemplateInvoiceSent, invoiceEmail(org, *inv, payURL, time.Now()))
	if err != nil {
		return nil, err
	}

	// the client must never hold an invoice the app still treats as a draft
	wasDraft := inv.Status == models.InvoiceDraft
	if wasDraft {
		if _, err := ChangeInvoiceStatus(ctx, db, actor, inv.ID, models.InvoiceSent); err != nil {
			return nil, err
		}
		inv.Status = models.InvoiceSent
	}

	if err := m.Send(ctx, msg); err != nil {
		slog.WarnContext(ctx, "invoice email failed", "error", err, "invoice_id", inv.ID, "status", inv.Status)
		database.CreateAuditLog(actor.OrganizationID, actor.userID(), "invoice", inv.ID, "send_failed", err.Error())
		return nil, err
	}
	if !wasDraft {
		database.CreateAuditLog(actor.OrganizationID, actor.userID(), "invoice", inv.ID, "resend", inv.Client.Email)
	}
	return inv, nil
}

func invoiceEmail(org models.Organization, inv models.Invoice, payURL string, now time.Time) mailer.InvoiceEmail {
	days := cashflow.DaysPastDue(cashflow.Invoice{DueDate: inv.DueDate}, now)
	return mailer.InvoiceEmail{
		OrganizationName: org.Name,
		ClientName:       inv.Client.Name,
		ClientEmail:      inv.Client.Email,
		InvoiceNumber:    inv.Number,
		Amount:           inv.Amount.StringFixed(2),
		Outstanding:      inv.Outstanding().StringFixed(2),
		Currency:         inv.Currency,
		DueDate:          inv.DueDate,
		PayURL:           payURL,
		DaysOverdue:      days,
	}
}

// MarkOverdueInvoices flips open invoices past their due date to overdue, across all organizations.
func MarkOverdueInvoices(ctx context.Context, db *gorm.DB, now time.Time) (int, error) {
	var due []models.Invoice
	cutoff := startOfDay(now)
	if err := db.WithContext(ctx).
		Where("status IN ? AND due_date < ?", []models.InvoiceStatus{models.InvoiceSent, models.InvoiceViewed, models.InvoicePartial}, cutoff).
		Find(&due).Error; err != nil {
		return 0, fmt.Errorf("find overdue invoices: %w", err)
	}

	marked := 0
	for _, inv := range due {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Invoice{}).
				Where("id = ? AND status = ?", inv.ID, inv.Status).
				Update("status", models.InvoiceOverdue)
			if res.Error != nil || res.RowsAffected == 0 {
				return res.Error
			}
			database.WriteAuditLog(tx, inv.OrganizationID, nil, "invoice", inv.ID, "status_change",
				fmt.Sprintf("%s -> %s (scheduler)", inv.Status, models.InvoiceOverdue))
			marked++
			return nil
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to mark invoice overdue", "error", err, "invoice_id", inv.ID)
		}
	}
	return marked, nil
}

// ReminderInterval is the minimum gap between two reminders for the same invoice.
const ReminderInterval = 7 * 24 * time.Hour

// reminderLeadDays is how early a reminder goes out for an invoice that is not due yet.
const reminderLeadDays = 3

// SendReminders emails clients about overdue or nearly due invoices, at most once per ReminderInterval.
func SendReminders(ctx context.Context, db *gorm.DB, m mailer.Mailer, appURL string, now time.Time) (int, error) {
	var invoices []models.Invoice
	if err := db.WithContext(ctx).
		Preload("Client").
		Where("status IN ? AND due_date < ?",
			[]models.InvoiceStatus{models.InvoiceSent, models.InvoiceViewed, models.InvoicePartial, models.InvoiceOverdue},
			startOfDay(now).AddDate(0, 0, reminderLeadDays+1)).
		Where("last_reminder_at IS NULL OR last_reminder_at <= ?", now.Add(-ReminderInterval)).
		Find(&invoices).Error; err != nil {
		return 0, fmt.Errorf("find reminder candidates: %w", err)
	}

	orgs := map[uint]models.Organization{}
	sent := 0
	for _, inv := range invoices {
		if inv.Client.Email == "" {
			continue
		}
		org, ok := orgs[inv.OrganizationID]
		if !ok {
			if err := db.WithContext(ctx).First(&org, inv.OrganizationID).Error; err != nil {
				slog.ErrorContext(ctx, "failed to load organization for reminder", "error", err, "invoice_id", inv.ID)
				continue
			}
			orgs[inv.OrganizationID] = org
		}

		payURL := ""
		if appURL != "" {
			payURL = fmt.Sprintf("%s/portal", appURL)
		}
		msg, err := mailer.Render(mailer.TemplatePaymentReminder, invoiceEmail(org, inv, payURL, now))
		if err != nil {
			return sent, err
		}
		if err := m.Send(ctx, msg); err != nil {
			continue
		}

		if err := db.WithContext(ctx).Model(&models.Invoice{}).
			Where("id = ?", inv.ID).
			Update("last_reminder_at", now).Error; err != nil {
			slog.ErrorContext(ctx, "failed to stamp reminder", "error", err, "invoice_id", inv.ID)
			continue
		}
		database.CreateAuditLog(inv.OrganizationID, nil, "invoice", inv.ID, "reminder", inv.Client.Email)
		sent++
	}
	return sent, nil
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

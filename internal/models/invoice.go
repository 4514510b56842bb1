package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvoiceStatus string

const (
	InvoiceDraft      InvoiceStatus = "draft"
	InvoiceSent       InvoiceStatus = "sent"
	InvoiceViewed     InvoiceStatus = "viewed"
	InvoicePartial    InvoiceStatus = "partial"
	InvoicePaid       InvoiceStatus = "paid"
	InvoiceOverdue    InvoiceStatus = "overdue"
	InvoiceWrittenOff InvoiceStatus = "written_off"
)

func (s InvoiceStatus) Valid() bool {
	_, ok := invoiceTransitions[s]
	return ok
}

// Open reports whether money is still expected on an invoice in this status.
func (s InvoiceStatus) Open() bool {
	switch s {
	case InvoiceSent, InvoiceViewed, InvoicePartial, InvoiceOverdue:
		return true
	}
	return false
}

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceDraft:      {InvoiceSent},
	InvoiceSent:       {InvoiceViewed, InvoicePartial, InvoicePaid, InvoiceOverdue, InvoiceWrittenOff},
	InvoiceViewed:     {InvoicePartial, InvoicePaid, InvoiceOverdue, InvoiceWrittenOff},
	InvoicePartial:    {InvoicePaid, InvoiceOverdue, InvoiceWrittenOff},
	InvoiceOverdue:    {InvoicePartial, InvoicePaid, InvoiceWrittenOff},
	InvoicePaid:       nil,
	InvoiceWrittenOff: nil,
}

// CanTransitionInvoice applies the status graph plus the role rule that
// only managers may write an invoice off.
func CanTransitionInvoice(role UserRole, current, next InvoiceStatus) bool {
	if current == next {
		return false
	}
	if next == InvoiceWrittenOff && !role.IsManager() {
		return false
	}
	if role == RoleClient {
		return false
	}
	for _, s := range invoiceTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

type Invoice struct {
	gorm.Model
	OrganizationID uint `gorm:"index;not null;uniqueIndex:idx_invoice_org_number"`
	ClientID       uint `gorm:"index;not null"`
	Client         Client

	Number      string          `gorm:"size:50;not null;uniqueIndex:idx_invoice_org_number"`
	Description string          `gorm:"type:text"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	AmountPaid  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Currency    string          `gorm:"size:3;not null;default:'USD'"`
	Status      InvoiceStatus   `gorm:"type:varchar(20);not null;index"`

	IssueDate      time.Time `gorm:"not null"`
	DueDate        time.Time `gorm:"not null;index"`
	PaidAt         *time.Time
	LastReminderAt *time.Time

	Payments []Payment
}

// Outstanding is the unpaid balance, never negative.
func (i Invoice) Outstanding() decimal.Decimal {
	out := i.Amount.Sub(i.AmountPaid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

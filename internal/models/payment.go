package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodStripe       PaymentMethod = "stripe"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheck        PaymentMethod = "check"
	MethodCash         PaymentMethod = "cash"
	MethodOther        PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodStripe, MethodBankTransfer, MethodCheck, MethodCash, MethodOther:
		return true
	}
	return false
}

type Payment struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	OrganizationID uint            `gorm:"index;not null"`
	InvoiceID      uint            `gorm:"index;not null"`
	Amount         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Method         PaymentMethod   `gorm:"type:varchar(20);not null"`
	PaidAt         time.Time       `gorm:"not null"`
	// ExternalID is the provider event id; unique so a replayed webhook records nothing.
	ExternalID *string `gorm:"size:100;uniqueIndex"`
	Note       string  `gorm:"type:text"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Employee struct {
	gorm.Model
	OrganizationID uint   `gorm:"index;not null;uniqueIndex:idx_employee_ext"`
	ExternalID     string `gorm:"size:100;not null;uniqueIndex:idx_employee_ext"`
	FirstName      string `gorm:"size:100"`
	LastName       string `gorm:"size:100"`
	Title          string `gorm:"size:255"`
	Department     string `gorm:"size:255"`
	Active         bool   `gorm:"not null;default:true"`
}

// PayrollSnapshot is one processed pay run pulled from the payroll provider.
type PayrollSnapshot struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	OrganizationID uint   `gorm:"index;not null;uniqueIndex:idx_payroll_ext"`
	Provider       string `gorm:"size:30;not null;uniqueIndex:idx_payroll_ext"`
	ExternalID     string `gorm:"size:100;not null;uniqueIndex:idx_payroll_ext"`

	PeriodStart   time.Time
	PeriodEnd     time.Time
	CheckDate     time.Time       `gorm:"index"`
	GrossPay      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	NetPay        decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	EmployerTaxes decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	EmployeeCount int

	Entries []PayrollEntry `gorm:"foreignKey:SnapshotID"`
}

// TotalCost is what the pay run costs the employer.
func (p PayrollSnapshot) TotalCost() decimal.Decimal {
	return p.GrossPay.Add(p.EmployerTaxes)
}

type PayrollEntry struct {
	ID         uint            `gorm:"primaryKey"`
	SnapshotID uint            `gorm:"index;not null"`
	EmployeeID uint            `gorm:"index"`
	GrossPay   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	NetPay     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
}

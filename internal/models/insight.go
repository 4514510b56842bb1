package models

import (
	"time"

	"gorm.io/datatypes"
)

type BusinessInsight struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	OrganizationID uint   `gorm:"index;not null"`
	Category       string `gorm:"size:30;not null"` // cashflow, payroll, benchmark, correlation
	Severity       string `gorm:"size:20;not null"` // info, warning, critical
	Title          string `gorm:"size:255;not null"`
	Summary        string `gorm:"type:text"`
	Recommendation string `gorm:"type:text"`
	Confidence     string `gorm:"size:10"`
	Source         string `gorm:"size:10;not null;default:'rules'"`
	Data           datatypes.JSON

	GeneratedAt time.Time `gorm:"not null"`
	DismissedAt *time.Time
}

package models

import "time"

type AuditLog struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	OrganizationID uint `gorm:"index"`
	UserID         *uint // nil for scheduler-driven entries
	User           *User

	Entity   string `gorm:"size:50;not null"` // "client", "invoice", "project", ...
	EntityID uint
	Action   string `gorm:"size:50;not null"` // "create", "status_change", ...
	Details  string `gorm:"type:text"`
}

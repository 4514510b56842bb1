package models

import "gorm.io/gorm"

type Plan string

const (
	PlanFree    Plan = "free"
	PlanStarter Plan = "starter"
	PlanPro     Plan = "pro"
)

// Organization is the tenant; every other row hangs off one.
type Organization struct {
	gorm.Model
	Name             string `gorm:"size:255;not null"`
	Slug             string `gorm:"size:100;uniqueIndex;not null"`
	Industry         string `gorm:"size:100"`
	Plan             Plan   `gorm:"type:varchar(20);not null;default:'free'"`
	StripeCustomerID string `gorm:"size:100;index"`

	Users   []User
	Clients []Client
}

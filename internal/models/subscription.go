package models

import (
	"time"

	"gorm.io/gorm"
)

type SubscriptionStatus string

const (
	SubscriptionTrialing   SubscriptionStatus = "trialing"
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
)

type Subscription struct {
	gorm.Model
	OrganizationID       uint               `gorm:"uniqueIndex;not null"`
	StripeSubscriptionID string             `gorm:"size:100;uniqueIndex"`
	StripePriceID        string             `gorm:"size:100"`
	Plan                 Plan               `gorm:"type:varchar(20);not null"`
	Status               SubscriptionStatus `gorm:"type:varchar(20);not null"`
	CurrentPeriodEnd     *time.Time
}

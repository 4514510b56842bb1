package models

import (
	"time"

	"gorm.io/gorm"
)

type IntegrationProvider string
type IntegrationStatus string

const (
	ProviderGusto      IntegrationProvider = "gusto"
	ProviderQuickBooks IntegrationProvider = "quickbooks"
	ProviderXero       IntegrationProvider = "xero"

	IntegrationPending      IntegrationStatus = "pending"
	IntegrationConnected    IntegrationStatus = "connected"
	IntegrationError        IntegrationStatus = "error"
	IntegrationDisconnected IntegrationStatus = "disconnected"
)

func (p IntegrationProvider) Valid() bool {
	switch p {
	case ProviderGusto, ProviderQuickBooks, ProviderXero:
		return true
	}
	return false
}

// Supported is false for accounting providers that only have a placeholder.
func (p IntegrationProvider) Supported() bool {
	return p == ProviderGusto
}

type Integration struct {
	gorm.Model
	OrganizationID    uint                `gorm:"not null;uniqueIndex:idx_integration_org_provider"`
	Provider          IntegrationProvider `gorm:"type:varchar(30);not null;uniqueIndex:idx_integration_org_provider"`
	Status            IntegrationStatus   `gorm:"type:varchar(20);not null"`
	AccessToken       string              `json:"-"`
	ExternalCompanyID string              `gorm:"size:100"`
	LastSyncedAt      *time.Time
	LastError         string `gorm:"type:text"`
}

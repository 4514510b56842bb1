package models

import "gorm.io/gorm"

type Client struct {
	gorm.Model
	OrganizationID uint   `gorm:"index;not null"`
	Name           string `gorm:"size:255;not null"`
	Email          string `gorm:"size:255"`
	Phone          string `gorm:"size:50"`
	Company        string `gorm:"size:255"`
	Notes          string `gorm:"type:text"`

	// PortalUserID links a RoleClient user who may see this client's invoices and projects.
	PortalUserID *uint `gorm:"index"`

	Invoices []Invoice
	Projects []WebsiteProject
}

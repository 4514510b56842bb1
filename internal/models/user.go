package models

import "gorm.io/gorm"

type UserRole string

const (
	RoleOwner  UserRole = "owner"
	RoleAdmin  UserRole = "admin"
	RoleMember UserRole = "member"
	RoleClient UserRole = "client" // portal access to a single Client
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleClient:
		return true
	}
	return false
}

// IsManager reports whether the role may change billing state and statuses.
func (r UserRole) IsManager() bool {
	return r == RoleOwner || r == RoleAdmin
}

type User struct {
	gorm.Model
	OrganizationID *uint `gorm:"index"`
	Organization   *Organization

	Email        string   `gorm:"uniqueIndex;size:255;not null"`
	Name         string   `gorm:"size:255"`
	PasswordHash string   `json:"-"` // empty for OAuth-only accounts
	Role         UserRole `gorm:"type:varchar(20);not null"`
	WorkOSID     *string  `gorm:"column:workos_id;size:100;uniqueIndex"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectPlanning    ProjectStatus = "planning"
	ProjectDesign      ProjectStatus = "design"
	ProjectDevelopment ProjectStatus = "development"
	ProjectReview      ProjectStatus = "review"
	ProjectLaunched    ProjectStatus = "launched"
	ProjectMaintenance ProjectStatus = "maintenance"
)

// projectStages is the forward order of a website build.
var projectStages = []ProjectStatus{
	ProjectPlanning,
	ProjectDesign,
	ProjectDevelopment,
	ProjectReview,
	ProjectLaunched,
	ProjectMaintenance,
}

func (s ProjectStatus) stage() int {
	for i, st := range projectStages {
		if st == s {
			return i
		}
	}
	return -1
}

func (s ProjectStatus) Valid() bool {
	return s.stage() >= 0
}

// CanChangeProjectStatus lets members move a project forward only;
// managers may also move it back.
func CanChangeProjectStatus(role UserRole, current, next ProjectStatus) bool {
	if current == next || !next.Valid() || !current.Valid() {
		return false
	}

	switch role {
	case RoleOwner, RoleAdmin:
		return true
	case RoleMember:
		return next.stage() > current.stage()
	default:
		return false
	}
}

type WebsiteProject struct {
	gorm.Model
	OrganizationID uint `gorm:"index;not null"`
	ClientID       *uint
	Client         *Client

	Name        string          `gorm:"size:255;not null"`
	Domain      string          `gorm:"size:255"`
	Description string          `gorm:"type:text"`
	Status      ProjectStatus   `gorm:"type:varchar(20);not null"`
	Budget      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Progress    int             `gorm:"not null;default:0"`

	StartDate  *time.Time
	LaunchDate *time.Time

	ChangeRequests []ChangeRequest `gorm:"foreignKey:ProjectID"`
}

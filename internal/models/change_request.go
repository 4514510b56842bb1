package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ChangeRequestStatus string
type ChangeRequestPriority string

const (
	ChangeSubmitted  ChangeRequestStatus = "submitted"
	ChangeReviewing  ChangeRequestStatus = "reviewing"
	ChangeApproved   ChangeRequestStatus = "approved"
	ChangeInProgress ChangeRequestStatus = "in_progress"
	ChangeCompleted  ChangeRequestStatus = "completed"
	ChangeRejected   ChangeRequestStatus = "rejected"

	PriorityLow    ChangeRequestPriority = "low"
	PriorityMedium ChangeRequestPriority = "medium"
	PriorityHigh   ChangeRequestPriority = "high"
	PriorityUrgent ChangeRequestPriority = "urgent"
)

func (p ChangeRequestPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

var changeTransitions = map[ChangeRequestStatus][]ChangeRequestStatus{
	ChangeSubmitted:  {ChangeReviewing, ChangeRejected},
	ChangeReviewing:  {ChangeApproved, ChangeRejected},
	ChangeApproved:   {ChangeInProgress},
	ChangeInProgress: {ChangeCompleted},
}

func (s ChangeRequestStatus) Valid() bool {
	switch s {
	case ChangeSubmitted, ChangeReviewing, ChangeApproved, ChangeInProgress, ChangeCompleted, ChangeRejected:
		return true
	}
	return false
}

// CanChangeRequestStatus: clients and members submit, managers move requests along.
func CanChangeRequestStatus(role UserRole, current, next ChangeRequestStatus) bool {
	if !role.IsManager() {
		return false
	}
	for _, s := range changeTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

type ChangeRequest struct {
	gorm.Model
	OrganizationID uint `gorm:"index;not null"`
	ProjectID      uint `gorm:"index;not null"`
	RequestedByID  uint
	RequestedBy    User

	Title          string                `gorm:"size:255;not null"`
	Description    string                `gorm:"type:text"`
	Priority       ChangeRequestPriority `gorm:"type:varchar(20);not null"`
	Status         ChangeRequestStatus   `gorm:"type:varchar(20);not null"`
	EstimatedHours float64
	Cost           decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
}

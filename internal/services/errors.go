package services

import (
	"errors"

	"bizportal/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOverpayment       = errors.New("payment exceeds outstanding balance")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrDuplicatePayment  = errors.New("payment already recorded")
	ErrNoOrganization    = errors.New("user has no organization")
	ErrNotSupported      = errors.New("not supported")
	ErrEmptyMessage      = errors.New("message is empty")
)

// Actor is the authenticated user a service call acts for.
type Actor struct {
	UserID         uint
	OrganizationID uint
	Role           models.UserRole
}

func (a Actor) userID() *uint {
	if a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}

package database

import (
	"log/slog"

	"bizportal/internal/models"

	"gorm.io/gorm"
)

// CreateAuditLog records an action; failures are logged and never block the caller.
// userID is nil for entries written by background jobs and webhooks.
func CreateAuditLog(orgID uint, userID *uint, entity string, entityID uint, action, details string) {
	if DB == nil {
		return
	}
	WriteAuditLog(DB, orgID, userID, entity, entityID, action, details)
}

// WriteAuditLog is CreateAuditLog against a specific handle, e.g. inside a transaction.
func WriteAuditLog(db *gorm.DB, orgID uint, userID *uint, entity string, entityID uint, action, details string) {
	record := models.AuditLog{
		OrganizationID: orgID,
		UserID:         userID,
		Entity:         entity,
		EntityID:       entityID,
		Action:         action,
		Details:        details,
	}
	if err := db.Create(&record).Error; err != nil {
		slog.Error("failed to write audit log", "error", err, "entity", entity, "entity_id", entityID, "action", action)
	}
}

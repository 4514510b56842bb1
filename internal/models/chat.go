package models

import "time"

type ChatRole string

const (
	ChatUser      ChatRole = "user"
	ChatAssistant ChatRole = "assistant"
)

type ChatMessage struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	OrganizationID uint     `gorm:"index;not null"`
	UserID         uint     `gorm:"index;not null"`
	ConversationID string   `gorm:"size:36;index;not null"`
	Role           ChatRole `gorm:"type:varchar(20);not null"`
	Content        string   `gorm:"type:text;not null"`
}

package models

import "time"

// Notification records a message alert dispatched to a conversation
// participant. RecipientType distinguishes tenants from advertisers.
type Notification struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RecipientID    string    `gorm:"size:64;index" json:"recipient_id"`
	RecipientType  string    `gorm:"size:32;default:user" json:"recipient_type"`
	ActorName      string    `gorm:"size:255" json:"actor_name"`
	ConversationID string    `gorm:"size:80;index" json:"conversation_id"`
	Read           bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

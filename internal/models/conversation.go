package models

import (
	"time"

	"gorm.io/datatypes"
)

// Conversation is a two-party message channel. Its ID is derived
// deterministically from the sorted participant pair, so creation is an
// idempotent upsert and exactly one conversation exists per pair.
type Conversation struct {
	ID            string                    `gorm:"primaryKey;size:80" json:"id"`
	LastMessage   string                    `gorm:"size:512" json:"last_message"`
	LastMessageAt *time.Time                `gorm:"index" json:"last_message_at,omitempty"`
	Participants  []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// ConversationParticipant stores one side of a conversation: a display
// snapshot captured at creation time plus the per-participant unread counter.
// The pair is immutable after creation.
type ConversationParticipant struct {
	ConversationID string    `gorm:"primaryKey;size:80" json:"conversation_id"`
	UserID         string    `gorm:"primaryKey;size:64" json:"user_id"`
	Role           string    `gorm:"size:32;default:user" json:"role"`
	Name           string    `gorm:"size:255" json:"name"`
	PictureURL     string    `gorm:"size:512" json:"picture_url,omitempty"`
	UnreadCount    int       `gorm:"not null;default:0" json:"unread_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message is an append-only entry in a conversation's log. Immutable after
// creation except for the read flag (false to true only) and deletion by its
// sender.
type Message struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string         `gorm:"size:80;index" json:"conversation_id"`
	SenderID       string         `gorm:"size:64;index" json:"sender_id"`
	Text           string         `gorm:"type:text" json:"text"`
	Attachments    datatypes.JSON `gorm:"type:json" json:"attachments,omitempty"`
	IsRead         bool           `gorm:"not null;default:false" json:"is_read"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
}

// Attachment is embedded in a message's JSON attachment list; the binary
// itself lives in blob storage and is referenced by URL.
type Attachment struct {
	Kind string `json:"type"`
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
}

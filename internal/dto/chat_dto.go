package dto

import "time"

// Client-to-server websocket frame kinds.
const (
	FrameMessage = "message"
	FrameTyping  = "typing"
	FrameRead    = "read"
)

// Server-to-client event kinds, in addition to the frame kinds above.
const (
	EventPresence     = "presence"
	EventConversation = "conversation"
)

// ChatClientFrame is a frame received from a websocket client.
type ChatClientFrame struct {
	Type        string              `json:"type" validate:"required,oneof=message typing read"`
	Text        string              `json:"text,omitempty"`
	Attachments []AttachmentPayload `json:"attachments,omitempty" validate:"omitempty,max=5,dive"`
	IsTyping    bool                `json:"is_typing,omitempty"`
}

// ChatServerEvent is an event pushed to websocket subscribers of a thread.
type ChatServerEvent struct {
	Type           string           `json:"type"`
	ConversationID string           `json:"conversation_id"`
	Message        *MessageResponse `json:"message,omitempty"`
	TypingUsers    []string         `json:"typing_users,omitempty"`
	UserID         string           `json:"user_id,omitempty"`
	IsOnline       bool             `json:"is_online,omitempty"`
	ReadBy         string           `json:"read_by,omitempty"`
	SentAt         time.Time        `json:"sent_at"`
}

// DirectoryEvent notifies a user's conversation-list stream that one of their
// conversations changed (new message, read pass, deletion).
type DirectoryEvent struct {
	Type           string                `json:"type"`
	ConversationID string                `json:"conversation_id"`
	Conversation   *ConversationResponse `json:"conversation,omitempty"`
	SentAt         time.Time             `json:"sent_at"`
}

// Directory event kinds.
const (
	DirectoryUpdated = "updated"
	DirectoryDeleted = "deleted"
)

package dto

import (
	"encoding/json"
	"time"

	"github.com/rentora/rentora-api/internal/models"
)

// AttachmentPayload describes one uploaded attachment referenced by a message.
type AttachmentPayload struct {
	Kind string `json:"type" validate:"required,oneof=image file"`
	URL  string `json:"url" validate:"required,url,max=512"`
	Name string `json:"name" validate:"omitempty,max=255"`
	Size int64  `json:"size" validate:"omitempty,min=0"`
}

// MessageSendRequest is the payload appending a message to a thread.
type MessageSendRequest struct {
	ConversationID string              `json:"conversation_id" validate:"required,max=80"`
	SenderID       string              `json:"sender_id" validate:"required,max=64"`
	Text           string              `json:"text" validate:"omitempty,max=4000"`
	Attachments    []AttachmentPayload `json:"attachments" validate:"omitempty,max=5,dive"`
}

// MessageHistoryQuery filters a thread's message history.
type MessageHistoryQuery struct {
	ConversationID string     `query:"conversation_id" validate:"required,max=80"`
	Before         *time.Time `query:"before"`
	Limit          int        `query:"limit" validate:"omitempty,min=1,max=100"`
}

// MessageResponse is the serialized representation of a message.
type MessageResponse struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversation_id"`
	SenderID       string              `json:"sender_id"`
	Text           string              `json:"text"`
	Attachments    []AttachmentPayload `json:"attachments,omitempty"`
	IsRead         bool                `json:"is_read"`
	CreatedAt      time.Time           `json:"created_at"`
}

// UploadResult carries the attachments that made it to blob storage plus
// user-facing warnings for files that were truncated or failed.
type UploadResult struct {
	Attachments []AttachmentPayload `json:"attachments"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// NewMessageResponse converts a model into a DTO.
func NewMessageResponse(message models.Message) MessageResponse {
	response := MessageResponse{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		Text:           message.Text,
		IsRead:         message.IsRead,
		CreatedAt:      message.CreatedAt,
	}

	if len(message.Attachments) > 0 {
		var attachments []AttachmentPayload
		if err := json.Unmarshal(message.Attachments, &attachments); err == nil {
			response.Attachments = attachments
		}
	}

	return response
}

// NewMessageResponseSlice converts a slice of models into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}

// MarshalAttachments serializes attachment payloads for the message model's
// JSON column.
func MarshalAttachments(attachments []AttachmentPayload) ([]byte, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	return json.Marshal(attachments)
}

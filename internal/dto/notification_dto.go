package dto

import (
	"time"

	"github.com/rentora/rentora-api/internal/models"
)

// NotificationDispatchRequest describes the payload dispatched after a
// successful message send.
type NotificationDispatchRequest struct {
	RecipientID    string `json:"recipient_id" validate:"required,max=64"`
	RecipientType  string `json:"recipient_type" validate:"required,oneof=user advertiser"`
	ActorName      string `json:"actor_name" validate:"required,max=255"`
	ConversationID string `json:"conversation_id" validate:"required,max=80"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID             uint      `json:"id"`
	RecipientID    string    `json:"recipient_id"`
	RecipientType  string    `json:"recipient_type"`
	ActorName      string    `json:"actor_name"`
	ConversationID string    `json:"conversation_id"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:             model.ID,
		RecipientID:    model.RecipientID,
		RecipientType:  model.RecipientType,
		ActorName:      model.ActorName,
		ConversationID: model.ConversationID,
		Read:           model.Read,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}

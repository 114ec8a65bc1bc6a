package dto

import (
	"time"

	"github.com/rentora/rentora-api/internal/models"
)

// ParticipantSnapshot captures the display details stored on a conversation
// when it is created.
type ParticipantSnapshot struct {
	UserID     string `json:"user_id" validate:"required,max=64"`
	Role       string `json:"role" validate:"omitempty,oneof=user advertiser"`
	Name       string `json:"name" validate:"required,max=255"`
	PictureURL string `json:"picture_url" validate:"omitempty,max=512"`
}

// ConversationCreateRequest asks for the conversation between two users,
// creating it when absent.
type ConversationCreateRequest struct {
	Initiator ParticipantSnapshot `json:"initiator" validate:"required"`
	Peer      ParticipantSnapshot `json:"peer" validate:"required"`
}

// ParticipantView is the serialized representation of one conversation side.
type ParticipantView struct {
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	Name        string `json:"name"`
	PictureURL  string `json:"picture_url,omitempty"`
	UnreadCount int    `json:"unread_count"`
	IsTyping    bool   `json:"is_typing"`
}

// ConversationResponse is the serialized representation of a conversation.
type ConversationResponse struct {
	ID            string            `json:"id"`
	Participants  []ParticipantView `json:"participants"`
	LastMessage   string            `json:"last_message"`
	LastMessageAt *time.Time        `json:"last_message_at,omitempty"`
	UnreadCounts  map[string]int    `json:"unread_counts"`
	TypingUsers   []string          `json:"typing_users"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewConversationResponse converts a model into a DTO, folding in the
// ephemeral typing set.
func NewConversationResponse(conversation models.Conversation, typingUsers []string) ConversationResponse {
	typing := make(map[string]bool, len(typingUsers))
	for _, userID := range typingUsers {
		typing[userID] = true
	}

	participants := make([]ParticipantView, 0, len(conversation.Participants))
	unread := make(map[string]int, len(conversation.Participants))
	for _, participant := range conversation.Participants {
		participants = append(participants, ParticipantView{
			UserID:      participant.UserID,
			Role:        participant.Role,
			Name:        participant.Name,
			PictureURL:  participant.PictureURL,
			UnreadCount: participant.UnreadCount,
			IsTyping:    typing[participant.UserID],
		})
		unread[participant.UserID] = participant.UnreadCount
	}

	if typingUsers == nil {
		typingUsers = []string{}
	}

	return ConversationResponse{
		ID:            conversation.ID,
		Participants:  participants,
		LastMessage:   conversation.LastMessage,
		LastMessageAt: conversation.LastMessageAt,
		UnreadCounts:  unread,
		TypingUsers:   typingUsers,
		CreatedAt:     conversation.CreatedAt,
	}
}

// NewConversationResponseSlice converts a slice of models into DTOs.
func NewConversationResponseSlice(conversations []models.Conversation, typingByID map[string][]string) []ConversationResponse {
	out := make([]ConversationResponse, 0, len(conversations))
	for _, conversation := range conversations {
		out = append(out, NewConversationResponse(conversation, typingByID[conversation.ID]))
	}
	return out
}

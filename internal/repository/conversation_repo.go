package repository

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rentora/rentora-api/internal/models"
)

// ConversationID derives the identity of a conversation from the unordered
// participant pair. Both orderings of the same pair map to the same ID, which
// makes creation an idempotent upsert instead of a lookup-then-create race.
func ConversationID(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}

	sum := sha1.Sum([]byte(fmt.Sprintf("%s:%s", userA, userB)))
	return hex.EncodeToString(sum[:])
}

// ConversationRepository persists conversations and their participant rows.
type ConversationRepository interface {
	CreateIfAbsent(ctx context.Context, conversation *models.Conversation) error
	Get(ctx context.Context, id string) (models.Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]models.Conversation, error)
	SetLastMessage(ctx context.Context, id, preview string, at *time.Time) error
	DeleteCascade(ctx context.Context, id string) error
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository constructs a conversation repository backed by GORM.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// CreateIfAbsent inserts the conversation and its participant rows, doing
// nothing when the deterministic ID already exists. Concurrent calls for the
// same pair converge on one row.
func (r *conversationRepository) CreateIfAbsent(ctx context.Context, conversation *models.Conversation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("Participants").Create(conversation).Error; err != nil {
			return err
		}

		for i := range conversation.Participants {
			conversation.Participants[i].ConversationID = conversation.ID
		}

		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&conversation.Participants).Error
	})
}

func (r *conversationRepository) Get(ctx context.Context, id string) (models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).Preload("Participants").First(&conversation, "id = ?", id).Error
	if err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

func (r *conversationRepository) ListByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	member := r.db.Model(&models.ConversationParticipant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	var conversations []models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id IN (?)", member).
		Order("last_message_at IS NULL, last_message_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}

	return conversations, nil
}

func (r *conversationRepository) SetLastMessage(ctx context.Context, id, preview string, at *time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message":    preview,
			"last_message_at": at,
		}).Error
}

// DeleteCascade removes the messages, participant rows and the conversation
// itself in one transaction so a partial failure never leaves the
// conversation visible without its log.
func (r *conversationRepository) DeleteCascade(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&models.ConversationParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Conversation{}, "id = ?", id).Error
	})
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rentora/rentora-api/internal/models"
)

// MessageRepository persists the append-only message log of a conversation.
type MessageRepository interface {
	Append(ctx context.Context, message *models.Message, preview, recipientID string) error
	ListByConversation(ctx context.Context, conversationID string, before time.Time, limit int) ([]models.Message, error)
	Get(ctx context.Context, conversationID, messageID string) (models.Message, error)
	MarkAllRead(ctx context.Context, conversationID, readerID string) (int64, error)
	Delete(ctx context.Context, conversationID, messageID string) error
	Latest(ctx context.Context, conversationID string) (models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Append writes the message and the conversation summary (lastMessage preview,
// timestamp, recipient unread counter) in a single transaction. The counter is
// bumped with an atomic SQL expression, never a read-modify-write.
func (r *messageRepository) Append(ctx context.Context, message *models.Message, preview, recipientID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}

		err := tx.Model(&models.Conversation{}).
			Where("id = ?", message.ConversationID).
			Updates(map[string]interface{}{
				"last_message":    preview,
				"last_message_at": message.CreatedAt,
			}).Error
		if err != nil {
			return err
		}

		return tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ?", message.ConversationID, recipientID).
			UpdateColumn("unread_count", gorm.Expr("unread_count + ?", 1)).Error
	})
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID string, before time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if !before.IsZero() {
		query = query.Where("created_at < ?", before)
	}

	var messages []models.Message
	if err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	// Reverse to chronological order ascending for clients.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *messageRepository) Get(ctx context.Context, conversationID, messageID string) (models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND id = ?", conversationID, messageID).
		First(&message).Error
	if err != nil {
		return models.Message{}, err
	}
	return message, nil
}

// MarkAllRead flips every message not authored by readerID to read and zeroes
// the reader's unread counter, batched in one transaction. When nothing is
// unread it returns 0 without issuing any write, so repeated calls are no-ops.
func (r *messageRepository) MarkAllRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	var unread int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Count(&unread).Error
	if err != nil {
		return 0, err
	}

	var counter int64
	err = r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ? AND unread_count > 0", conversationID, readerID).
		Count(&counter).Error
	if err != nil {
		return 0, err
	}

	if unread == 0 && counter == 0 {
		return 0, nil
	}

	var affected int64
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
			UpdateColumn("is_read", true)
		if result.Error != nil {
			return result.Error
		}
		affected = result.RowsAffected

		return tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ?", conversationID, readerID).
			UpdateColumn("unread_count", 0).Error
	})
	if err != nil {
		return 0, err
	}

	return affected, nil
}

func (r *messageRepository) Delete(ctx context.Context, conversationID, messageID string) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ? AND id = ?", conversationID, messageID).
		Delete(&models.Message{}).Error
}

func (r *messageRepository) Latest(ctx context.Context, conversationID string) (models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		First(&message).Error
	if err != nil {
		return models.Message{}, err
	}
	return message, nil
}

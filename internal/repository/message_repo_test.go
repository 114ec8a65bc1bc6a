package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rentora/rentora-api/internal/models"
)

func TestAppendUpdatesSummaryAndUnreadCounter(t *testing.T) {
	db := setupTestDB(t)
	conversations := NewConversationRepository(db)
	messages := NewMessageRepository(db)
	ctx := context.Background()

	conversation := pairConversation("tenant-1", "advertiser-1")
	require.NoError(t, conversations.CreateIfAbsent(ctx, &conversation))

	message := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		SenderID:       "tenant-1",
		Text:           "is the flat still available?",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, messages.Append(ctx, &message, message.Text, "advertiser-1"))

	loaded, err := conversations.Get(ctx, conversation.ID)
	require.NoError(t, err)
	require.Equal(t, message.Text, loaded.LastMessage)
	require.NotNil(t, loaded.LastMessageAt)

	require.Equal(t, 1, unreadCount(t, db, conversation.ID, "advertiser-1"))
	require.Equal(t, 0, unreadCount(t, db, conversation.ID, "tenant-1"))

	// A second append bumps the counter atomically.
	second := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		SenderID:       "tenant-1",
		Text:           "still interested",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, messages.Append(ctx, &second, second.Text, "advertiser-1"))
	require.Equal(t, 2, unreadCount(t, db, conversation.ID, "advertiser-1"))
}

func TestMarkAllReadIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	conversations := NewConversationRepository(db)
	messages := NewMessageRepository(db)
	ctx := context.Background()

	conversation := pairConversation("tenant-1", "advertiser-1")
	require.NoError(t, conversations.CreateIfAbsent(ctx, &conversation))

	for i := 0; i < 2; i++ {
		message := models.Message{
			ID:             uuid.NewString(),
			ConversationID: conversation.ID,
			SenderID:       "advertiser-1",
			Text:           fmt.Sprintf("reply %d", i),
			CreatedAt:      time.Now().UTC(),
		}
		require.NoError(t, messages.Append(ctx, &message, message.Text, "tenant-1"))
	}

	affected, err := messages.MarkAllRead(ctx, conversation.ID, "tenant-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), affected)
	require.Equal(t, 0, unreadCount(t, db, conversation.ID, "tenant-1"))

	// Second pass finds nothing unread and issues no writes.
	affected, err = messages.MarkAllRead(ctx, conversation.ID, "tenant-1")
	require.NoError(t, err)
	require.Zero(t, affected)

	// The reader's own messages are untouched by the pass.
	var ownUnread int64
	require.NoError(t, db.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id = ? AND is_read = ?", conversation.ID, "advertiser-1", false).
		Count(&ownUnread).Error)
	require.Zero(t, ownUnread)
}

func TestListByConversationPagination(t *testing.T) {
	db := setupTestDB(t)
	conversations := NewConversationRepository(db)
	messages := NewMessageRepository(db)
	ctx := context.Background()

	conversation := pairConversation("tenant-1", "advertiser-1")
	require.NoError(t, conversations.CreateIfAbsent(ctx, &conversation))

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		message := models.Message{
			ID:             uuid.NewString(),
			ConversationID: conversation.ID,
			SenderID:       "tenant-1",
			Text:           fmt.Sprintf("message %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&message).Error)
	}

	page, err := messages.ListByConversation(ctx, conversation.ID, time.Time{}, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.Equal(t, "message 2", page[0].Text, "expected chronological order within the page")
	require.Equal(t, "message 4", page[2].Text)

	older, err := messages.ListByConversation(ctx, conversation.ID, page[0].CreatedAt, 10)
	require.NoError(t, err)
	require.Len(t, older, 2)
	require.Equal(t, "message 0", older[0].Text)
	require.Equal(t, "message 1", older[1].Text)
}

func TestDeleteAndLatest(t *testing.T) {
	db := setupTestDB(t)
	conversations := NewConversationRepository(db)
	messages := NewMessageRepository(db)
	ctx := context.Background()

	conversation := pairConversation("tenant-1", "advertiser-1")
	require.NoError(t, conversations.CreateIfAbsent(ctx, &conversation))

	first := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		SenderID:       "tenant-1",
		Text:           "first",
		CreatedAt:      time.Now().UTC().Add(-time.Minute),
	}
	last := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		SenderID:       "advertiser-1",
		Text:           "last",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, db.Create(&first).Error)
	require.NoError(t, db.Create(&last).Error)

	latest, err := messages.Latest(ctx, conversation.ID)
	require.NoError(t, err)
	require.Equal(t, last.ID, latest.ID)

	require.NoError(t, messages.Delete(ctx, conversation.ID, last.ID))

	latest, err = messages.Latest(ctx, conversation.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, latest.ID)

	require.NoError(t, messages.Delete(ctx, conversation.ID, first.ID))
	_, err = messages.Latest(ctx, conversation.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func unreadCount(t *testing.T, db *gorm.DB, conversationID, userID string) int {
	t.Helper()
	var participant models.ConversationParticipant
	require.NoError(t, db.First(&participant, "conversation_id = ? AND user_id = ?", conversationID, userID).Error)
	return participant.UnreadCount
}

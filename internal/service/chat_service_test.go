package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rentora/rentora-api/internal/dto"
	"github.com/rentora/rentora-api/internal/repository"
)

func newChatFixture(t *testing.T) (ChatService, ConversationService, TypingService, string) {
	t.Helper()
	db := setupServiceDB(t)
	validate := newTestValidator()

	typing := NewTypingService(nil, "", 30*time.Second, zerolog.Nop())
	presence := NewPresenceService(repository.NewUserRepository(db), nil, typing, "", 0, zerolog.Nop())
	conversations := NewConversationService(repository.NewConversationRepository(db), typing, validate, zerolog.Nop())
	notifications := NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, validate, zerolog.Nop())
	messages := NewMessageService(repository.NewMessageRepository(db), repository.NewConversationRepository(db), notifications, validate, zerolog.Nop())
	chat := NewChatService(messages, typing, presence, conversations, nil, "", nil, zerolog.Nop())

	created, err := conversations.GetOrCreate(context.Background(), dto.ConversationCreateRequest{
		Initiator: dto.ParticipantSnapshot{UserID: "tenant-1", Role: "user", Name: "Alice"},
		Peer:      dto.ParticipantSnapshot{UserID: "advertiser-1", Role: "advertiser", Name: "Bob"},
	})
	require.NoError(t, err)

	return chat, conversations, typing, created.ID
}

func TestChatSendClearsTypingAndUpdatesDirectory(t *testing.T) {
	chat, conversations, typing, conversationID := newChatFixture(t)
	ctx := context.Background()

	_, err := typing.SetTyping(ctx, conversationID, "tenant-1", true)
	require.NoError(t, err)

	stream, cleanup := conversations.Subscribe("advertiser-1")
	defer cleanup()

	response, err := chat.Send(ctx, dto.MessageSendRequest{
		ConversationID: conversationID,
		SenderID:       "tenant-1",
		Text:           "hello!",
	})
	require.NoError(t, err)
	require.Equal(t, conversationID, response.ConversationID)

	users, err := typing.Typing(ctx, conversationID)
	require.NoError(t, err)
	require.Empty(t, users, "sending clears the sender's typing flag")

	select {
	case event := <-stream:
		require.Equal(t, dto.DirectoryUpdated, event.Type)
		require.NotNil(t, event.Conversation)
		require.Equal(t, "hello!", event.Conversation.LastMessage)
		require.Equal(t, 1, event.Conversation.UnreadCounts["advertiser-1"])
	case <-time.After(time.Second):
		t.Fatal("expected a directory update after send")
	}
}

func TestChatMarkReadPublishesOnlyWhenDirty(t *testing.T) {
	chat, conversations, _, conversationID := newChatFixture(t)
	ctx := context.Background()

	_, err := chat.Send(ctx, dto.MessageSendRequest{
		ConversationID: conversationID,
		SenderID:       "advertiser-1",
		Text:           "any questions?",
	})
	require.NoError(t, err)

	stream, cleanup := conversations.Subscribe("tenant-1")
	defer cleanup()

	require.NoError(t, chat.MarkRead(ctx, conversationID, "tenant-1"))

	select {
	case event := <-stream:
		require.Equal(t, dto.DirectoryUpdated, event.Type)
		require.Equal(t, 0, event.Conversation.UnreadCounts["tenant-1"])
	case <-time.After(time.Second):
		t.Fatal("expected a directory update after read pass")
	}

	// Nothing left unread: the second pass emits no event.
	require.NoError(t, chat.MarkRead(ctx, conversationID, "tenant-1"))
	select {
	case <-stream:
		t.Fatal("clean read pass must not publish")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChatSetTypingSuppressesNoOpBroadcasts(t *testing.T) {
	chat, _, typing, conversationID := newChatFixture(t)
	ctx := context.Background()

	require.NoError(t, chat.SetTyping(ctx, conversationID, "tenant-1", true))
	users, err := typing.Typing(ctx, conversationID)
	require.NoError(t, err)
	require.Equal(t, []string{"tenant-1"}, users)

	// Same flag again is a no-op rather than an error.
	require.NoError(t, chat.SetTyping(ctx, conversationID, "tenant-1", true))

	require.NoError(t, chat.SetTyping(ctx, conversationID, "tenant-1", false))
	users, err = typing.Typing(ctx, conversationID)
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestChatDeleteMessageRefreshesDirectory(t *testing.T) {
	chat, conversations, _, conversationID := newChatFixture(t)
	ctx := context.Background()

	first, err := chat.Send(ctx, dto.MessageSendRequest{
		ConversationID: conversationID,
		SenderID:       "tenant-1",
		Text:           "first",
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	second, err := chat.Send(ctx, dto.MessageSendRequest{
		ConversationID: conversationID,
		SenderID:       "tenant-1",
		Text:           "second",
	})
	require.NoError(t, err)

	stream, cleanup := conversations.Subscribe("tenant-1")
	defer cleanup()

	require.NoError(t, chat.DeleteMessage(ctx, conversationID, second.ID, "tenant-1"))

	select {
	case event := <-stream:
		require.Equal(t, dto.DirectoryUpdated, event.Type)
		require.Equal(t, first.Text, event.Conversation.LastMessage)
	case <-time.After(time.Second):
		t.Fatal("expected a directory update after delete")
	}

	require.ErrorIs(t, chat.DeleteMessage(ctx, conversationID, first.ID, "advertiser-1"), ErrNotMessageSender)
}

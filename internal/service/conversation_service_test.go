package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rentora/rentora-api/internal/dto"
	"github.com/rentora/rentora-api/internal/repository"
)

func newConversationFixture(t *testing.T) (ConversationService, *gorm.DB) {
	t.Helper()
	db := setupServiceDB(t)
	typing := NewTypingService(nil, "", 30*time.Second, zerolog.Nop())
	svc := NewConversationService(repository.NewConversationRepository(db), typing, newTestValidator(), zerolog.Nop())
	return svc, db
}

func pairRequest(initiator, peer string) dto.ConversationCreateRequest {
	return dto.ConversationCreateRequest{
		Initiator: dto.ParticipantSnapshot{UserID: initiator, Role: "user", Name: "Tenant " + initiator},
		Peer:      dto.ParticipantSnapshot{UserID: peer, Role: "advertiser", Name: "Advertiser " + peer},
	}
}

func TestGetOrCreateConvergesOnOneConversation(t *testing.T) {
	svc, _ := newConversationFixture(t)
	ctx := context.Background()

	first, err := svc.GetOrCreate(ctx, pairRequest("tenant-1", "advertiser-1"))
	require.NoError(t, err)
	require.Len(t, first.Participants, 2)

	// The reversed pair resolves to the very same conversation.
	second, err := svc.GetOrCreate(ctx, pairRequest("advertiser-1", "tenant-1"))
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	listed, err := svc.List(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestGetOrCreateRejectsSelfConversation(t *testing.T) {
	svc, _ := newConversationFixture(t)

	_, err := svc.GetOrCreate(context.Background(), pairRequest("tenant-1", "tenant-1"))
	require.ErrorIs(t, err, ErrSelfConversation)
}

func TestDeleteRequiresParticipant(t *testing.T) {
	svc, _ := newConversationFixture(t)
	ctx := context.Background()

	conversation, err := svc.GetOrCreate(ctx, pairRequest("tenant-1", "advertiser-1"))
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, conversation.ID, "stranger"), ErrNotParticipant)

	require.NoError(t, svc.Delete(ctx, conversation.ID, "tenant-1"))
	_, err = svc.Get(ctx, conversation.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSubscribeReceivesDirectoryEvents(t *testing.T) {
	svc, _ := newConversationFixture(t)
	ctx := context.Background()

	conversation, err := svc.GetOrCreate(ctx, pairRequest("tenant-1", "advertiser-1"))
	require.NoError(t, err)

	stream, cleanup := svc.Subscribe("tenant-1")
	defer cleanup()

	svc.PublishUpdate(ctx, conversation.ID)

	select {
	case event := <-stream:
		require.Equal(t, dto.DirectoryUpdated, event.Type)
		require.Equal(t, conversation.ID, event.ConversationID)
		require.NotNil(t, event.Conversation)
	case <-time.After(time.Second):
		t.Fatal("expected a directory update event")
	}

	require.NoError(t, svc.Delete(ctx, conversation.ID, "tenant-1"))

	select {
	case event := <-stream:
		require.Equal(t, dto.DirectoryDeleted, event.Type)
		require.Equal(t, conversation.ID, event.ConversationID)
		require.Nil(t, event.Conversation)
	case <-time.After(time.Second):
		t.Fatal("expected a directory delete event")
	}
}

func TestSubscribeCleanupClosesStream(t *testing.T) {
	svc, _ := newConversationFixture(t)

	stream, cleanup := svc.Subscribe("tenant-1")
	cleanup()

	_, open := <-stream
	require.False(t, open)
}

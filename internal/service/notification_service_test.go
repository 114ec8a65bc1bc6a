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

func newNotificationFixture(t *testing.T) NotificationService {
	t.Helper()
	db := setupServiceDB(t)
	return NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, newTestValidator(), zerolog.Nop())
}

func TestNotifyPersistsAndStreams(t *testing.T) {
	svc := newNotificationFixture(t)
	ctx := context.Background()

	stream, cleanup := svc.Subscribe("advertiser-1")
	defer cleanup()

	dispatched, err := svc.Notify(ctx, dto.NotificationDispatchRequest{
		RecipientID:    "advertiser-1",
		RecipientType:  "advertiser",
		ActorName:      "Alice",
		ConversationID: "conv-1",
	})
	require.NoError(t, err)
	require.NotZero(t, dispatched.ID)
	require.False(t, dispatched.Read)

	select {
	case received := <-stream:
		require.Equal(t, dispatched.ID, received.ID)
		require.Equal(t, "Alice", received.ActorName)
	case <-time.After(time.Second):
		t.Fatal("expected a streamed notification")
	}

	listed, err := svc.List(ctx, "advertiser-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestNotifyValidatesPayload(t *testing.T) {
	svc := newNotificationFixture(t)

	_, err := svc.Notify(context.Background(), dto.NotificationDispatchRequest{
		RecipientID: "advertiser-1",
	})
	require.Error(t, err)
}

func TestMarkReadScopedToRecipient(t *testing.T) {
	svc := newNotificationFixture(t)
	ctx := context.Background()

	dispatched, err := svc.Notify(ctx, dto.NotificationDispatchRequest{
		RecipientID:    "advertiser-1",
		RecipientType:  "advertiser",
		ActorName:      "Alice",
		ConversationID: "conv-1",
	})
	require.NoError(t, err)

	updated, err := svc.MarkRead(ctx, dispatched.ID, "advertiser-1")
	require.NoError(t, err)
	require.True(t, updated.Read)

	_, err = svc.MarkRead(ctx, dispatched.ID, "tenant-1")
	require.Error(t, err)
}

func TestNotificationSubscribersAreIsolated(t *testing.T) {
	svc := newNotificationFixture(t)
	ctx := context.Background()

	other, cleanup := svc.Subscribe("tenant-9")
	defer cleanup()

	_, err := svc.Notify(ctx, dto.NotificationDispatchRequest{
		RecipientID:    "advertiser-1",
		RecipientType:  "advertiser",
		ActorName:      "Alice",
		ConversationID: "conv-1",
	})
	require.NoError(t, err)

	select {
	case <-other:
		t.Fatal("notification leaked to an unrelated subscriber")
	case <-time.After(50 * time.Millisecond):
	}
}

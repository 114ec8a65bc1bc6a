package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetTypingIsIdempotent(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	svc := NewTypingService(redisClient, "rentora", 30*time.Second, zerolog.Nop())
	ctx := context.Background()

	changed, err := svc.SetTyping(ctx, "conv-1", "tenant-1", true)
	require.NoError(t, err)
	require.True(t, changed)

	// Same boolean again: no change, no write.
	changed, err = svc.SetTyping(ctx, "conv-1", "tenant-1", true)
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = svc.SetTyping(ctx, "conv-1", "tenant-1", false)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = svc.SetTyping(ctx, "conv-1", "tenant-1", false)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestTypingReturnsSortedUsers(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	svc := NewTypingService(redisClient, "rentora", 30*time.Second, zerolog.Nop())
	ctx := context.Background()

	_, err = svc.SetTyping(ctx, "conv-1", "zoe", true)
	require.NoError(t, err)
	_, err = svc.SetTyping(ctx, "conv-1", "adam", true)
	require.NoError(t, err)

	users, err := svc.Typing(ctx, "conv-1")
	require.NoError(t, err)
	require.Equal(t, []string{"adam", "zoe"}, users)

	// Typing in one conversation never leaks into another.
	other, err := svc.Typing(ctx, "conv-2")
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestClearConversationDropsTypingSet(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	svc := NewTypingService(redisClient, "rentora", 30*time.Second, zerolog.Nop())
	ctx := context.Background()

	_, err = svc.SetTyping(ctx, "conv-1", "tenant-1", true)
	require.NoError(t, err)

	require.NoError(t, svc.ClearConversation(ctx, "conv-1"))

	users, err := svc.Typing(ctx, "conv-1")
	require.NoError(t, err)
	require.Empty(t, users)

	// After the clear the flag can be set again as a fresh change.
	changed, err := svc.SetTyping(ctx, "conv-1", "tenant-1", true)
	require.NoError(t, err)
	require.True(t, changed)
}

func TestClearUserSweepsEveryConversation(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	svc := NewTypingService(redisClient, "rentora", 30*time.Second, zerolog.Nop())
	ctx := context.Background()

	_, err = svc.SetTyping(ctx, "conv-1", "tenant-1", true)
	require.NoError(t, err)
	_, err = svc.SetTyping(ctx, "conv-2", "tenant-1", true)
	require.NoError(t, err)
	_, err = svc.SetTyping(ctx, "conv-2", "advertiser-1", true)
	require.NoError(t, err)

	// Flags set on another node live only in redis.
	_, err = mini.SetAdd("rentora:typing:conv-3", "tenant-1")
	require.NoError(t, err)

	require.NoError(t, svc.ClearUser(ctx, "tenant-1"))

	for _, conversationID := range []string{"conv-1", "conv-3"} {
		users, err := svc.Typing(ctx, conversationID)
		require.NoError(t, err)
		require.Empty(t, users)
	}

	users, err := svc.Typing(ctx, "conv-2")
	require.NoError(t, err)
	require.Equal(t, []string{"advertiser-1"}, users)

	// The local mirror forgot the flag too, so re-setting it is a change.
	changed, err := svc.SetTyping(ctx, "conv-1", "tenant-1", true)
	require.NoError(t, err)
	require.True(t, changed)
}

func TestClearUserWorksWithoutRedis(t *testing.T) {
	svc := NewTypingService(nil, "", 30*time.Second, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.SetTyping(ctx, "conv-1", "tenant-1", true)
	require.NoError(t, err)

	require.NoError(t, svc.ClearUser(ctx, "tenant-1"))

	users, err := svc.Typing(ctx, "conv-1")
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestTypingWorksWithoutRedis(t *testing.T) {
	svc := NewTypingService(nil, "", 30*time.Second, zerolog.Nop())
	ctx := context.Background()

	changed, err := svc.SetTyping(ctx, "conv-1", "tenant-1", true)
	require.NoError(t, err)
	require.True(t, changed)

	users, err := svc.Typing(ctx, "conv-1")
	require.NoError(t, err)
	require.Equal(t, []string{"tenant-1"}, users)
}

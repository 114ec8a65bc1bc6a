package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rentora/rentora-api/internal/repository"
)

// PresenceService marks users online/offline and maintains last-seen.
// All writes are best-effort: a failed presence write is logged and never
// surfaced to the caller.
type PresenceService interface {
	Connect(ctx context.Context, userID string)
	Disconnect(ctx context.Context, userID string)
}

type presenceService struct {
	users  repository.UserRepository
	redis  *redis.Client
	typing TypingService
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewPresenceService constructs a presence tracker.
func NewPresenceService(users repository.UserRepository, redisClient *redis.Client, typing TypingService, channelBase string, ttl time.Duration, logger zerolog.Logger) PresenceService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	prefix := "presence"
	if channelBase != "" {
		prefix = channelBase + ":presence"
	}

	return &presenceService{
		users:  users,
		redis:  redisClient,
		typing: typing,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With().Str("component", "presence_service").Logger(),
	}
}

func (s *presenceService) Connect(ctx context.Context, userID string) {
	now := time.Now().UTC()
	if err := s.users.SetPresence(ctx, userID, true, now); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to write online presence")
	}

	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, s.key(userID), now.Format(time.RFC3339), s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to mirror presence to redis")
	}
}

// Disconnect marks the user offline and drops their typing flags: an offline
// user must never be shown as typing in any conversation.
func (s *presenceService) Disconnect(ctx context.Context, userID string) {
	now := time.Now().UTC()
	if err := s.users.SetPresence(ctx, userID, false, now); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to write offline presence")
	}

	if s.typing != nil {
		if err := s.typing.ClearUser(ctx, userID); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to clear typing flags")
		}
	}

	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to clear presence key")
	}
}

func (s *presenceService) key(userID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, userID)
}

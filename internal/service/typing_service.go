package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// TypingService maintains the ephemeral per-conversation set of typing users.
// The shared set lives in Redis so every node sees it; a local mirror makes
// repeated writes of the same boolean a no-op.
type TypingService interface {
	SetTyping(ctx context.Context, conversationID, userID string, isTyping bool) (bool, error)
	Typing(ctx context.Context, conversationID string) ([]string, error)
	ClearConversation(ctx context.Context, conversationID string) error
	ClearUser(ctx context.Context, userID string) error
}

type typingService struct {
	mu     sync.Mutex
	local  map[string]map[string]struct{}
	redis  *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewTypingService constructs a typing signal service.
func NewTypingService(redisClient *redis.Client, channelBase string, ttl time.Duration, logger zerolog.Logger) TypingService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	prefix := "typing"
	if channelBase != "" {
		prefix = channelBase + ":typing"
	}

	return &typingService{
		local:  make(map[string]map[string]struct{}),
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With().Str("component", "typing_service").Logger(),
	}
}

// SetTyping reflects the desired boolean into the shared set and reports
// whether anything changed. Setting the same value twice issues no write.
// Debounce timing is the input layer's responsibility, not this service's.
func (s *typingService) SetTyping(ctx context.Context, conversationID, userID string, isTyping bool) (bool, error) {
	s.mu.Lock()
	users, ok := s.local[conversationID]
	if !ok {
		users = make(map[string]struct{})
		s.local[conversationID] = users
	}

	_, present := users[userID]
	if present == isTyping {
		s.mu.Unlock()
		return false, nil
	}

	if isTyping {
		users[userID] = struct{}{}
	} else {
		delete(users, userID)
		if len(users) == 0 {
			delete(s.local, conversationID)
		}
	}
	s.mu.Unlock()

	if s.redis == nil {
		return true, nil
	}

	key := s.key(conversationID)
	if isTyping {
		if err := s.redis.SAdd(ctx, key, userID).Err(); err != nil {
			return true, err
		}
		if err := s.redis.Expire(ctx, key, s.ttl).Err(); err != nil {
			s.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to refresh typing ttl")
		}
		return true, nil
	}

	return true, s.redis.SRem(ctx, key, userID).Err()
}

func (s *typingService) Typing(ctx context.Context, conversationID string) ([]string, error) {
	if s.redis != nil {
		users, err := s.redis.SMembers(ctx, s.key(conversationID)).Result()
		if err != nil {
			return nil, err
		}
		sort.Strings(users)
		return users, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]string, 0, len(s.local[conversationID]))
	for userID := range s.local[conversationID] {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users, nil
}

func (s *typingService) ClearConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	delete(s.local, conversationID)
	s.mu.Unlock()

	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, s.key(conversationID)).Err()
}

// ClearUser drops the user's typing flag from every conversation, local and
// shared. Called when the user goes offline.
func (s *typingService) ClearUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	for conversationID, users := range s.local {
		if _, ok := users[userID]; ok {
			delete(users, userID)
			if len(users) == 0 {
				delete(s.local, conversationID)
			}
		}
	}
	s.mu.Unlock()

	if s.redis == nil {
		return nil
	}

	// Other nodes may hold flags this node never saw; sweep the shared sets.
	iter := s.redis.Scan(ctx, 0, s.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.SRem(ctx, iter.Val(), userID).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *typingService) key(conversationID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, conversationID)
}

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/rentora/rentora-api/internal/dto"
	"github.com/rentora/rentora-api/internal/models"
	"github.com/rentora/rentora-api/internal/repository"
)

const directoryBufferSize = 16

var (
	// ErrSelfConversation indicates both participant ids were the same user.
	ErrSelfConversation = errors.New("conversation requires two distinct participants")
	// ErrNotParticipant indicates the caller is not part of the conversation.
	ErrNotParticipant = errors.New("user is not a conversation participant")
)

// ConversationService maintains the per-user conversation directory: the live
// list of conversations ordered by recency, idempotent pair creation, and the
// directory event stream.
type ConversationService interface {
	List(ctx context.Context, userID string) ([]dto.ConversationResponse, error)
	Get(ctx context.Context, conversationID string) (dto.ConversationResponse, error)
	GetOrCreate(ctx context.Context, payload dto.ConversationCreateRequest) (dto.ConversationResponse, error)
	Delete(ctx context.Context, conversationID, callerID string) error
	Subscribe(userID string) (<-chan dto.DirectoryEvent, func())
	PublishUpdate(ctx context.Context, conversationID string)
}

type conversationService struct {
	conversations repository.ConversationRepository
	typing        TypingService
	validator     *validator.Validate
	logger        zerolog.Logger
	broker        *directoryBroker
}

// directoryBroker fans directory events out to per-user subscriber channels.
// Subscribe hands back a release func; the subscription exists exactly between
// the two calls, so there is no flag-guarded duplicate-subscription state.
type directoryBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.DirectoryEvent]struct{}
}

// NewConversationService constructs a conversation directory service.
func NewConversationService(conversations repository.ConversationRepository, typing TypingService, validate *validator.Validate, logger zerolog.Logger) ConversationService {
	return &conversationService{
		conversations: conversations,
		typing:        typing,
		validator:     validate,
		logger:        logger.With().Str("component", "conversation_service").Logger(),
		broker: &directoryBroker{
			subscribers: make(map[string]map[chan dto.DirectoryEvent]struct{}),
		},
	}
}

func (s *conversationService) List(ctx context.Context, userID string) ([]dto.ConversationResponse, error) {
	conversations, err := s.conversations.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	typingByID := make(map[string][]string, len(conversations))
	for _, conversation := range conversations {
		users, err := s.typing.Typing(ctx, conversation.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("conversation_id", conversation.ID).Msg("failed to read typing set")
			continue
		}
		typingByID[conversation.ID] = users
	}

	return dto.NewConversationResponseSlice(conversations, typingByID), nil
}

func (s *conversationService) Get(ctx context.Context, conversationID string) (dto.ConversationResponse, error) {
	conversation, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return dto.ConversationResponse{}, err
	}

	typing, err := s.typing.Typing(ctx, conversationID)
	if err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to read typing set")
		typing = nil
	}

	return dto.NewConversationResponse(conversation, typing), nil
}

// GetOrCreate returns the conversation for the pair, creating it when absent.
// The ID is derived from the sorted pair, so two concurrent calls for the same
// pair always converge on one conversation.
func (s *conversationService) GetOrCreate(ctx context.Context, payload dto.ConversationCreateRequest) (dto.ConversationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ConversationResponse{}, err
	}

	if payload.Initiator.UserID == payload.Peer.UserID {
		return dto.ConversationResponse{}, ErrSelfConversation
	}

	conversation := models.Conversation{
		ID: repository.ConversationID(payload.Initiator.UserID, payload.Peer.UserID),
		Participants: []models.ConversationParticipant{
			participantFromSnapshot(payload.Initiator),
			participantFromSnapshot(payload.Peer),
		},
	}

	if err := s.conversations.CreateIfAbsent(ctx, &conversation); err != nil {
		return dto.ConversationResponse{}, err
	}

	return s.Get(ctx, conversation.ID)
}

// Delete removes the conversation and its entire message log as one batch.
// Only a participant may delete a conversation; this is enforced here, not
// just by hiding the affordance in a client.
func (s *conversationService) Delete(ctx context.Context, conversationID, callerID string) error {
	conversation, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return err
	}

	participants := make([]string, 0, len(conversation.Participants))
	isParticipant := false
	for _, participant := range conversation.Participants {
		participants = append(participants, participant.UserID)
		if participant.UserID == callerID {
			isParticipant = true
		}
	}
	if !isParticipant {
		return ErrNotParticipant
	}

	if err := s.conversations.DeleteCascade(ctx, conversationID); err != nil {
		return err
	}

	if err := s.typing.ClearConversation(ctx, conversationID); err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to clear typing set")
	}

	event := dto.DirectoryEvent{
		Type:           dto.DirectoryDeleted,
		ConversationID: conversationID,
		SentAt:         time.Now().UTC(),
	}
	for _, userID := range participants {
		s.broker.broadcast(userID, event)
	}

	return nil
}

// Subscribe opens a directory event stream for the user. The returned release
// func tears the subscription down; callers must invoke it when the stream
// scope ends.
func (s *conversationService) Subscribe(userID string) (<-chan dto.DirectoryEvent, func()) {
	channel := make(chan dto.DirectoryEvent, directoryBufferSize)
	s.broker.subscribe(userID, channel)

	cleanup := func() {
		s.broker.unsubscribe(userID, channel)
	}

	return channel, cleanup
}

// PublishUpdate pushes the conversation's fresh summary to every
// participant's directory stream.
func (s *conversationService) PublishUpdate(ctx context.Context, conversationID string) {
	response, err := s.Get(ctx, conversationID)
	if err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to load conversation for directory update")
		return
	}

	event := dto.DirectoryEvent{
		Type:           dto.DirectoryUpdated,
		ConversationID: conversationID,
		Conversation:   &response,
		SentAt:         time.Now().UTC(),
	}

	for _, participant := range response.Participants {
		s.broker.broadcast(participant.UserID, event)
	}
}

func participantFromSnapshot(snapshot dto.ParticipantSnapshot) models.ConversationParticipant {
	role := snapshot.Role
	if role == "" {
		role = "user"
	}

	return models.ConversationParticipant{
		UserID:     snapshot.UserID,
		Role:       role,
		Name:       snapshot.Name,
		PictureURL: snapshot.PictureURL,
	}
}

func (b *directoryBroker) subscribe(userID string, ch chan dto.DirectoryEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan dto.DirectoryEvent]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
}

func (b *directoryBroker) unsubscribe(userID string, ch chan dto.DirectoryEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[userID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, userID)
		}
	}
}

func (b *directoryBroker) broadcast(userID string, event dto.DirectoryEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[userID] {
		select {
		case ch <- event:
		default:
		}
	}
}

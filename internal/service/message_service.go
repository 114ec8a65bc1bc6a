package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/rentora/rentora-api/internal/dto"
	"github.com/rentora/rentora-api/internal/models"
	"github.com/rentora/rentora-api/internal/observability"
	"github.com/rentora/rentora-api/internal/repository"
)

var (
	// ErrEmptyMessage indicates the send carried neither text nor attachments.
	ErrEmptyMessage = errors.New("message requires text or attachments")
	// ErrSendInFlight indicates another send is outstanding for the thread.
	ErrSendInFlight = errors.New("a send is already in flight for this conversation")
	// ErrNotMessageSender indicates the caller did not author the message.
	ErrNotMessageSender = errors.New("only the sender may delete a message")
)

// NotificationDispatcher is the external collaborator invoked after a
// successful send; dispatch is fire-and-forget from the thread's perspective.
type NotificationDispatcher interface {
	Notify(ctx context.Context, payload dto.NotificationDispatchRequest) (dto.NotificationResponse, error)
}

// MessageService owns the append-only message log of a conversation.
type MessageService interface {
	History(ctx context.Context, query dto.MessageHistoryQuery) ([]dto.MessageResponse, error)
	Send(ctx context.Context, payload dto.MessageSendRequest) (dto.MessageResponse, error)
	MarkRead(ctx context.Context, conversationID, userID string) (int64, error)
	Delete(ctx context.Context, conversationID, messageID, callerID string) error
}

type messageService struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	notifier      NotificationDispatcher
	validator     *validator.Validate
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
	tracer        trace.Tracer

	// One outstanding send per thread at a time; re-entrant sends are
	// rejected rather than queued.
	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// NewMessageService constructs a message thread service.
func NewMessageService(messages repository.MessageRepository, conversations repository.ConversationRepository, notifier NotificationDispatcher, validate *validator.Validate, logger zerolog.Logger) MessageService {
	return &messageService{
		messages:      messages,
		conversations: conversations,
		notifier:      notifier,
		validator:     validate,
		sanitizer:     bluemonday.StrictPolicy(),
		logger:        logger.With().Str("component", "message_service").Logger(),
		tracer:        otel.Tracer("github.com/rentora/rentora-api/internal/service/message"),
		inflight:      make(map[string]struct{}),
	}
}

func (s *messageService) History(ctx context.Context, query dto.MessageHistoryQuery) ([]dto.MessageResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	before := time.Time{}
	if query.Before != nil {
		before = *query.Before
	}

	messages, err := s.messages.ListByConversation(ctx, query.ConversationID, before, query.Limit)
	if err != nil {
		return nil, err
	}

	return dto.NewMessageResponseSlice(messages), nil
}

// Send appends a message and updates the conversation summary in one
// transaction, then dispatches a notification to the other participant.
// Notification failure is logged and never rolls the message back.
func (s *messageService) Send(ctx context.Context, payload dto.MessageSendRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	text := strings.TrimSpace(s.sanitizer.Sanitize(payload.Text))
	if text == "" && len(payload.Attachments) == 0 {
		return dto.MessageResponse{}, ErrEmptyMessage
	}

	if !s.acquireSend(payload.ConversationID) {
		return dto.MessageResponse{}, ErrSendInFlight
	}
	defer s.releaseSend(payload.ConversationID)

	conversation, err := s.conversations.Get(ctx, payload.ConversationID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	sender, recipient, err := resolveParticipants(conversation, payload.SenderID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	attachments, err := dto.MarshalAttachments(payload.Attachments)
	if err != nil {
		return dto.MessageResponse{}, fmt.Errorf("failed to encode attachments: %w", err)
	}

	spanCtx, span := s.tracer.Start(ctx, "message.send", trace.WithAttributes(
		attribute.String("conversation_id", payload.ConversationID),
		attribute.String("sender_id", payload.SenderID),
		attribute.Int("attachment_count", len(payload.Attachments)),
	))
	defer span.End()

	message := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		SenderID:       sender.UserID,
		Text:           text,
		Attachments:    attachments,
		IsRead:         false,
		CreatedAt:      time.Now().UTC(),
	}

	preview := messagePreview(text, len(payload.Attachments))
	if err := s.messages.Append(spanCtx, &message, preview, recipient.UserID); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	kind := "text"
	if len(payload.Attachments) > 0 {
		kind = "attachment"
	}
	observability.ChatMessagesSent().WithLabelValues(kind).Inc()

	s.dispatchNotification(spanCtx, sender, recipient, conversation.ID)

	return dto.NewMessageResponse(message), nil
}

// MarkRead flips unread messages authored by the other participant and zeroes
// the reader's counter as one batch. Idempotent: a second call issues no
// writes. Returns the number of messages flipped.
func (s *messageService) MarkRead(ctx context.Context, conversationID, userID string) (int64, error) {
	return s.messages.MarkAllRead(ctx, conversationID, userID)
}

// Delete removes a message. Only the sender may delete their own message,
// enforced here rather than trusted to the client. The conversation's
// lastMessage preview is recomputed from the remaining tail.
func (s *messageService) Delete(ctx context.Context, conversationID, messageID, callerID string) error {
	message, err := s.messages.Get(ctx, conversationID, messageID)
	if err != nil {
		return err
	}

	if message.SenderID != callerID {
		return ErrNotMessageSender
	}

	if err := s.messages.Delete(ctx, conversationID, messageID); err != nil {
		return err
	}

	latest, err := s.messages.Latest(ctx, conversationID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.conversations.SetLastMessage(ctx, conversationID, "", nil)
	case err != nil:
		return err
	default:
		response := dto.NewMessageResponse(latest)
		preview := messagePreview(latest.Text, len(response.Attachments))
		at := latest.CreatedAt
		return s.conversations.SetLastMessage(ctx, conversationID, preview, &at)
	}
}

func (s *messageService) dispatchNotification(ctx context.Context, sender, recipient models.ConversationParticipant, conversationID string) {
	if s.notifier == nil {
		return
	}

	recipientType := recipient.Role
	if recipientType == "" {
		recipientType = "user"
	}

	_, err := s.notifier.Notify(ctx, dto.NotificationDispatchRequest{
		RecipientID:    recipient.UserID,
		RecipientType:  recipientType,
		ActorName:      sender.Name,
		ConversationID: conversationID,
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("conversation_id", conversationID).
			Str("recipient_id", recipient.UserID).
			Msg("failed to dispatch message notification")
	}
}

func (s *messageService) acquireSend(conversationID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()

	if _, busy := s.inflight[conversationID]; busy {
		return false
	}
	s.inflight[conversationID] = struct{}{}
	return true
}

func (s *messageService) releaseSend(conversationID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, conversationID)
}

func resolveParticipants(conversation models.Conversation, senderID string) (sender, recipient models.ConversationParticipant, err error) {
	for _, participant := range conversation.Participants {
		if participant.UserID == senderID {
			sender = participant
		} else {
			recipient = participant
		}
	}

	if sender.UserID == "" || recipient.UserID == "" {
		return models.ConversationParticipant{}, models.ConversationParticipant{}, ErrNotParticipant
	}

	return sender, recipient, nil
}

func messagePreview(text string, attachmentCount int) string {
	if text != "" {
		return text
	}
	if attachmentCount == 1 {
		return "sent 1 attachment"
	}
	return fmt.Sprintf("sent %d attachments", attachmentCount)
}

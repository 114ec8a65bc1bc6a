package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rentora/rentora-api/internal/dto"
	"github.com/rentora/rentora-api/internal/observability"
)

const (
	chatSendBufferSize = 32
	// A thread's typing flag clears itself after this much input inactivity;
	// the timer lives here in the input layer, not in the typing service.
	typingIdleTimeout = 3 * time.Second
)

// ChatConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ChatConnectionOptions struct {
	UserID         string
	ConversationID string
	CorrelationID  string
	Context        context.Context
}

// ChatService serves websocket thread connections and coordinates the
// realtime fan-out of message, typing, read and presence events.
type ChatService interface {
	ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions)
	Send(ctx context.Context, payload dto.MessageSendRequest) (dto.MessageResponse, error)
	MarkRead(ctx context.Context, conversationID, userID string) error
	SetTyping(ctx context.Context, conversationID, userID string, isTyping bool) error
	DeleteMessage(ctx context.Context, conversationID, messageID, callerID string) error
	Start(ctx context.Context)
}

type chatService struct {
	messages    MessageService
	typing      TypingService
	presence    PresenceService
	directory   ConversationService
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	hub         *chatHub
	nodeID      string
}

// chatHub tracks the active websocket clients per conversation. Register and
// unregister bracket a client's lifetime exactly once, so each connection owns
// exactly one thread subscription.
type chatHub struct {
	mu    sync.RWMutex
	rooms map[string]map[*chatClient]struct{}
	log   zerolog.Logger
}

type chatClient struct {
	conn        *websocket.Conn
	send        chan dto.ChatServerEvent
	options     ChatConnectionOptions
	service     *chatService
	closed      chan struct{}
	once        sync.Once
	baseCtx     context.Context
	typingTimer *time.Timer
	typingMu    sync.Mutex
}

type chatEvent struct {
	Source string              `json:"source"`
	Event  dto.ChatServerEvent `json:"event"`
}

// NewChatService creates a websocket chat service instance.
func NewChatService(messages MessageService, typing TypingService, presence PresenceService, directory ConversationService, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) ChatService {
	hub := &chatHub{
		rooms: make(map[string]map[*chatClient]struct{}),
		log:   logger.With().Str("component", "chat_hub").Logger(),
	}

	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":chat"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".chat"
	}

	return &chatService{
		messages:    messages,
		typing:      typing,
		presence:    presence,
		directory:   directory,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "chat_service").Logger(),
		hub:         hub,
		nodeID:      uuid.NewString(),
	}
}

func (s *chatService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *chatService) ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := &chatClient{
		conn:    conn,
		send:    make(chan dto.ChatServerEvent, chatSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
		baseCtx: baseCtx,
	}

	s.hub.register(client)
	observability.ChatConnectionsTotal().Inc()
	observability.ChatConnectionsActive().Inc()

	s.presence.Connect(baseCtx, opts.UserID)
	s.fanOut(baseCtx, dto.ChatServerEvent{
		Type:           dto.EventPresence,
		ConversationID: opts.ConversationID,
		UserID:         opts.UserID,
		IsOnline:       true,
		SentAt:         time.Now().UTC(),
	})

	go client.writer()
	client.reader()
}

// Send appends the message through the thread service, then fans the event
// out to thread subscribers and both participants' directory streams.
func (s *chatService) Send(ctx context.Context, payload dto.MessageSendRequest) (dto.MessageResponse, error) {
	response, err := s.messages.Send(ctx, payload)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	// The sender stopped typing the moment the message went out.
	if err := s.SetTyping(ctx, payload.ConversationID, payload.SenderID, false); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear typing after send")
	}

	s.fanOut(ctx, dto.ChatServerEvent{
		Type:           dto.FrameMessage,
		ConversationID: response.ConversationID,
		Message:        &response,
		SentAt:         time.Now().UTC(),
	})
	s.directory.PublishUpdate(ctx, response.ConversationID)

	return response, nil
}

func (s *chatService) MarkRead(ctx context.Context, conversationID, userID string) error {
	affected, err := s.messages.MarkRead(ctx, conversationID, userID)
	if err != nil {
		return err
	}

	if affected == 0 {
		return nil
	}

	s.fanOut(ctx, dto.ChatServerEvent{
		Type:           dto.FrameRead,
		ConversationID: conversationID,
		ReadBy:         userID,
		SentAt:         time.Now().UTC(),
	})
	s.directory.PublishUpdate(ctx, conversationID)

	return nil
}

func (s *chatService) SetTyping(ctx context.Context, conversationID, userID string, isTyping bool) error {
	changed, err := s.typing.SetTyping(ctx, conversationID, userID, isTyping)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	observability.TypingEvents().Inc()

	typingUsers, err := s.typing.Typing(ctx, conversationID)
	if err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to read typing set after change")
		typingUsers = nil
	}

	s.fanOut(ctx, dto.ChatServerEvent{
		Type:           dto.FrameTyping,
		ConversationID: conversationID,
		UserID:         userID,
		TypingUsers:    typingUsers,
		SentAt:         time.Now().UTC(),
	})

	return nil
}

func (s *chatService) DeleteMessage(ctx context.Context, conversationID, messageID, callerID string) error {
	if err := s.messages.Delete(ctx, conversationID, messageID, callerID); err != nil {
		return err
	}

	s.directory.PublishUpdate(ctx, conversationID)
	return nil
}

// fanOut delivers the event to local subscribers and publishes it for the
// other nodes.
func (s *chatService) fanOut(ctx context.Context, event dto.ChatServerEvent) {
	s.hub.broadcast(event.ConversationID, event)
	if err := s.publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish chat event")
	}
}

func (s *chatService) publish(ctx context.Context, event dto.ChatServerEvent) error {
	envelope := chatEvent{Source: s.nodeID, Event: event}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *chatService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("chat redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *chatService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "rentora-chat", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats chat subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain chat nats subscription")
		}
	}()
}

func (s *chatService) handleEvent(data []byte) {
	var envelope chatEvent
	if err := json.Unmarshal(data, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid chat event")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}

	s.hub.broadcast(envelope.Event.ConversationID, envelope.Event)
}

func (h *chatHub) register(client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.ConversationID
	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*chatClient]struct{})
	}
	h.rooms[room][client] = struct{}{}
	h.log.Debug().Str("conversation_id", room).Str("user_id", client.options.UserID).Msg("chat client connected")
}

func (h *chatHub) unregister(client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.ConversationID
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	h.log.Debug().Str("conversation_id", room).Str("user_id", client.options.UserID).Msg("chat client disconnected")
}

func (h *chatHub) broadcast(conversationID string, event dto.ChatServerEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[conversationID] {
		select {
		case client.send <- event:
		default:
			h.log.Warn().Str("conversation_id", conversationID).Str("user_id", client.options.UserID).Msg("dropping chat event for slow client")
		}
	}
}

func (c *chatClient) reader() {
	defer c.close()

	for {
		var frame dto.ChatClientFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.service.logger.Debug().Err(err).Msg("chat read loop ended")
			return
		}

		switch frame.Type {
		case dto.FrameMessage:
			c.handleMessage(frame)
		case dto.FrameTyping:
			c.handleTyping(frame.IsTyping)
		case dto.FrameRead:
			if err := c.service.MarkRead(c.baseCtx, c.options.ConversationID, c.options.UserID); err != nil {
				c.service.logger.Warn().Err(err).Msg("failed to mark thread read")
			}
		default:
			c.service.logger.Debug().Str("type", frame.Type).Msg("ignoring unknown chat frame")
		}
	}
}

func (c *chatClient) handleMessage(frame dto.ChatClientFrame) {
	c.stopTypingTimer()

	_, err := c.service.Send(c.baseCtx, dto.MessageSendRequest{
		ConversationID: c.options.ConversationID,
		SenderID:       c.options.UserID,
		Text:           frame.Text,
		Attachments:    frame.Attachments,
	})
	if err != nil {
		c.service.logger.Warn().Err(err).Msg("failed to process chat message")
	}
}

// handleTyping reflects the flag and arms the inactivity timer: 3 seconds
// without another typing frame clears the flag without client action.
func (c *chatClient) handleTyping(isTyping bool) {
	if err := c.service.SetTyping(c.baseCtx, c.options.ConversationID, c.options.UserID, isTyping); err != nil {
		c.service.logger.Warn().Err(err).Msg("failed to set typing signal")
	}

	c.typingMu.Lock()
	defer c.typingMu.Unlock()

	if !isTyping {
		if c.typingTimer != nil {
			c.typingTimer.Stop()
		}
		return
	}

	if c.typingTimer == nil {
		c.typingTimer = time.AfterFunc(typingIdleTimeout, func() {
			if err := c.service.SetTyping(c.baseCtx, c.options.ConversationID, c.options.UserID, false); err != nil {
				c.service.logger.Warn().Err(err).Msg("failed to auto-clear typing signal")
			}
		})
		return
	}
	c.typingTimer.Reset(typingIdleTimeout)
}

func (c *chatClient) stopTypingTimer() {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()
	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
}

func (c *chatClient) writer() {
	defer c.close()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *chatClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.stopTypingTimer()
		c.service.hub.unregister(c)
		observability.ChatConnectionsActive().Dec()

		if err := c.service.SetTyping(c.baseCtx, c.options.ConversationID, c.options.UserID, false); err != nil {
			c.service.logger.Warn().Err(err).Msg("failed to clear typing on disconnect")
		}

		c.service.presence.Disconnect(c.baseCtx, c.options.UserID)
		c.service.fanOut(c.baseCtx, dto.ChatServerEvent{
			Type:           dto.EventPresence,
			ConversationID: c.options.ConversationID,
			UserID:         c.options.UserID,
			IsOnline:       false,
			SentAt:         time.Now().UTC(),
		})

		_ = c.conn.Close()
	})
}

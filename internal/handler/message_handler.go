package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/rentora/rentora-api/internal/dto"
	"github.com/rentora/rentora-api/internal/service"
	"github.com/rentora/rentora-api/internal/utils"
)

// MessageHandler wires the message thread endpoints: history, send, read
// pass, typing beacon, deletion and attachment upload.
type MessageHandler struct {
	chat        service.ChatService
	messages    service.MessageService
	attachments service.AttachmentService
	logger      zerolog.Logger
}

// NewMessageHandler creates a message handler instance.
func NewMessageHandler(chat service.ChatService, messages service.MessageService, attachments service.AttachmentService, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		chat:        chat,
		messages:    messages,
		attachments: attachments,
		logger:      logger.With().Str("component", "message_handler").Logger(),
	}
}

// Register binds message routes under the conversations group.
func (h *MessageHandler) Register(router fiber.Router) {
	router.Get("/:id/messages", h.history)
	router.Post("/:id/messages", h.send)
	router.Delete("/:id/messages/:messageID", h.delete)
	router.Post("/:id/read", h.markRead)
	router.Post("/:id/typing", h.typing)
	router.Post("/:id/attachments", h.upload)
}

func (h *MessageHandler) history(c *fiber.Ctx) error {
	conversationID := c.Params("id")
	if conversationID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "conversation id required")
	}

	var beforePtr *time.Time
	if before := c.Query("before"); before != "" {
		parsed, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid before timestamp")
		}
		beforePtr = &parsed
	}

	limit := 0
	if limitRaw := c.Query("limit"); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	query := dto.MessageHistoryQuery{
		ConversationID: conversationID,
		Before:         beforePtr,
		Limit:          limit,
	}

	messages, err := h.messages.History(requestContext(c), query)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "message history", messages)
}

func (h *MessageHandler) send(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.MessageSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	payload.ConversationID = c.Params("id")
	payload.SenderID = userID

	message, err := h.chat.Send(requestContext(c), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSendInFlight):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, service.ErrNotParticipant):
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "conversation not found")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *MessageHandler) delete(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	conversationID := c.Params("id")
	messageID := c.Params("messageID")
	if conversationID == "" || messageID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "conversation and message ids required")
	}

	if err := h.chat.DeleteMessage(requestContext(c), conversationID, messageID, userID); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "message not found")
		case errors.Is(err, service.ErrNotMessageSender):
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		default:
			return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
		}
	}

	return utils.SendSuccess(c, "message deleted", nil)
}

func (h *MessageHandler) markRead(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	conversationID := c.Params("id")
	if conversationID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "conversation id required")
	}

	if err := h.chat.MarkRead(requestContext(c), conversationID, userID); err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "conversation marked read", nil)
}

func (h *MessageHandler) typing(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	conversationID := c.Params("id")
	if conversationID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "conversation id required")
	}

	var payload struct {
		IsTyping bool `json:"is_typing"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.chat.SetTyping(requestContext(c), conversationID, userID, payload.IsTyping); err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "typing signal updated", nil)
}

func (h *MessageHandler) upload(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	conversationID := c.Params("id")
	if conversationID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "conversation id required")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form required")
	}

	files := form.File["files"]
	if len(files) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "at least one file required")
	}

	alreadyAttached, err := parseQueryInt(c, "attached")
	if err != nil || alreadyAttached < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attached count")
	}

	result, err := h.attachments.UploadAll(requestContext(c), conversationID, files, alreadyAttached)
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "attachments uploaded", result)
}

package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/rentora/rentora-api/internal/service"
	"github.com/rentora/rentora-api/internal/utils"
)

// PresenceHandler exposes the explicit presence beacons clients fire on
// session start and tab close. Presence writes are best-effort, so these
// endpoints always succeed once the caller is authenticated.
type PresenceHandler struct {
	service service.PresenceService
	logger  zerolog.Logger
}

// NewPresenceHandler creates a presence handler instance.
func NewPresenceHandler(service service.PresenceService, logger zerolog.Logger) *PresenceHandler {
	return &PresenceHandler{
		service: service,
		logger:  logger.With().Str("component", "presence_handler").Logger(),
	}
}

// Register binds presence routes under the provided router group.
func (h *PresenceHandler) Register(router fiber.Router) {
	router.Post("/online", h.online)
	router.Post("/offline", h.offline)
}

func (h *PresenceHandler) online(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	h.service.Connect(requestContext(c), userID)
	return utils.SendSuccess(c, "presence updated", nil)
}

func (h *PresenceHandler) offline(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	h.service.Disconnect(requestContext(c), userID)
	return utils.SendSuccess(c, "presence updated", nil)
}

package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/rentora/rentora-api/internal/dto"
	"github.com/rentora/rentora-api/internal/service"
	"github.com/rentora/rentora-api/internal/utils"
)

// ReferralHandler wires the referral discount endpoints.
type ReferralHandler struct {
	service service.ReferralService
	logger  zerolog.Logger
}

// NewReferralHandler creates a referral handler instance.
func NewReferralHandler(service service.ReferralService, logger zerolog.Logger) *ReferralHandler {
	return &ReferralHandler{
		service: service,
		logger:  logger.With().Str("component", "referral_handler").Logger(),
	}
}

// Register binds referral routes under the provided router group.
func (h *ReferralHandler) Register(router fiber.Router) {
	router.Get("/active", h.active)
	router.Post("/issue", h.issue)
	router.Post("/claim-discount", h.claim)
	router.Post("/redeem", h.redeem)
}

func (h *ReferralHandler) active(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	discount, err := h.service.Active(requestContext(c), userID)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveDiscount) {
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		}
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "active discount", discount)
}

func (h *ReferralHandler) issue(c *fiber.Ctx) error {
	if role := userRoleFromContext(c); role != "advertiser" && role != "admin" {
		return utils.SendError(c, fiber.StatusForbidden, "only advertisers may issue discounts")
	}

	var payload dto.ReferralIssueRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	discount, err := h.service.Issue(requestContext(c), payload)
	if err != nil {
		return h.mapReferralError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "discount issued", discount)
}

func (h *ReferralHandler) claim(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.ReferralClaimRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	payload.UserID = userID

	if ref := c.Query("ref"); ref != "" && payload.Code == "" {
		payload.Code = ref
	}

	discount, err := h.service.Claim(requestContext(c), payload)
	if err != nil {
		return h.mapReferralError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "discount claimed", discount)
}

func (h *ReferralHandler) redeem(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.ReferralRedeemRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	discount, err := h.service.Redeem(requestContext(c), payload)
	if err != nil {
		return h.mapReferralError(c, err)
	}

	return utils.SendSuccess(c, "discount redeemed", discount)
}

func (h *ReferralHandler) mapReferralError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrDiscountNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDiscountExpired), errors.Is(err, service.ErrDiscountUsed):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrActiveDiscountExists):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}
}

package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rentora/rentora-api/internal/config"
	"github.com/rentora/rentora-api/internal/handler"
	"github.com/rentora/rentora-api/internal/middleware"
	"github.com/rentora/rentora-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ConversationHandler *handler.ConversationHandler
	MessageHandler      *handler.MessageHandler
	ChatHandler         *handler.ChatHandler
	PresenceHandler     *handler.PresenceHandler
	NotificationHandler *handler.NotificationHandler
	ReferralHandler     *handler.ReferralHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Conversation directory & message threads
	if deps.ConversationHandler != nil {
		conversations := api.Group("/conversations", jwtMiddleware)
		deps.ConversationHandler.Register(conversations)

		if deps.MessageHandler != nil {
			conversations.Post("/:id/messages", middleware.RateLimit("send", cfg.SendRateLimit, time.Second))
			deps.MessageHandler.Register(conversations)
		}
	}

	// Live chat websocket
	if deps.ChatHandler != nil {
		chat := api.Group("/chat", jwtMiddleware)
		deps.ChatHandler.Register(chat)
	}

	// Presence beacons
	if deps.PresenceHandler != nil {
		presence := api.Group("/presence", jwtMiddleware)
		deps.PresenceHandler.Register(presence)
	}

	// Notification feed
	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}

	// Referral discounts
	if deps.ReferralHandler != nil {
		referral := api.Group("/referral", jwtMiddleware)
		deps.ReferralHandler.Register(referral)
	}
}

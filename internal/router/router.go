package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pulseboard/pulseboard-api/internal/config"
	"github.com/pulseboard/pulseboard-api/internal/handler"
	"github.com/pulseboard/pulseboard-api/internal/middleware"
	"github.com/pulseboard/pulseboard-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ActivityHandler       *handler.ActivityHandler
	ActivityStreamHandler *handler.ActivityStreamHandler
	AuthHandler           *handler.AuthHandler
	UserHandler           *handler.UserHandler
	JWTMiddleware         fiber.Handler
	AdminMiddleware       fiber.Handler
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

	// Use provided middleware, or no-ops if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	adminMiddleware := deps.AdminMiddleware
	if adminMiddleware == nil {
		adminMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Activity feed: ingest, pull queries, seeding and the live stream. The
	// dashboard consumes these without authentication.
	if deps.ActivityHandler != nil {
		activities := api.Group("/activities")
		activities.Use(middleware.RateLimit("activities", 120, time.Minute))
		deps.ActivityHandler.Register(activities)

		if deps.ActivityStreamHandler != nil {
			deps.ActivityStreamHandler.Register(activities)
		}
	}

	// Auth
	if deps.AuthHandler != nil {
		auth := api.Group("/auth")
		deps.AuthHandler.Register(auth)
		deps.AuthHandler.RegisterProtected(auth.Group("", jwtMiddleware))
	}

	// Account management, admin only
	if deps.UserHandler != nil {
		users := api.Group("/users", jwtMiddleware, adminMiddleware)
		deps.UserHandler.Register(users)
	}
}

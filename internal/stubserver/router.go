package stubserver

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RegisterRoutes wires the stub backend's HTTP routes.
func RegisterRoutes(app *fiber.App, handler *Handler, hub *Hub, tokens *TokenManager) {
	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	users := app.Group("/users")
	users.Post("/login", handler.Login)
	users.Post("/refresh", handler.Refresh)
	users.Post("/logout", handler.Logout)

	protected := users.Group("", AuthMiddleware(tokens))
	protected.Get("/me", handler.Me)
	protected.Post("/update", handler.UpdateUser)

	merchants := app.Group("/merchants", AuthMiddleware(tokens))
	merchants.Post("/getMerchantAndFoodItemsWithinRange", handler.MerchantsWithinRange)

	app.Get("/sse", hub.Stream)
}

// RequestLogger logs each request with method, path, status and latency.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
		)
		return err
	}
}

package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/draftdeck/storefront/app/controllers"
	"github.com/draftdeck/storefront/internal/pkg/env"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	api.Post("/checkout", controllers.HandleCreateCheckout)
	api.Post("/portal", controllers.HandleCreatePortal)
	api.Get("/license", controllers.HandleGetLicense)

	// Operator endpoints
	stats := api.Group("/stats", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("STATS_USER", "admin"): env.GetEnv("STATS_PASSWORD", ""),
		},
	}))
	stats.Get("/", controllers.HandleStats)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

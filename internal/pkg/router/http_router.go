package router

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/draftdeck/storefront/app/controllers"
	"github.com/draftdeck/storefront/internal/pkg/oauth"
	"github.com/draftdeck/storefront/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Storefront pages
	app.Get("/", controllers.HandleHome)
	app.Get("/pricing", controllers.HandlePricing)
	app.Get("/success", controllers.HandleSuccess)
	app.Get("/setup", controllers.HandleSetup)

	// Social OAuth
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)
	app.Post("/logout", controllers.HandleAuthLogout)

	// Billing provider webhooks (signature-verified in controller)
	app.Post("/webhooks/stripe", controllers.HandleStripeWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

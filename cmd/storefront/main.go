package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/draftdeck/storefront/app/repository"
	"github.com/draftdeck/storefront/internal/pkg/cache"
	"github.com/draftdeck/storefront/internal/pkg/database"
	"github.com/draftdeck/storefront/internal/pkg/env"
	"github.com/draftdeck/storefront/internal/pkg/jobqueue"
	"github.com/draftdeck/storefront/internal/pkg/router"
)

func main() {
	app := NewApplication()

	manager := jobqueue.GetManager()
	manager.Start()
	defer manager.Stop()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())
	cache.SetupCache()

	// init fiber app
	app := fiber.New(fiber.Config{
		// Webhook payloads are small; anything bigger is not ours.
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("STATS_USER", "admin"): env.GetEnv("STATS_PASSWORD", ""),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}

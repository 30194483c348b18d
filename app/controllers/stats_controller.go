package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/draftdeck/storefront/app/repository"
	"github.com/draftdeck/storefront/internal/pkg/jobqueue"
	"github.com/draftdeck/storefront/internal/pkg/metrics/counter"
)

// HandleStats exposes pipeline counters and queue depths for operators. The
// route sits behind basic auth.
func HandleStats(c *fiber.Ctx) error {
	counters, err := counter.Snapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "counter_snapshot_failed"})
	}

	licenseCount, err := repository.GetLicenseRepository().Count()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "license_count_failed"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	queue := jobqueue.GetManager().GetQueue()
	pending, _ := queue.GetQueueSize(ctx)
	processing, _ := queue.GetProcessingSize(ctx)
	jobStats, _ := queue.GetJobStats(ctx)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"counters": counters,
		"licenses": licenseCount,
		"queue": fiber.Map{
			"pending":    pending,
			"processing": processing,
			"jobs":       jobStats,
		},
	})
}

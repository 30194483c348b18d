package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/draftdeck/storefront/internal/pkg/database"
	"github.com/draftdeck/storefront/internal/pkg/fulfillment"
	"github.com/draftdeck/storefront/internal/pkg/jobqueue"
	"github.com/draftdeck/storefront/internal/pkg/metrics/counter"
	"github.com/draftdeck/storefront/internal/pkg/payment"
)

// HandleStripeWebhook receives billing provider events. Signature
// verification runs against the untouched request body; any framework-level
// re-serialization would break it. A verified event is acknowledged with 200
// even when fulfillment fails afterwards, because the ledger row already
// holds the payload for manual replay and a provider retry would just be
// deduplicated.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	_ = counter.Incr(counter.WebhookReceived)

	client := payment.NewClientFromEnv()
	event, err := client.VerifyWebhook(rawBody, c.Get("Stripe-Signature"))
	if err != nil {
		_ = counter.Incr(counter.SignatureFailed)
		log.Warnf("[Webhook] Signature verification failed: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	svc := fulfillment.NewServiceFromDB(database.GetDB(), client, licenseNotifier())
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	res, err := svc.ProcessEvent(ctx, event, rawBody)
	if errors.Is(err, fulfillment.ErrLedgerUnavailable) {
		// Nothing durable exists for this event yet; make the provider retry.
		log.Errorf("[Webhook] Ledger unavailable for event %s: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "ledger_unavailable"})
	}

	switch res.Status {
	case fulfillment.StatusDuplicate:
		_ = counter.Incr(counter.DuplicateSkipped)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	case fulfillment.StatusIgnored:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	case fulfillment.StatusFailed:
		log.Errorf("[Webhook] Fulfillment failed for event %s: %v", event.ID, err)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": false, "recorded": true})
	default:
		if res.LicenseKey != "" {
			_ = counter.Incr(counter.LicenseIssued)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}
}

// licenseNotifier prefers the background queue so the webhook never waits on
// Discord or SMTP; the direct notifier covers setups without the manager.
func licenseNotifier() fulfillment.Notifier {
	if m := jobqueue.GetManager(); m.IsRunning() {
		return jobqueue.NewQueueNotifier(m.GetQueue())
	}
	return fulfillment.NewDirectNotifier()
}

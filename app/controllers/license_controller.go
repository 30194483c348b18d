package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	stripe "github.com/stripe/stripe-go/v80"

	"github.com/draftdeck/storefront/app/repository"
	"github.com/draftdeck/storefront/internal/pkg/cache"
	"github.com/draftdeck/storefront/internal/pkg/payment"
)

const (
	sessionKeyCachePrefix = "license_session:"
	sessionKeyCacheTTL    = 15 * time.Minute
)

// readyResponse is the terminal shape consumers poll for.
func readyResponse(licenseKey string) fiber.Map {
	return fiber.Map{
		"success":    true,
		"status":     "ready",
		"licenseKey": licenseKey,
	}
}

// licenseForSession resolves the issued key for a paid checkout session: the
// durable store by customer id first, then the provider-side metadata mirror,
// then the owner's active license. The owner fallback must belong to this
// session's customer; a repeat purchase mints a fresh key per checkout, so an
// earlier key never answers for a session still waiting on its own webhook.
func licenseForSession(licenses repository.LicenseRepository, sess *stripe.CheckoutSession) (string, bool) {
	if sess.Customer != nil {
		if lic, err := licenses.GetByCustomerID(sess.Customer.ID); err == nil {
			return lic.LicenseKey, true
		}
		if key := strings.TrimSpace(sess.Customer.Metadata[payment.MetadataLicenseKey]); key != "" {
			return key, true
		}
	}

	discordID := strings.TrimSpace(sess.Metadata[payment.MetadataDiscordUserID])
	if discordID == "" {
		discordID = strings.TrimSpace(sess.ClientReferenceID)
	}
	if discordID != "" {
		if lic, err := licenses.GetActiveByOwner(discordID); err == nil {
			if sess.Customer == nil || lic.StripeCustomerID == sess.Customer.ID {
				return lic.LicenseKey, true
			}
		}
	}

	return "", false
}

// cachedSessionKey returns the key already answered for a session, if any.
// Cache misses and Redis outages both read as "not cached".
func cachedSessionKey(sessionID string) string {
	key, err := cache.Get(sessionKeyCachePrefix + sessionID)
	if err != nil {
		return ""
	}
	return key
}

// rememberSessionKey caches a ready answer so repeated polls for the same
// session stop hitting the provider API. Best-effort only.
func rememberSessionKey(sessionID, licenseKey string) {
	if err := cache.Set(sessionKeyCachePrefix+sessionID, licenseKey, sessionKeyCacheTTL); err != nil {
		log.Warnf("[License] Session key cache write failed: %v", err)
	}
}

// HandleGetLicense is the polling endpoint the success page and the bot hit
// after checkout. The durable store is consulted first; the provider-side
// metadata mirror and the owner's active license cover the window where the
// webhook has not landed yet or the mirror write was lost.
func HandleGetLicense(c *fiber.Ctx) error {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "invalid",
			"error":  "session_id is required",
		})
	}

	if key := cachedSessionKey(sessionID); key != "" {
		return c.Status(fiber.StatusOK).JSON(readyResponse(key))
	}

	client := payment.NewClientFromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sess, err := client.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		log.Warnf("[License] Checkout session %s lookup failed: %v", sessionID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "invalid",
			"error":  "unknown checkout session",
		})
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "invalid",
			"error":  "checkout session is not paid",
		})
	}

	if key, ok := licenseForSession(repository.GetLicenseRepository(), sess); ok {
		rememberSessionKey(sessionID, key)
		return c.Status(fiber.StatusOK).JSON(readyResponse(key))
	}

	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": "pending"})
}

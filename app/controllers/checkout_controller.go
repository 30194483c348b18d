package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/draftdeck/storefront/app/repository"
	"github.com/draftdeck/storefront/internal/pkg/payment"
	"github.com/draftdeck/storefront/internal/pkg/session"
)

var validate = validator.New()

// CheckoutRequest is the storefront's checkout body. The Discord identity is
// optional in the body; a logged-in session fills it in.
type CheckoutRequest struct {
	PriceID         string `json:"priceId" validate:"required"`
	DiscordUserID   string `json:"discordUserId" validate:"omitempty,numeric,max=32"`
	DiscordUsername string `json:"discordUsername" validate:"omitempty,max=100"`
	DiscordEmail    string `json:"discordEmail" validate:"omitempty,email"`
}

// PortalRequest identifies whose billing portal to open.
type PortalRequest struct {
	DiscordUserID string `json:"discordUserId" validate:"omitempty,numeric,max=32"`
}

// HandleCreateCheckout creates a subscription checkout session and returns
// its redirect URL.
func HandleCreateCheckout(c *fiber.Ctx) error {
	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}

	// Session identity wins over whatever the page posted.
	if id := session.GetSessionValue(c, DISCORD_USER_ID); id != "" {
		req.DiscordUserID = id
		req.DiscordUsername = session.GetSessionValue(c, DISCORD_USERNAME)
		req.DiscordEmail = session.GetSessionValue(c, DISCORD_EMAIL)
	}

	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "details": err.Error()})
	}

	client := payment.NewClientFromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	sess, err := client.CreateCheckoutSession(ctx, payment.CheckoutInput{
		PriceID:         req.PriceID,
		DiscordUserID:   req.DiscordUserID,
		DiscordUsername: req.DiscordUsername,
		DiscordEmail:    req.DiscordEmail,
	})
	if err != nil {
		log.Errorf("[Checkout] Session create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "checkout_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"sessionId": sess.ID,
		"url":       sess.URL,
	})
}

// HandleCreatePortal opens the provider's self-service billing portal for a
// subscriber, located through their active license.
func HandleCreatePortal(c *fiber.Ctx) error {
	var req PortalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if id := session.GetSessionValue(c, DISCORD_USER_ID); id != "" {
		req.DiscordUserID = id
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "details": err.Error()})
	}
	if strings.TrimSpace(req.DiscordUserID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "discordUserId is required"})
	}

	lic, err := repository.GetLicenseRepository().GetActiveByOwner(req.DiscordUserID)
	if err != nil || lic.StripeCustomerID == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no_active_subscription"})
	}

	client := payment.NewClientFromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	portal, err := client.CreatePortalSession(ctx, lic.StripeCustomerID)
	if err != nil {
		log.Errorf("[Checkout] Portal session create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "portal_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"url": portal.URL})
}

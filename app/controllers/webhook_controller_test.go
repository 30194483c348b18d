package controllers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftdeck/storefront/internal/pkg/env"
)

func newWebhookTestApp(t *testing.T) *fiber.App {
	t.Helper()

	if env.Env == nil {
		env.Env = map[string]string{}
	}
	env.Env["STRIPE_WEBHOOK_SECRET"] = "whsec_controller_test"
	env.Env["STRIPE_SECRET_KEY"] = "sk_test_controller"

	app := fiber.New()
	app.Post("/webhooks/stripe", HandleStripeWebhook)
	return app
}

func stripeSignature(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeWebhookRejectsMissingSignature(t *testing.T) {
	app := newWebhookTestApp(t)

	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader([]byte(`{"id": "evt_1"}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "invalid_signature")
}

func TestStripeWebhookRejectsForgedSignature(t *testing.T) {
	app := newWebhookTestApp(t)

	payload := []byte(`{"id": "evt_2", "type": "checkout.session.completed"}`)
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", stripeSignature(payload, "whsec_wrong_secret"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStripeWebhookRejectsTamperedBody(t *testing.T) {
	app := newWebhookTestApp(t)

	signed := []byte(`{"id": "evt_3", "type": "checkout.session.completed"}`)
	tampered := []byte(`{"id": "evt_3", "type": "checkout.session.completed", "injected": true}`)

	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(tampered))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", stripeSignature(signed, "whsec_controller_test"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

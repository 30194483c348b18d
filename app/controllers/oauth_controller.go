package controllers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/draftdeck/storefront/internal/pkg/session"
)

const (
	AUTH_KEY         string = "authenticated"
	DISCORD_USER_ID  string = "discord_user_id"
	DISCORD_USERNAME string = "discord_username"
	DISCORD_EMAIL    string = "discord_email"
)

// HandleOAuthCallback completes the Discord flow and stores the identity in
// the session. Checkout reads it from there so the webhook can map the
// payment back to the Discord account.
func HandleOAuthCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("OAuth failed: %v", err))
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session init failed")
	}
	sess.Set(AUTH_KEY, true)
	sess.Set(DISCORD_USER_ID, u.UserID)
	sess.Set(DISCORD_USERNAME, firstNonEmpty(u.NickName, u.Name))
	sess.Set(DISCORD_EMAIL, u.Email)
	if err := sess.Save(); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session save failed")
	}

	return c.Redirect("/pricing", fiber.StatusSeeOther)
}

// HandleAuthLogout clears the Discord identity from the session.
func HandleAuthLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		_ = sess.Destroy()
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

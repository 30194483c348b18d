package controllers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/draftdeck/storefront/internal/pkg/env"
	"github.com/draftdeck/storefront/internal/pkg/session"
)

func priceID() string {
	return env.GetEnv("STRIPE_PRICE_ID", "")
}

// HandleHome reports what this service is and whether the caller is
// logged in. The Discord bot and uptime checks hit this.
func HandleHome(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"service":  "draftdeck-storefront",
		"loggedIn": session.GetSessionValue(c, DISCORD_USER_ID) != "",
	})
}

// HandlePricing renders the subscribe page. The button posts to
// /api/checkout and follows the returned provider URL.
func HandlePricing(c *fiber.Ctx) error {
	loggedIn := session.GetSessionValue(c, DISCORD_USER_ID) != ""
	authBlock := `<p><a href="/auth/discord">Log in with Discord</a> so your license lands in your DMs.</p>`
	if loggedIn {
		authBlock = fmt.Sprintf(`<p>Logged in as <strong>%s</strong>.</p>`, session.GetSessionValue(c, DISCORD_USERNAME))
	}

	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>DraftDeck - Pricing</title></head>
<body>
<h1>DraftDeck Standard</h1>
%s
<button id="subscribe">Subscribe</button>
<script>
document.getElementById('subscribe').addEventListener('click', async () => {
  const res = await fetch('/api/checkout', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({priceId: '%s'})
  });
  const data = await res.json();
  if (data.url) window.location = data.url;
});
</script>
</body>
</html>`, authBlock, priceID())

	c.Type("html")
	return c.SendString(page)
}

// HandleSuccess renders the post-checkout page. It polls the license
// endpoint until the webhook lands, then shows the key.
func HandleSuccess(c *fiber.Ctx) error {
	page := `<!DOCTYPE html>
<html>
<head><title>DraftDeck - Thank you!</title></head>
<body>
<h1>Thank you for subscribing!</h1>
<p id="status">Preparing your license key...</p>
<script>
const params = new URLSearchParams(window.location.search);
const sessionId = params.get('session_id');
const statusEl = document.getElementById('status');
let attempts = 0;
async function poll() {
  attempts++;
  try {
    const res = await fetch('/api/license?session_id=' + encodeURIComponent(sessionId));
    const data = await res.json();
    if (data.status === 'ready') {
      statusEl.innerHTML = 'Your license key: <code>' + data.licenseKey + '</code><br>' +
        'Check your Discord DMs for activation instructions.';
      return;
    }
    if (data.status === 'invalid') {
      statusEl.textContent = 'We could not verify this checkout. Contact support.';
      return;
    }
  } catch (e) {}
  if (attempts < 30) {
    setTimeout(poll, 2000);
  } else {
    statusEl.textContent = 'Your license is taking longer than expected. It will arrive by Discord DM.';
  }
}
if (sessionId) { poll(); } else { statusEl.textContent = 'Missing checkout session.'; }
</script>
</body>
</html>`

	c.Type("html")
	return c.SendString(page)
}

// HandleSetup is the billing portal return target.
func HandleSetup(c *fiber.Ctx) error {
	c.Type("html")
	return c.SendString(`<!DOCTYPE html>
<html>
<head><title>DraftDeck - Setup</title></head>
<body>
<h1>Manage your subscription</h1>
<p>Run <code>/admin activate YOUR-KEY</code> in your Discord server to activate.</p>
</body>
</html>`)
}

package fulfillment

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/draftdeck/storefront/internal/pkg/discord"
	"github.com/draftdeck/storefront/internal/pkg/mail"
	"github.com/draftdeck/storefront/internal/pkg/metrics/counter"
)

const notifyTimeout = 15 * time.Second

// DirectNotifier delivers the key synchronously: Discord DM first, SMTP
// fallback when an email is known. Every failure path degrades to a logged
// suppression; the license is already durable and retrievable by polling.
type DirectNotifier struct {
	Discord *discord.Client
}

// NewDirectNotifier builds a notifier from environment configuration.
func NewDirectNotifier() *DirectNotifier {
	return &DirectNotifier{Discord: discord.NewClientFromEnv()}
}

func (n *DirectNotifier) NotifyLicense(discordUserID, email, licenseKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if n.Discord != nil && n.Discord.Configured() {
		err := n.Discord.SendLicenseDM(ctx, discordUserID, licenseKey)
		if err == nil {
			_ = counter.Incr(counter.DMDelivered)
			log.Infof("[Notify] DM sent to discord user %s", discordUserID)
			return
		}
		log.Warnf("[Notify] DM to discord user %s suppressed: %v", discordUserID, err)
	} else {
		log.Warn("[Notify] Discord bot token missing, DM suppressed")
	}
	_ = counter.Incr(counter.DMSuppressed)

	if e := strings.TrimSpace(email); e != "" {
		if err := mail.SendLicenseMail(e, licenseKey); err == nil {
			_ = counter.Incr(counter.MailDelivered)
			log.Infof("[Notify] License mailed to %s", e)
			return
		}
	}

	log.Warnf("[Notify] License %s not delivered out-of-band; polling path remains available", licenseKey)
}

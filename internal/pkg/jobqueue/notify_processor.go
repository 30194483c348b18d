package jobqueue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/draftdeck/storefront/internal/pkg/mail"
	"github.com/draftdeck/storefront/internal/pkg/metrics/counter"
)

const notifyDeliveryTimeout = 15 * time.Second

// processLicenseNotifyJob delivers an issued license key to its owner.
// Transient Discord failures are surfaced as errors so the queue's retry
// machinery re-attempts the DM; on the final attempt delivery degrades to
// the email fallback and then to a logged suppression. The license itself
// is already durable, so the job never fails permanently over delivery.
func (q *Queue) processLicenseNotifyJob(ctx context.Context, job *Job) error {
	payload, err := LicenseNotifyJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid license notify payload: %w", err)
	}
	if payload.LicenseKey == "" {
		return fmt.Errorf("license notify job %s carries no license key", job.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, notifyDeliveryTimeout)
	defer cancel()

	if q.discord != nil && q.discord.Configured() && payload.DiscordUserID != "" {
		err := q.discord.SendLicenseDM(ctx, payload.DiscordUserID, payload.LicenseKey)
		if err == nil {
			_ = counter.Incr(counter.DMDelivered)
			log.Infof("[JobQueue] DM sent to discord user %s", payload.DiscordUserID)
			return nil
		}
		// Leave retries to the queue until the last attempt is spent.
		if job.RetryCount < job.MaxRetries-1 {
			return fmt.Errorf("dm to discord user %s: %w", payload.DiscordUserID, err)
		}
		log.Warnf("[JobQueue] DM to discord user %s suppressed after %d attempts: %v",
			payload.DiscordUserID, job.RetryCount+1, err)
	} else {
		log.Warn("[JobQueue] Discord delivery unavailable, DM suppressed")
	}
	_ = counter.Incr(counter.DMSuppressed)

	if e := strings.TrimSpace(payload.Email); e != "" {
		if err := mail.SendLicenseMail(e, payload.LicenseKey); err == nil {
			_ = counter.Incr(counter.MailDelivered)
			log.Infof("[JobQueue] License mailed to %s", e)
			return nil
		}
	}

	log.Warnf("[JobQueue] License %s not delivered out-of-band; polling path remains available", payload.LicenseKey)
	return nil
}

package jobqueue

import (
	"github.com/gofiber/fiber/v2/log"
)

// QueueNotifier hands license delivery to the background queue so the
// webhook handler acknowledges the provider without waiting on Discord or
// SMTP. It satisfies the fulfillment notifier contract: enqueue failures
// are logged and swallowed because the key stays retrievable by polling.
type QueueNotifier struct {
	queue *Queue
}

// NewQueueNotifier wraps a queue as a license notifier.
func NewQueueNotifier(q *Queue) *QueueNotifier {
	return &QueueNotifier{queue: q}
}

func (n *QueueNotifier) NotifyLicense(discordUserID, email, licenseKey string) {
	payload := LicenseNotifyJobPayload{
		DiscordUserID: discordUserID,
		Email:         email,
		LicenseKey:    licenseKey,
	}
	if _, err := n.queue.EnqueueJob(JobTypeLicenseNotify, payload.ToMap()); err != nil {
		log.Errorf("[JobQueue] Failed to enqueue license notify for discord user %s: %v", discordUserID, err)
	}
}

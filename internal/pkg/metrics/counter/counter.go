package counter

import (
	"context"
	"strconv"

	"github.com/draftdeck/storefront/internal/pkg/cache"
)

const pipelineCountersKey = "fulfillment:counters"

// Counter fields tracked for the fulfillment pipeline.
const (
	WebhookReceived  = "webhook_received"
	DuplicateSkipped = "duplicate_skipped"
	SignatureFailed  = "signature_failed"
	LicenseIssued    = "license_issued"
	MirrorFailed     = "mirror_failed"
	DMDelivered      = "dm_delivered"
	DMSuppressed     = "dm_suppressed"
	MailDelivered    = "mail_delivered"
)

// Incr increments a pipeline counter in Redis. Counter writes are
// best-effort observability; callers ignore the error.
func Incr(field string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, pipelineCountersKey, field, 1).Err()
}

// Snapshot returns all pipeline counters as integers.
func Snapshot() (map[string]int64, error) {
	ctx := context.Background()
	raw, err := cache.GetClient().HGetAll(ctx, pipelineCountersKey).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(raw))
	for field, val := range raw {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			continue
		}
		out[field] = n
	}
	return out, nil
}

// Reset clears all pipeline counters.
func Reset() error {
	return cache.Delete(pipelineCountersKey)
}

package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewQueue tests the queue constructor
func TestNewQueue(t *testing.T) {
	tests := []struct {
		name            string
		workers         int
		expectedWorkers int
	}{
		{"Valid worker count", 5, 5},
		{"Zero workers", 0, 3},
		{"Negative workers", -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueue(tt.workers)

			assert.NotNil(t, queue)
			assert.Equal(t, tt.expectedWorkers, queue.workers)
			assert.NotNil(t, queue.workerPool)
			assert.Equal(t, tt.expectedWorkers, cap(queue.workerPool))
			assert.NotNil(t, queue.stopCh)
			assert.False(t, queue.running)
		})
	}
}

func TestConstants(t *testing.T) {
	// Test Redis key constants
	assert.Equal(t, "job:", JobKeyPrefix)
	assert.Equal(t, "job_queue", JobQueueKey)
	assert.Equal(t, "job_processing", JobProcessingKey)
	assert.Equal(t, "job_stats", JobStatsKey)

	// Test job settings constants
	assert.Equal(t, 3, DefaultMaxRetries)
	assert.Equal(t, 24*time.Hour, JobTTL)
}

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	host, port, password := resolveTestRedis(t)
	configureTestCache(host, port, password)
	resetJobQueueRedis(t)
	t.Cleanup(func() { resetJobQueueRedis(t) })

	queue := NewQueue(1)
	payload := LicenseNotifyJobPayload{
		DiscordUserID: "123456789012345678",
		Email:         "owner@example.com",
		LicenseKey:    "DECK-AB12-CD34-EF56",
	}

	job, err := queue.EnqueueJob(JobTypeLicenseNotify, payload.ToMap())
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, JobStatusPending, job.Status)

	size, err := queue.GetQueueSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	dequeued, err := queue.dequeueJob(context.Background())
	require.NoError(t, err)
	require.NotNil(t, dequeued)
	assert.Equal(t, job.ID, dequeued.ID)
	assert.Equal(t, JobTypeLicenseNotify, dequeued.Type)

	restored, err := LicenseNotifyJobPayloadFromMap(dequeued.Payload)
	require.NoError(t, err)
	assert.Equal(t, payload, *restored)

	processing, err := queue.GetProcessingSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), processing)
}

func TestQueueNotifierEnqueues(t *testing.T) {
	host, port, password := resolveTestRedis(t)
	configureTestCache(host, port, password)
	resetJobQueueRedis(t)
	t.Cleanup(func() { resetJobQueueRedis(t) })

	queue := NewQueue(1)
	notifier := NewQueueNotifier(queue)
	notifier.NotifyLicense("123456789012345678", "owner@example.com", "DECK-AB12-CD34-EF56")

	size, err := queue.GetQueueSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	job, err := queue.dequeueJob(context.Background())
	require.NoError(t, err)
	assert.Equal(t, JobTypeLicenseNotify, job.Type)
	assert.Equal(t, "DECK-AB12-CD34-EF56", job.Payload["license_key"])
}

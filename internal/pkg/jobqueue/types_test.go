package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLicenseNotifyPayloadRoundTrip(t *testing.T) {
	payload := LicenseNotifyJobPayload{
		DiscordUserID: "123456789012345678",
		Email:         "owner@example.com",
		LicenseKey:    "DECK-AB12-CD34-EF56",
	}

	m := payload.ToMap()
	assert.Equal(t, "123456789012345678", m["discord_user_id"])
	assert.Equal(t, "owner@example.com", m["email"])
	assert.Equal(t, "DECK-AB12-CD34-EF56", m["license_key"])

	restored, err := LicenseNotifyJobPayloadFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, payload, *restored)
}

func TestJobStatusTransitions(t *testing.T) {
	job := &Job{
		ID:         "job-1",
		Type:       JobTypeLicenseNotify,
		Status:     JobStatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)

	job.MarkAsFailed("dm failed")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "dm failed", job.ErrorMsg)
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.MarkAsRetrying()
	assert.Equal(t, JobStatusRetrying, job.Status)

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Empty(t, job.ErrorMsg)
	require.NotNil(t, job.CompletedAt)
}

func TestJobRetryExhaustion(t *testing.T) {
	job := &Job{MaxRetries: DefaultMaxRetries}

	for i := 0; i < DefaultMaxRetries; i++ {
		job.MarkAsFailed("still failing")
	}
	assert.False(t, job.IsRetryable())
}

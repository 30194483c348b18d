package repository

import (
	"github.com/draftdeck/storefront/app/models"
	"gorm.io/gorm"
)

// LicenseRepository defines the interface for license-related database operations
type LicenseRepository interface {
	// CreateIfKeyFree inserts the license unless its key already exists.
	// Returns false when the unique key constraint rejected the insert,
	// letting callers regenerate and retry.
	CreateIfKeyFree(license *models.License) (bool, error)
	GetByKey(key string) (*models.License, error)
	GetByCustomerID(stripeCustomerID string) (*models.License, error)
	GetBySubscriptionID(stripeSubscriptionID string) (*models.License, error)
	GetActiveByOwner(discordUserID string) (*models.License, error)
	ListByOwner(discordUserID string) ([]models.License, error)
	UpdateStatus(id uint, status string) error
	TouchRenewal(stripeSubscriptionID string) error
	Count() (int64, error)
}

// WebhookEventRepository defines the interface for the webhook idempotency ledger
type WebhookEventRepository interface {
	// CreateIfNotExists atomically claims an event id. The bool result is
	// true only for the first sighting; replays return the stored record.
	CreateIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
	GetByProviderEventID(provider, providerEventID string) (*models.BillingWebhookEvent, error)
	PruneOlderThan(days int) (int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	License      LicenseRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		License:      NewLicenseRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}

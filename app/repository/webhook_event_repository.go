package repository

import (
	"time"

	"github.com/draftdeck/storefront/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// CreateIfNotExists performs the atomic check-and-insert that gates the whole
// pipeline. Two concurrent deliveries of the same event race on the unique
// (provider, provider_event_id) index; exactly one insert wins.
func (r *webhookEventRepository) CreateIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *webhookEventRepository) MarkProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *webhookEventRepository) GetByProviderEventID(provider, providerEventID string) (*models.BillingWebhookEvent, error) {
	var event models.BillingWebhookEvent
	err := r.db.Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// PruneOlderThan deletes processed ledger entries past the retention window.
func (r *webhookEventRepository) PruneOlderThan(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	tx := r.db.Where("processed_at IS NOT NULL AND created_at < ?", cutoff).
		Delete(&models.BillingWebhookEvent{})
	return tx.RowsAffected, tx.Error
}

package repository

import (
	"strings"
	"time"

	"github.com/draftdeck/storefront/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// licenseRepository implements the LicenseRepository interface
type licenseRepository struct {
	db *gorm.DB
}

// NewLicenseRepository creates a new license repository instance
func NewLicenseRepository(db *gorm.DB) LicenseRepository {
	return &licenseRepository{db: db}
}

// CreateIfKeyFree inserts the license; a conflict on the unique license_key
// index leaves RowsAffected at zero instead of failing, which callers use
// to drive the regenerate-and-retry loop.
func (r *licenseRepository) CreateIfKeyFree(license *models.License) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "license_key"}},
		DoNothing: true,
	}).Create(license)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *licenseRepository) GetByKey(key string) (*models.License, error) {
	var license models.License
	err := r.db.Where("license_key = ?", strings.TrimSpace(key)).First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

func (r *licenseRepository) GetByCustomerID(stripeCustomerID string) (*models.License, error) {
	var license models.License
	err := r.db.Where("stripe_customer_id = ?", stripeCustomerID).
		Order("created_at DESC").First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

func (r *licenseRepository) GetBySubscriptionID(stripeSubscriptionID string) (*models.License, error) {
	var license models.License
	err := r.db.Where("stripe_subscription_id = ?", stripeSubscriptionID).First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

func (r *licenseRepository) GetActiveByOwner(discordUserID string) (*models.License, error) {
	var license models.License
	err := r.db.Where("owner_discord_id = ? AND status = ?", discordUserID, models.LicenseStatusActive).
		Order("created_at DESC").First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

func (r *licenseRepository) ListByOwner(discordUserID string) ([]models.License, error) {
	var licenses []models.License
	err := r.db.Where("owner_discord_id = ?", discordUserID).
		Order("created_at DESC").Find(&licenses).Error
	return licenses, err
}

func (r *licenseRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.License{}).Where("id = ?", id).
		Update("status", status).Error
}

// TouchRenewal bumps updated_at and re-activates the license when a renewal
// invoice arrives for its subscription.
func (r *licenseRepository) TouchRenewal(stripeSubscriptionID string) error {
	return r.db.Model(&models.License{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Updates(map[string]interface{}{
			"status":     models.LicenseStatusActive,
			"updated_at": time.Now(),
		}).Error
}

func (r *licenseRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.License{}).Count(&count).Error
	return count, err
}

package models

import "time"

const (
	LicenseStatusActive  = "active"
	LicenseStatusRevoked = "revoked"
	LicenseStatusExpired = "expired"
)

const (
	PlanTypeStandard = "standard"
)

// MaxActivationSlots is the number of Discord servers a single license may
// be activated on. Activation itself happens in the bot, not here.
const MaxActivationSlots = 3

// License is the durable entitlement record. It is created exactly once per
// successfully fulfilled checkout event; the unique index on license_key is
// the backstop against generator collisions.
type License struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	LicenseKey           string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_licenses_key" json:"license_key"`
	OwnerDiscordID       string    `gorm:"type:varchar(32);not null;index" json:"owner_discord_id"`
	Status               string    `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	PlanType             string    `gorm:"type:varchar(32);not null;default:'standard'" json:"plan_type"`
	StripeCustomerID     string    `gorm:"type:varchar(64);not null;index" json:"stripe_customer_id"`
	StripeSubscriptionID string    `gorm:"type:varchar(64);not null;index" json:"stripe_subscription_id"`
	ActivationSlotsUsed  int       `gorm:"not null;default:0" json:"activation_slots_used"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the license currently grants entitlement.
func (l *License) IsActive() bool {
	return l.Status == LicenseStatusActive
}

package controllers

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	stripe "github.com/stripe/stripe-go/v80"
	"gorm.io/gorm"

	"github.com/draftdeck/storefront/app/models"
	"github.com/draftdeck/storefront/internal/pkg/cache"
	"github.com/draftdeck/storefront/internal/pkg/env"
)

// stubLicenseRepo answers lookups from fixed maps; everything else is a miss.
type stubLicenseRepo struct {
	byCustomer map[string]*models.License
	byOwner    map[string]*models.License
}

func (s *stubLicenseRepo) CreateIfKeyFree(l *models.License) (bool, error) { return true, nil }

func (s *stubLicenseRepo) GetByKey(key string) (*models.License, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLicenseRepo) GetByCustomerID(customerID string) (*models.License, error) {
	if l, ok := s.byCustomer[customerID]; ok {
		return l, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLicenseRepo) GetBySubscriptionID(subID string) (*models.License, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLicenseRepo) GetActiveByOwner(discordID string) (*models.License, error) {
	if l, ok := s.byOwner[discordID]; ok {
		return l, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLicenseRepo) ListByOwner(discordID string) ([]models.License, error) { return nil, nil }
func (s *stubLicenseRepo) UpdateStatus(id uint, status string) error              { return nil }
func (s *stubLicenseRepo) TouchRenewal(subID string) error                        { return nil }
func (s *stubLicenseRepo) Count() (int64, error)                                  { return 0, nil }

func TestReadyResponseCarriesSuccess(t *testing.T) {
	resp := readyResponse("DECK-AB12-CD34-EF56")

	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "ready", resp["status"])
	assert.Equal(t, "DECK-AB12-CD34-EF56", resp["licenseKey"])
}

func TestLicenseForSessionDurableStoreFirst(t *testing.T) {
	repo := &stubLicenseRepo{
		byCustomer: map[string]*models.License{
			"cus_1": {LicenseKey: "DECK-AAAA-BBBB-CCCC", StripeCustomerID: "cus_1"},
		},
	}
	sess := &stripe.CheckoutSession{
		Customer: &stripe.Customer{
			ID:       "cus_1",
			Metadata: map[string]string{"license_key": "DECK-MIRR-ORED-KEYX"},
		},
	}

	key, ok := licenseForSession(repo, sess)
	assert.True(t, ok)
	assert.Equal(t, "DECK-AAAA-BBBB-CCCC", key, "durable store must win over the mirror")
}

func TestLicenseForSessionMirrorFallback(t *testing.T) {
	repo := &stubLicenseRepo{}
	sess := &stripe.CheckoutSession{
		Customer: &stripe.Customer{
			ID:       "cus_2",
			Metadata: map[string]string{"license_key": "DECK-MIRR-ORED-KEYX"},
		},
	}

	key, ok := licenseForSession(repo, sess)
	assert.True(t, ok)
	assert.Equal(t, "DECK-MIRR-ORED-KEYX", key)
}

func TestLicenseForSessionOwnerFallbackWithoutCustomer(t *testing.T) {
	repo := &stubLicenseRepo{
		byOwner: map[string]*models.License{
			"discord_42": {LicenseKey: "DECK-OWNE-RKEY-0001", OwnerDiscordID: "discord_42", StripeCustomerID: "cus_3"},
		},
	}
	sess := &stripe.CheckoutSession{ClientReferenceID: "discord_42"}

	key, ok := licenseForSession(repo, sess)
	assert.True(t, ok)
	assert.Equal(t, "DECK-OWNE-RKEY-0001", key)
}

func TestLicenseForSessionSkipsPreviousPurchase(t *testing.T) {
	// The owner holds an active license from an earlier checkout, but this
	// session belongs to a different customer whose fulfillment has not
	// landed. The old key must not be reported for the new session.
	repo := &stubLicenseRepo{
		byOwner: map[string]*models.License{
			"discord_42": {LicenseKey: "DECK-OLDP-URCH-ASEX", OwnerDiscordID: "discord_42", StripeCustomerID: "cus_old"},
		},
	}
	sess := &stripe.CheckoutSession{
		Customer:          &stripe.Customer{ID: "cus_new"},
		ClientReferenceID: "discord_42",
	}

	key, ok := licenseForSession(repo, sess)
	assert.False(t, ok)
	assert.Empty(t, key)
}

func TestSessionKeyCacheRoundTrip(t *testing.T) {
	addr := env.GetEnv("CACHE_HOST", "localhost") + ":" + env.GetEnv("CACHE_PORT", "6379")
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping Redis-dependent test: %v", err)
	}
	cache.SetClient(client)

	rememberSessionKey("cs_cache_1", "DECK-AB12-CD34-EF56")
	assert.Equal(t, "DECK-AB12-CD34-EF56", cachedSessionKey("cs_cache_1"))

	assert.NoError(t, cache.Delete(sessionKeyCachePrefix+"cs_cache_1"))
	assert.Empty(t, cachedSessionKey("cs_cache_1"))
}

package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	stripe "github.com/stripe/stripe-go/v80"
	"gorm.io/gorm"

	"github.com/draftdeck/storefront/app/models"
	"github.com/draftdeck/storefront/app/repository"
	"github.com/draftdeck/storefront/internal/pkg/license"
)

// maxKeyAttempts bounds the regenerate-and-retry loop when the unique key
// index reports a collision. At ~62 bits of entropy a single retry is
// already unlikely; exhaustion means something is badly wrong.
const maxKeyAttempts = 5

// Status describes the outcome of processing one provider event.
type Status string

const (
	StatusFulfilled Status = "fulfilled"
	StatusDuplicate Status = "duplicate"
	StatusIgnored   Status = "ignored"
	StatusFailed    Status = "failed"
)

// Result is returned to the webhook handler for transport-level decisions.
type Result struct {
	Status     Status
	LicenseKey string
}

var (
	ErrKeySpaceExhausted = errors.New("could not generate a unique license key")

	// ErrLedgerUnavailable means no durable record of the event exists; the
	// transport must signal the provider to redeliver.
	ErrLedgerUnavailable = errors.New("webhook ledger unavailable")
)

// ProviderClient is the slice of the payment provider the pipeline needs.
type ProviderClient interface {
	ResolveCustomer(ctx context.Context, discordUserID, email, username string) (*stripe.Customer, error)
	MirrorLicenseKey(ctx context.Context, customerID, licenseKey, discordUserID string) error
}

// Notifier delivers an issued key to the user. Delivery is fire-and-forget:
// implementations must never return an error for a failed send.
type Notifier interface {
	NotifyLicense(discordUserID, email, licenseKey string)
}

// Service orchestrates the fulfillment pipeline: idempotency gate, identity
// resolution, key issuance, durable persistence, metadata mirror and
// notification hand-off.
type Service struct {
	licenses repository.LicenseRepository
	events   repository.WebhookEventRepository
	provider ProviderClient
	notifier Notifier
}

// NewService creates a fulfillment service from injected collaborators.
func NewService(repos *repository.Repositories, provider ProviderClient, notifier Notifier) *Service {
	return &Service{
		licenses: repos.License,
		events:   repos.WebhookEvent,
		provider: provider,
		notifier: notifier,
	}
}

// NewServiceFromDB creates a fulfillment service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, provider ProviderClient, notifier Notifier) *Service {
	return NewService(repository.NewRepositories(db), provider, notifier)
}

// ProcessEvent runs one authenticated provider event through the pipeline.
// The ledger insert is the single synchronization point: concurrent
// redeliveries of the same event id race on the unique index and exactly one
// caller proceeds past it. Errors after the ledger row exists are recorded
// on that row and surfaced for manual replay; the caller still acknowledges
// the transport so the provider stops retrying.
func (s *Service) ProcessEvent(ctx context.Context, event stripe.Event, rawPayload []byte) (Result, error) {
	created, stored, err := s.events.CreateIfNotExists(&models.BillingWebhookEvent{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(rawPayload),
		SignatureValid:  true,
	})
	if err != nil {
		return Result{Status: StatusFailed}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	if !created {
		log.Infof("[Fulfillment] Duplicate event %s, skipping", event.ID)
		return Result{Status: StatusDuplicate}, nil
	}

	switch event.Type {
	case "checkout.session.completed":
		return s.processCheckoutCompleted(ctx, event, stored.ID)
	case "invoice.paid":
		return s.processInvoicePaid(ctx, event, stored.ID)
	default:
		s.markProcessed(stored.ID, nil)
		return Result{Status: StatusIgnored}, nil
	}
}

func (s *Service) processCheckoutCompleted(ctx context.Context, event stripe.Event, ledgerID uint) (Result, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		err = fmt.Errorf("unmarshal checkout session: %w", err)
		s.markProcessed(ledgerID, err)
		return Result{Status: StatusFailed}, err
	}

	// Only subscriptions carry a license entitlement.
	if sess.Mode != stripe.CheckoutSessionModeSubscription {
		s.markProcessed(ledgerID, nil)
		return Result{Status: StatusIgnored}, nil
	}

	discordUserID := strings.TrimSpace(sess.Metadata["discord_user_id"])
	if discordUserID == "" {
		discordUserID = strings.TrimSpace(sess.ClientReferenceID)
	}
	if discordUserID == "" {
		err := errors.New("checkout session carries no discord user id")
		s.markProcessed(ledgerID, err)
		return Result{Status: StatusIgnored}, err
	}

	username := sess.Metadata["discord_username"]
	email := ""
	if sess.CustomerDetails != nil {
		email = sess.CustomerDetails.Email
	}

	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	if customerID == "" {
		cust, err := s.provider.ResolveCustomer(ctx, discordUserID, email, username)
		if err != nil {
			err = fmt.Errorf("resolve customer: %w", err)
			s.markProcessed(ledgerID, err)
			return Result{Status: StatusFailed}, err
		}
		customerID = cust.ID
	}

	subscriptionID := ""
	if sess.Subscription != nil {
		subscriptionID = sess.Subscription.ID
	}

	record, err := s.issueLicense(discordUserID, customerID, subscriptionID)
	if err != nil {
		s.markProcessed(ledgerID, err)
		return Result{Status: StatusFailed}, err
	}
	log.Infof("[Fulfillment] Issued license %s for discord user %s (event %s)",
		record.LicenseKey, discordUserID, event.ID)

	// Best-effort mirror into provider metadata. The durable store stays
	// authoritative; the retrieval path reconciles when this write is lost.
	if err := s.provider.MirrorLicenseKey(ctx, customerID, record.LicenseKey, discordUserID); err != nil {
		log.Errorf("[Fulfillment] Metadata mirror failed for customer %s: %v", customerID, err)
	}

	// Fire-and-forget; a closed DM or a Discord outage never unwinds the
	// issued license.
	s.notifier.NotifyLicense(discordUserID, email, record.LicenseKey)

	s.markProcessed(ledgerID, nil)
	return Result{Status: StatusFulfilled, LicenseKey: record.LicenseKey}, nil
}

// issueLicense mints a key and inserts it, regenerating on the rare unique
// index collision.
func (s *Service) issueLicense(discordUserID, customerID, subscriptionID string) (*models.License, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key, err := license.GenerateKey()
		if err != nil {
			return nil, err
		}

		record := &models.License{
			LicenseKey:           key,
			OwnerDiscordID:       discordUserID,
			Status:               models.LicenseStatusActive,
			PlanType:             models.PlanTypeStandard,
			StripeCustomerID:     customerID,
			StripeSubscriptionID: subscriptionID,
		}

		inserted, err := s.licenses.CreateIfKeyFree(record)
		if err != nil {
			return nil, fmt.Errorf("license insert failed: %w", err)
		}
		if inserted {
			return record, nil
		}
		log.Warnf("[Fulfillment] License key collision on %s, regenerating (attempt %d)", key, attempt+1)
	}
	return nil, ErrKeySpaceExhausted
}

func (s *Service) processInvoicePaid(ctx context.Context, event stripe.Event, ledgerID uint) (Result, error) {
	_ = ctx

	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		err = fmt.Errorf("unmarshal invoice: %w", err)
		s.markProcessed(ledgerID, err)
		return Result{Status: StatusFailed}, err
	}

	if inv.BillingReason != stripe.InvoiceBillingReasonSubscriptionCycle || inv.Subscription == nil {
		s.markProcessed(ledgerID, nil)
		return Result{Status: StatusIgnored}, nil
	}

	if _, err := s.licenses.GetBySubscriptionID(inv.Subscription.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Fulfillment] Renewal for unknown subscription %s, ignoring", inv.Subscription.ID)
			s.markProcessed(ledgerID, nil)
			return Result{Status: StatusIgnored}, nil
		}
		s.markProcessed(ledgerID, err)
		return Result{Status: StatusFailed}, err
	}

	if err := s.licenses.TouchRenewal(inv.Subscription.ID); err != nil {
		s.markProcessed(ledgerID, err)
		return Result{Status: StatusFailed}, err
	}

	s.markProcessed(ledgerID, nil)
	return Result{Status: StatusFulfilled}, nil
}

func (s *Service) markProcessed(ledgerID uint, processingErr error) {
	msg := ""
	if processingErr != nil {
		msg = processingErr.Error()
	}
	if err := s.events.MarkProcessed(ledgerID, msg); err != nil {
		log.Errorf("[Fulfillment] Failed to mark ledger entry %d processed: %v", ledgerID, err)
	}
}

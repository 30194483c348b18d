package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v80"
	bpsession "github.com/stripe/stripe-go/v80/billingportal/session"
	chsession "github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/customer"
	"github.com/stripe/stripe-go/v80/webhook"

	"github.com/draftdeck/storefront/internal/pkg/env"
)

// Customer metadata keys shared between checkout, fulfillment and retrieval.
const (
	MetadataDiscordUserID   = "discord_user_id"
	MetadataDiscordUsername = "discord_username"
	MetadataLicenseKey      = "license_key"
)

var (
	ErrNotConfigured    = errors.New("stripe is not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Client wraps the Stripe API surface the pipeline depends on. The secret
// key is installed into the stripe-go global once; the struct carries only
// the webhook secret and site URL.
type Client struct {
	WebhookSecret string
	SiteURL       string
}

// NewClientFromEnv builds a Stripe client from environment configuration.
func NewClientFromEnv() *Client {
	stripe.Key = strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", ""))

	site := strings.TrimRight(env.GetEnv("SITE_URL", ""), "/")
	if site == "" {
		site = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}

	return &Client{
		WebhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		SiteURL:       site,
	}
}

// Configured reports whether the API secret key is present.
func (c *Client) Configured() bool {
	return strings.TrimSpace(stripe.Key) != ""
}

// VerifyWebhook authenticates a webhook delivery against the exact raw body
// bytes. stripe-go enforces the default 300s timestamp tolerance, bounding
// replay exposure. Any re-serialization of the payload before this call
// invalidates the signature.
func (c *Client) VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	if c.WebhookSecret == "" {
		return stripe.Event{}, ErrNotConfigured
	}
	event, err := webhook.ConstructEvent(payload, sigHeader, c.WebhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// ResolveCustomer maps a Discord user to a Stripe customer: search by the
// discord_user_id metadata field, create on miss. Search-then-create is not
// atomic against Stripe; the rare double-create is tolerated because every
// downstream lookup re-resolves by discord_user_id instead of caching a
// customer id.
func (c *Client) ResolveCustomer(ctx context.Context, discordUserID, email, username string) (*stripe.Customer, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	id := strings.TrimSpace(discordUserID)
	if id == "" {
		return nil, errors.New("discord_user_id is required")
	}

	searchParams := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   fmt.Sprintf("metadata['%s']:'%s'", MetadataDiscordUserID, id),
			Limit:   stripe.Int64(1),
			Context: ctx,
		},
	}
	iter := customer.Search(searchParams)
	if iter.Next() {
		return iter.Customer(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("customer search failed: %w", err)
	}

	createParams := &stripe.CustomerParams{}
	createParams.Context = ctx
	if e := strings.TrimSpace(email); e != "" {
		createParams.Email = stripe.String(e)
	}
	createParams.AddMetadata(MetadataDiscordUserID, id)
	if u := strings.TrimSpace(username); u != "" {
		createParams.AddMetadata(MetadataDiscordUsername, u)
	}

	cust, err := customer.New(createParams)
	if err != nil {
		return nil, fmt.Errorf("customer create failed: %w", err)
	}
	return cust, nil
}

// GetCustomer fetches a customer by id.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*stripe.Customer, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.CustomerParams{}
	params.Context = ctx
	return customer.Get(customerID, params)
}

// MirrorLicenseKey writes the issued key into the customer's provider-side
// metadata. This is a read-optimization for the polling path; the durable
// store stays authoritative and callers treat failure as non-fatal.
func (c *Client) MirrorLicenseKey(ctx context.Context, customerID, licenseKey, discordUserID string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	params := &stripe.CustomerParams{}
	params.Context = ctx
	params.AddMetadata(MetadataLicenseKey, licenseKey)
	params.AddMetadata(MetadataDiscordUserID, discordUserID)
	_, err := customer.Update(customerID, params)
	return err
}

// GetCheckoutSession fetches a checkout session with the customer expanded.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("customer")
	return chsession.Get(sessionID, params)
}

// CheckoutInput carries the storefront's checkout request.
type CheckoutInput struct {
	PriceID         string
	DiscordUserID   string
	DiscordUsername string
	DiscordEmail    string
}

// CreateCheckoutSession creates a subscription-mode checkout session carrying
// the Discord identity in metadata and client_reference_id so the webhook can
// read it back later.
func (c *Client) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*stripe.CheckoutSession, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(in.PriceID) == "" {
		return nil, errors.New("priceId is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:          stripe.String(c.SiteURL + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:           stripe.String(c.SiteURL + "/pricing"),
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.Context = ctx

	if id := strings.TrimSpace(in.DiscordUserID); id != "" {
		cust, err := c.ResolveCustomer(ctx, id, in.DiscordEmail, in.DiscordUsername)
		if err != nil {
			return nil, err
		}
		params.Customer = stripe.String(cust.ID)
		params.ClientReferenceID = stripe.String(id)
		params.AddMetadata(MetadataDiscordUserID, id)
		if u := strings.TrimSpace(in.DiscordUsername); u != "" {
			params.AddMetadata(MetadataDiscordUsername, u)
		}
	} else if e := strings.TrimSpace(in.DiscordEmail); e != "" {
		params.CustomerEmail = stripe.String(e)
	}

	return chsession.New(params)
}

// CreatePortalSession opens a Stripe billing portal session for self-service
// subscription management.
func (c *Client) CreatePortalSession(ctx context.Context, customerID string) (*stripe.BillingPortalSession, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(c.SiteURL + "/setup"),
	}
	params.Context = ctx
	return bpsession.New(params)
}

// Package licenseclient polls the storefront's license retrieval endpoint
// after a checkout. The Discord bot uses it to hand the key to the buyer
// without waiting on webhook timing.
package licenseclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxAttempts = 30
)

// Status is the terminal outcome of a license wait.
type Status string

const (
	// StatusReady means the key was retrieved.
	StatusReady Status = "ready"
	// StatusDelayed means the wait ceiling passed without a key; the license
	// may still arrive by DM once the webhook lands.
	StatusDelayed Status = "delayed"
	// StatusInvalid means the checkout session is unknown or unpaid.
	StatusInvalid Status = "invalid"
)

// Result carries the outcome and, when ready, the key.
type Result struct {
	Status     Status
	LicenseKey string
}

var ErrMissingSessionID = errors.New("checkout session id is required")

// Client polls a storefront for an issued license key.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	Interval    time.Duration
	MaxAttempts int
}

// NewClient builds a poller with the default cadence.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		Interval:    DefaultInterval,
		MaxAttempts: DefaultMaxAttempts,
	}
}

type licenseResponse struct {
	Success    bool   `json:"success"`
	Status     string `json:"status"`
	LicenseKey string `json:"licenseKey"`
	Error      string `json:"error"`
}

// FetchOnce asks for the license exactly once. A pending license is reported
// as StatusDelayed without an error.
func (c *Client) FetchOnce(ctx context.Context, sessionID string) (Result, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Result{Status: StatusInvalid}, ErrMissingSessionID
	}

	endpoint := fmt.Sprintf("%s/api/license?session_id=%s", c.BaseURL, url.QueryEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{Status: StatusDelayed}, err
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Result{Status: StatusDelayed}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{Status: StatusDelayed}, err
	}

	var body licenseResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return Result{Status: StatusDelayed}, fmt.Errorf("decode license response: %w", err)
	}

	// Both answer shapes mean retrieved: the success flag and the status
	// string.
	if body.Success || body.Status == "ready" {
		if body.LicenseKey == "" {
			return Result{Status: StatusDelayed}, errors.New("license reported ready without a key")
		}
		return Result{Status: StatusReady, LicenseKey: body.LicenseKey}, nil
	}
	if body.Status == "invalid" {
		return Result{Status: StatusInvalid}, nil
	}
	return Result{Status: StatusDelayed}, nil
}

// WaitForLicense polls until the key is ready, the session turns out
// invalid, the attempt ceiling is reached, or the context ends. Transient
// transport errors consume an attempt and the wait continues.
func (c *Client) WaitForLicense(ctx context.Context, sessionID string) (Result, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Result{Status: StatusInvalid}, ErrMissingSessionID
	}

	interval := c.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := c.FetchOnce(ctx, sessionID)
		if err == nil && res.Status != StatusDelayed {
			return res, nil
		}
		if ctx.Err() != nil {
			return Result{Status: StatusDelayed}, ctx.Err()
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return Result{Status: StatusDelayed}, ctx.Err()
		case <-time.After(interval):
		}
	}

	return Result{Status: StatusDelayed}, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

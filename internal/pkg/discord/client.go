package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/draftdeck/storefront/internal/pkg/env"
)

const defaultAPIBaseURL = "https://discord.com/api/v10"

// Embed accent color for license messages.
const embedColor = 0x5865F2

var ErrNotConfigured = errors.New("discord bot token is not configured")

// Client talks to the Discord REST API with a bot credential. DM delivery is
// a two-step protocol: open (or fetch) the DM channel for a user, then post
// a message into it.
type Client struct {
	BotToken   string
	APIBaseURL string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a Discord client from environment configuration.
func NewClientFromEnv() *Client {
	return &Client{
		BotToken:   strings.TrimSpace(env.GetEnv("DISCORD_BOT_TOKEN", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("DISCORD_API_BASE_URL", defaultAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether a bot token is present. Absence suppresses DM
// delivery but never blocks fulfillment.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.BotToken) != ""
}

type dmChannelResponse struct {
	ID string `json:"id"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
}

type messagePayload struct {
	Embeds []embed `json:"embeds"`
}

// OpenDMChannel opens (or returns the existing) direct-message channel with
// the given user and returns its channel id.
func (c *Client) OpenDMChannel(ctx context.Context, userID string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("discord user id is required")
	}

	body, err := json.Marshal(map[string]string{"recipient_id": userID})
	if err != nil {
		return "", err
	}

	var ch dmChannelResponse
	if err := c.doJSON(ctx, http.MethodPost, "/users/@me/channels", body, &ch); err != nil {
		return "", fmt.Errorf("open dm channel: %w", err)
	}
	if ch.ID == "" {
		return "", errors.New("discord returned no channel id")
	}
	return ch.ID, nil
}

// SendEmbed posts an embed message into a channel.
func (c *Client) SendEmbed(ctx context.Context, channelID, title, description string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	payload := messagePayload{
		Embeds: []embed{
			{
				Title:       title,
				Description: description,
				Color:       embedColor,
				Footer:      &embedFooter{Text: "DraftDeck • The Dynasty League Assistant"},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/channels/%s/messages", channelID)
	if err := c.doJSON(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendLicenseDM delivers the issued key with activation instructions.
func (c *Client) SendLicenseDM(ctx context.Context, userID, licenseKey string) error {
	channelID, err := c.OpenDMChannel(ctx, userID)
	if err != nil {
		return err
	}
	return c.SendEmbed(ctx, channelID, "🎉 Thank you for subscribing to DraftDeck!", LicenseMessage(licenseKey))
}

// LicenseMessage renders the DM body for an issued license key.
func LicenseMessage(licenseKey string) string {
	return fmt.Sprintf(`**Your DraftDeck license is ready!**

**License Key:** `+"`%s`"+`

**How to Activate:**
1. Go to your Discord server
2. Run command: `+"`/admin activate %s`"+`

Your license works on up to 3 Discord servers!

Need help? Contact support.`, licenseKey, licenseKey)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.BotToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode discord response: %w", err)
		}
	}
	return nil
}

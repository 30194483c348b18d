package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(baseURL string) *Client {
	return &Client{
		BotToken:   "test-token",
		APIBaseURL: baseURL,
		HTTPClient: &http.Client{Timeout: 2 * time.Second},
	}
}

func TestSendLicenseDM(t *testing.T) {
	var gotAuth string
	var gotRecipient string
	var gotMessage messagePayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/users/@me/channels":
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode channel request: %v", err)
			}
			gotRecipient = body["recipient_id"]
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "chan_1"})
		case "/channels/chan_1/messages":
			if err := json.NewDecoder(r.Body).Decode(&gotMessage); err != nil {
				t.Fatalf("decode message request: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	if err := client.SendLicenseDM(context.Background(), "user_42", "DECK-AB12-CD34-EF56"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bot test-token" {
		t.Fatalf("expected bot authorization header, got %q", gotAuth)
	}
	if gotRecipient != "user_42" {
		t.Fatalf("expected recipient user_42, got %q", gotRecipient)
	}
	if len(gotMessage.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(gotMessage.Embeds))
	}
	if !strings.Contains(gotMessage.Embeds[0].Description, "DECK-AB12-CD34-EF56") {
		t.Fatalf("embed does not contain the license key: %q", gotMessage.Embeds[0].Description)
	}
	if !strings.Contains(gotMessage.Embeds[0].Description, "/admin activate") {
		t.Fatalf("embed does not contain activation instructions")
	}
}

func TestSendLicenseDMChannelFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Cannot send messages to this user"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	err := client.SendLicenseDM(context.Background(), "user_closed_dms", "DECK-AB12-CD34-EF56")
	if err == nil {
		t.Fatalf("expected error when channel open is forbidden")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected status 403 in error, got %v", err)
	}
}

func TestNotConfigured(t *testing.T) {
	client := &Client{HTTPClient: http.DefaultClient}
	if _, err := client.OpenDMChannel(context.Background(), "u"); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

package license

import (
	"strings"
	"testing"
)

func TestGenerateKeyFormat(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !ValidKeyFormat(key) {
		t.Fatalf("generated key %q does not match expected format", key)
	}

	parts := strings.Split(key, "-")
	if len(parts) != 4 {
		t.Fatalf("expected 4 dash-separated parts, got %d (%q)", len(parts), key)
	}
	if parts[0] != KeyPrefix() {
		t.Fatalf("expected prefix %q, got %q", KeyPrefix(), parts[0])
	}
	for _, group := range parts[1:] {
		if len(group) != 4 {
			t.Fatalf("expected group length 4, got %q", group)
		}
		for i := 0; i < len(group); i++ {
			if !strings.ContainsRune(keyAlphabet, rune(group[i])) {
				t.Fatalf("character %q outside key alphabet in %q", group[i], key)
			}
		}
	}
}

func TestGenerateKeyVaries(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 64; i++ {
		key, err := GenerateKey()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate key %q within 64 generations", key)
		}
		seen[key] = struct{}{}
	}
}

func TestValidKeyFormat(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{in: "DECK-AB12-CD34-EF56", want: true},
		{in: "deck-ab12-cd34-ef56", want: false},
		{in: "DECK-AB12-CD34", want: false},
		{in: "OTHER-AB12-CD34-EF56", want: false},
		{in: "DECK-AB1!-CD34-EF56", want: false},
		{in: "", want: false},
	}

	for _, tt := range tests {
		if got := ValidKeyFormat(tt.in); got != tt.want {
			t.Fatalf("ValidKeyFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

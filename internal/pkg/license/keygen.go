package license

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/draftdeck/storefront/internal/pkg/env"
)

const (
	// keyAlphabet is the 36-symbol alphabet used for activation codes.
	// ~62 bits over 12 symbols: enough for a human-typed code, not a secret.
	keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	keyGroups    = 3
	keyGroupSize = 4

	defaultKeyPrefix = "DECK"
)

// KeyPrefix returns the configured license key prefix.
func KeyPrefix() string {
	return strings.ToUpper(strings.TrimSpace(env.GetEnv("LICENSE_KEY_PREFIX", defaultKeyPrefix)))
}

// GenerateKey mints a fresh license key of the form PREFIX-XXXX-XXXX-XXXX.
// Uniqueness is not guaranteed here; the unique index on the licenses table
// is the backstop and callers retry on conflict.
func GenerateKey() (string, error) {
	groups := make([]string, 0, keyGroups)
	max := big.NewInt(int64(len(keyAlphabet)))

	for i := 0; i < keyGroups; i++ {
		var sb strings.Builder
		for j := 0; j < keyGroupSize; j++ {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", fmt.Errorf("license keygen: %w", err)
			}
			sb.WriteByte(keyAlphabet[n.Int64()])
		}
		groups = append(groups, sb.String())
	}

	return KeyPrefix() + "-" + strings.Join(groups, "-"), nil
}

// ValidKeyFormat reports whether s looks like a key this generator produced.
func ValidKeyFormat(s string) bool {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != keyGroups+1 {
		return false
	}
	if parts[0] != KeyPrefix() {
		return false
	}
	for _, group := range parts[1:] {
		if len(group) != keyGroupSize {
			return false
		}
		for i := 0; i < len(group); i++ {
			if !strings.ContainsRune(keyAlphabet, rune(group[i])) {
				return false
			}
		}
	}
	return true
}

package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestSigningKeyPermissiveEmptyUsesPlaceholder(t *testing.T) {
	key, err := SigningKey("", true)
	if err != nil {
		t.Fatalf("SigningKey failed: %v", err)
	}
	if string(key) != devSecret {
		t.Fatalf("expected development placeholder, got %q", key)
	}
}

func TestSigningKeyPermissivePadsShortSecret(t *testing.T) {
	key, err := SigningKey("short", true)
	if err != nil {
		t.Fatalf("SigningKey failed: %v", err)
	}
	if len(key) < minSecretBytes {
		t.Fatalf("padded key too short: %d bytes", len(key))
	}
	if !strings.HasPrefix(string(key), "short") {
		t.Fatalf("padded key lost original prefix: %q", key)
	}
}

func TestSigningKeyStrictRejectsEmptyAndShort(t *testing.T) {
	for _, secret := range []string{"", "   ", "too-short"} {
		if _, err := SigningKey(secret, false); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("secret %q: expected ErrConfiguration, got %v", secret, err)
		}
	}
}

func TestSigningKeyLongSecretPassesThroughUnchanged(t *testing.T) {
	secret := strings.Repeat("a", 48)
	for _, permissive := range []bool{true, false} {
		key, err := SigningKey(secret, permissive)
		if err != nil {
			t.Fatalf("permissive=%v: SigningKey failed: %v", permissive, err)
		}
		if string(key) != secret {
			t.Fatalf("permissive=%v: key altered: %q", permissive, key)
		}
	}
}

func TestSigningKeyTrimsWhitespace(t *testing.T) {
	secret := strings.Repeat("b", 32)
	key, err := SigningKey("  "+secret+"\n", false)
	if err != nil {
		t.Fatalf("SigningKey failed: %v", err)
	}
	if string(key) != secret {
		t.Fatalf("whitespace not trimmed: %q", key)
	}
}

package auth

import (
	"fmt"
	"strings"
)

const (
	minSecretBytes = 32
	devSecret      = "dev-secret-change-me-please-change-32chars"
	secretFiller   = "00000000000000000000000000000000"
)

// SigningKey normalizes the configured signing secret to at least 32 bytes.
//
// In permissive mode an empty secret is replaced with a fixed development
// placeholder and a short secret is right-padded with filler bytes. In
// strict mode both cases fail with ErrConfiguration so the service refuses
// to start with a weak key.
func SigningKey(secret string, permissive bool) ([]byte, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		if !permissive {
			return nil, fmt.Errorf("%w: signing secret is required", ErrConfiguration)
		}
		trimmed = devSecret
	}
	if len(trimmed) >= minSecretBytes {
		return []byte(trimmed), nil
	}
	if !permissive {
		return nil, fmt.Errorf("%w: signing secret must be at least %d bytes", ErrConfiguration, minSecretBytes)
	}
	return []byte(trimmed + secretFiller), nil
}

package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func newTestTokenManager(t *testing.T, ttl time.Duration) *TokenManager {
	t.Helper()
	key, err := SigningKey(strings.Repeat("k", 32), false)
	if err != nil {
		t.Fatalf("SigningKey failed: %v", err)
	}
	return NewTokenManager(key, ttl)
}

func TestTokenRoundTrip(t *testing.T) {
	m := newTestTokenManager(t, time.Hour)
	userID := uuid.New()

	token, err := m.Issue(userID, "alice@example.com")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	identity, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if identity.UserID != userID {
		t.Fatalf("subject mismatch: got %s want %s", identity.UserID, userID)
	}
	if identity.Email != "alice@example.com" {
		t.Fatalf("email claim mismatch: %q", identity.Email)
	}
}

func TestTokenExpiryRejected(t *testing.T) {
	m := newTestTokenManager(t, time.Minute)
	token, err := m.Issue(uuid.New(), "bob@example.com")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenTamperedSignatureRejected(t *testing.T) {
	m := newTestTokenManager(t, time.Hour)
	token, err := m.Issue(uuid.New(), "carol@example.com")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := m.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestTokenWrongKeyRejected(t *testing.T) {
	m := newTestTokenManager(t, time.Hour)
	token, err := m.Issue(uuid.New(), "dave@example.com")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	other := NewTokenManager([]byte(strings.Repeat("x", 32)), time.Hour)
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong key, got %v", err)
	}
}

func TestTokenUnsignedAlgorithmRejected(t *testing.T) {
	m := newTestTokenManager(t, time.Hour)

	claims := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing none token failed: %v", err)
	}

	if _, err := m.Verify(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for alg=none, got %v", err)
	}
}

func TestTokenNonUUIDSubjectRejected(t *testing.T) {
	m := newTestTokenManager(t, time.Hour)

	claims := jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		t.Fatalf("signing failed: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for bad subject, got %v", err)
	}
}

func TestTokenGarbageInputRejected(t *testing.T) {
	m := newTestTokenManager(t, time.Hour)
	for _, input := range []string{"", "garbage", "a.b.c", strings.Repeat("x", 500)} {
		if _, err := m.Verify(input); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("input %q: expected ErrInvalidToken, got %v", input, err)
		}
	}
}

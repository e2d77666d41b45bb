package auth

import (
	"encoding/base32"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

// RFC 4226 appendix D vectors for the shared 20-byte ASCII secret,
// truncated to six digits.
func TestHOTPCodeRFCVectors(t *testing.T) {
	key := []byte("12345678901234567890")
	want := []string{
		"755224", "287082", "359152", "969429", "338314",
		"254676", "287922", "162583", "399871", "520489",
	}
	for counter, code := range want {
		if got := hotpCode(key, int64(counter)); got != code {
			t.Fatalf("counter %d: got %s want %s", counter, got, code)
		}
	}
}

// RFC 6238 appendix B vectors (SHA-1 column), last six digits.
func TestVerifyCodeRFCVectors(t *testing.T) {
	secret := base32NoPadding.EncodeToString([]byte("12345678901234567890"))
	cases := []struct {
		ts   int64
		code string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
		{20000000000, "353130"},
	}

	e := NewTOTPEngine("JobTracker")
	for _, tc := range cases {
		e.now = func() time.Time { return time.Unix(tc.ts, 0) }
		if !e.VerifyCode(secret, tc.code) {
			t.Fatalf("vector failed at t=%d code=%s", tc.ts, tc.code)
		}
	}
}

func TestVerifyCodeSkewWindow(t *testing.T) {
	e := NewTOTPEngine("JobTracker")
	secret, err := e.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	key, err := decodeBase32Secret(secret)
	if err != nil {
		t.Fatalf("decoding generated secret failed: %v", err)
	}

	now := time.Unix(1700000000, 0)
	e.now = func() time.Time { return now }
	baseStep := now.Unix() / totpPeriod

	for _, offset := range []int64{-1, 0, 1} {
		if !e.VerifyCode(secret, hotpCode(key, baseStep+offset)) {
			t.Fatalf("code at step offset %d rejected", offset)
		}
	}
	for _, offset := range []int64{-2, 2} {
		if e.VerifyCode(secret, hotpCode(key, baseStep+offset)) {
			t.Fatalf("code at step offset %d accepted outside skew window", offset)
		}
	}
}

func TestVerifyCodeRejectsMalformedInput(t *testing.T) {
	e := NewTOTPEngine("JobTracker")
	secret, err := e.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}

	for _, code := range []string{"", "12345", "1234567", "abcdef", "12 456"} {
		if e.VerifyCode(secret, code) {
			t.Fatalf("malformed code %q accepted", code)
		}
	}
	if e.VerifyCode("not-base32!", "123456") {
		t.Fatal("undecodable secret accepted")
	}
}

func TestGenerateSecretShape(t *testing.T) {
	e := NewTOTPEngine("JobTracker")
	seen := map[string]bool{}
	for i := 0; i < 16; i++ {
		secret, err := e.GenerateSecret()
		if err != nil {
			t.Fatalf("GenerateSecret failed: %v", err)
		}
		raw, err := base32NoPadding.DecodeString(secret)
		if err != nil {
			t.Fatalf("secret not base32: %v", err)
		}
		if len(raw) != totpSecretBytes {
			t.Fatalf("secret is %d bytes, want %d", len(raw), totpSecretBytes)
		}
		if seen[secret] {
			t.Fatal("duplicate secret generated")
		}
		seen[secret] = true
	}
}

// Cross-check against an independent implementation: codes produced by
// pquerna/otp must verify here and vice versa.
func TestVerifyCodeCrossImplementation(t *testing.T) {
	e := NewTOTPEngine("JobTracker")
	secret, err := e.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}

	now := time.Unix(1712345678, 0)
	e.now = func() time.Time { return now }

	code, err := totp.GenerateCode(secret, now)
	if err != nil {
		t.Fatalf("reference GenerateCode failed: %v", err)
	}
	if !e.VerifyCode(secret, code) {
		t.Fatalf("reference code %s rejected", code)
	}

	key, err := decodeBase32Secret(secret)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	ours := hotpCode(key, now.Unix()/totpPeriod)
	if !totp.Validate(ours, secret) {
		t.Fatalf("our code %s rejected by reference implementation", ours)
	}
}

func TestProvisionURI(t *testing.T) {
	e := NewTOTPEngine("JobTracker")
	secret := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte("12345678901234567890"))

	uri := e.ProvisionURI("alice@example.com", secret)
	for _, want := range []string{
		"otpauth://totp/JobTracker:alice@example.com",
		"issuer=JobTracker",
		"digits=6",
		"period=30",
		"secret=" + secret,
	} {
		if !strings.Contains(uri, want) {
			t.Fatalf("uri %q missing %q", uri, want)
		}
	}
}

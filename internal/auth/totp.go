package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	totpSecretBytes = 20
	totpDigits      = 6
	totpPeriod      = 30
	totpSkew        = 1
)

var base32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// TOTPEngine generates shared secrets and verifies 6-digit time-based
// one-time codes with a ±1 step tolerance window. It performs no network
// or storage I/O.
type TOTPEngine struct {
	issuer string
	now    func() time.Time
}

func NewTOTPEngine(issuer string) *TOTPEngine {
	return &TOTPEngine{issuer: issuer, now: time.Now}
}

// GenerateSecret returns a fresh 20-byte secret, base32-encoded without
// padding, for enrollment.
func (e *TOTPEngine) GenerateSecret() (string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base32NoPadding.EncodeToString(raw), nil
}

// VerifyCode checks code against the time steps now-1, now, now+1.
// Input that is not exactly six digits is rejected without computing.
func (e *TOTPEngine) VerifyCode(secret, code string) bool {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != totpDigits || !isDigits(trimmed) {
		return false
	}

	key, err := decodeBase32Secret(secret)
	if err != nil {
		return false
	}

	baseStep := e.now().Unix() / totpPeriod
	for offset := int64(-totpSkew); offset <= totpSkew; offset++ {
		step := baseStep + offset
		if step < 0 {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(hotpCode(key, step)), []byte(trimmed)) == 1 {
			return true
		}
	}
	return false
}

// ProvisionURI builds the otpauth:// enrollment URI for rendering a QR
// code client-side.
func (e *TOTPEngine) ProvisionURI(email, secret string) string {
	label := url.PathEscape(e.issuer + ":" + email)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", e.issuer)
	v.Set("digits", strconv.Itoa(totpDigits))
	v.Set("period", strconv.Itoa(totpPeriod))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// hotpCode computes the RFC 4226 code for a single counter value:
// HMAC-SHA1 over the big-endian counter, dynamic truncation, mod 10^6.
func hotpCode(key []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	return fmt.Sprintf("%0*d", totpDigits, bin%1000000)
}

func decodeBase32Secret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.TrimSpace(secret))
	if normalized == "" {
		return nil, errors.New("empty totp secret")
	}
	return base32NoPadding.DecodeString(normalized)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

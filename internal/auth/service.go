// Package auth implements the account-security core: password signup and
// login, stateless access tokens, rotating opaque refresh tokens,
// single-use verification and reset tokens, and TOTP-based MFA.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seanlumasag/job-application-tracker/internal/audit"
	"github.com/seanlumasag/job-application-tracker/internal/store"
)

// Store is the persistence surface the orchestrator owns. All token
// records are mutated exclusively through here.
type Store interface {
	store.UserStore
	store.RefreshTokenStore
	store.OneTimeTokenStore
}

// ServiceConfig carries the behavioral toggles. No ambient environment
// reads happen inside business logic.
type ServiceConfig struct {
	RequireVerifiedEmail bool
	ReturnTokens         bool
	RefreshTokenTTL      time.Duration
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
}

// Result is the auth success response: identity plus freshly issued
// credentials. Access and refresh tokens are empty when policy withholds
// them (unverified email at signup).
type Result struct {
	UserID        uuid.UUID
	Email         string
	AccessToken   string
	RefreshToken  string
	EmailVerified bool
	MFAEnabled    bool
}

// MFASetup is returned by SetupMFA: the raw shared secret and the
// otpauth:// enrollment URI.
type MFASetup struct {
	Secret string
	URI    string
}

// Service orchestrates the auth flows over the injected components.
type Service struct {
	store     Store
	tokens    *TokenManager
	passwords *PasswordHasher
	totp      *TOTPEngine
	audit     *audit.Dispatcher
	cfg       ServiceConfig
	now       func() time.Time
}

func NewService(
	st Store,
	tokens *TokenManager,
	passwords *PasswordHasher,
	totp *TOTPEngine,
	dispatcher *audit.Dispatcher,
	cfg ServiceConfig,
) *Service {
	return &Service{
		store:     st,
		tokens:    tokens,
		passwords: passwords,
		totp:      totp,
		audit:     dispatcher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// NormalizeEmail is the canonical email form used for uniqueness and
// lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a new account. A verification token is always created;
// access and refresh tokens are issued only when policy does not require a
// verified email first. The returned verification token is plumbed to the
// caller or discarded depending on the return-tokens mode.
func (s *Service) Signup(ctx context.Context, email, password string) (*Result, string, error) {
	normalized := NormalizeEmail(email)

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, "", err
	}

	user := &store.User{
		ID:           uuid.New(),
		Email:        normalized,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", err
	}

	verificationToken, err := s.replaceOneTimeToken(ctx, user.ID, store.TokenEmailVerification, s.cfg.EmailVerificationTTL)
	if err != nil {
		return nil, "", err
	}

	s.emit(ctx, "signup", user.ID, true, "")
	result, err := s.buildResult(ctx, user, !s.cfg.RequireVerifiedEmail)
	if err != nil {
		return nil, "", err
	}
	return result, verificationToken, nil
}

// Login authenticates with email+password and, when the account has MFA
// enabled, a 6-digit code in the same request. The password comparison
// runs even when the email is unknown so timing does not reveal account
// existence.
func (s *Service) Login(ctx context.Context, email, password, mfaCode string) (*Result, error) {
	user, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.passwords.VerifyDummy(password)
			s.emit(ctx, "login", uuid.Nil, false, "unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	match, err := s.passwords.Verify(password, user.PasswordHash)
	if err != nil || !match {
		s.emit(ctx, "login", user.ID, false, "password mismatch")
		return nil, ErrInvalidCredentials
	}

	if s.cfg.RequireVerifiedEmail && !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	if user.MFAEnabled {
		if mfaCode == "" || !s.totp.VerifyCode(user.MFASecret, mfaCode) {
			s.emit(ctx, "login", user.ID, false, "invalid mfa code")
			return nil, ErrInvalidMFACode
		}
	}

	s.emit(ctx, "login", user.ID, true, "")
	return s.buildResult(ctx, user, true)
}

// Refresh redeems an opaque refresh token and rotates it: the presented
// token is revoked and a fresh pair is issued. Of two concurrent
// redemptions of the same value exactly one wins; the loser sees
// ErrInvalidToken.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*Result, error) {
	stored, err := s.findRefreshToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	if s.now().After(stored.ExpiresAt) {
		// Mark inert so repeated redemption attempts behave identically.
		_, _ = s.store.RevokeRefreshToken(ctx, stored.ID, s.now())
		return nil, ErrTokenExpired
	}

	user, err := s.store.GetUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if s.cfg.RequireVerifiedEmail && !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	won, err := s.store.RevokeRefreshToken(ctx, stored.ID, s.now())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err != nil || !won {
		return nil, ErrInvalidToken
	}

	s.emit(ctx, "refresh", user.ID, true, "")
	return s.buildResult(ctx, user, true)
}

// Logout revokes the presented refresh token. Revoked or unknown tokens
// fail with ErrInvalidToken, which makes repeated logouts observable
// failures rather than silent no-ops.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	stored, err := s.findRefreshToken(ctx, rawToken)
	if err != nil {
		return err
	}
	won, err := s.store.RevokeRefreshToken(ctx, stored.ID, s.now())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err != nil || !won {
		return ErrInvalidToken
	}
	s.emit(ctx, "logout", stored.UserID, true, "")
	return nil
}

// RequestEmailVerification reissues a verification token, invalidating
// prior ones. Unknown or already-verified emails produce no token but also
// no error, so responses do not leak account existence.
func (s *Service) RequestEmailVerification(ctx context.Context, email string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	if user.EmailVerified {
		return "", nil
	}
	return s.replaceOneTimeToken(ctx, user.ID, store.TokenEmailVerification, s.cfg.EmailVerificationTTL)
}

// VerifyEmail redeems a verification token and marks the account
// verified.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) error {
	stored, err := s.redeemOneTimeToken(ctx, store.TokenEmailVerification, rawToken)
	if err != nil {
		return err
	}

	user, err := s.store.GetUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	now := s.now()
	user.EmailVerified = true
	user.EmailVerifiedAt = &now
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return err
	}
	s.emit(ctx, "verify_email", user.ID, true, "")
	return nil
}

// RequestPasswordReset issues a reset token, invalidating prior ones. When
// the email is unknown a token value is still generated (and discarded) so
// the request costs and responds the same either way.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NewOpaqueToken()
		}
		return "", err
	}

	token, err := s.replaceOneTimeToken(ctx, user.ID, store.TokenPasswordReset, s.cfg.PasswordResetTTL)
	if err != nil {
		return "", err
	}
	s.emit(ctx, "password_reset_request", user.ID, true, "")
	return token, nil
}

// ConfirmPasswordReset redeems a reset token, installs the new password
// hash, and revokes every refresh token so existing sessions must log in
// again.
func (s *Service) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) error {
	stored, err := s.redeemOneTimeToken(ctx, store.TokenPasswordReset, rawToken)
	if err != nil {
		return err
	}

	user, err := s.store.GetUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return err
	}
	if err := s.store.RevokeAllRefreshTokens(ctx, user.ID, s.now()); err != nil {
		return err
	}
	s.emit(ctx, "password_reset_confirm", user.ID, true, "")
	return nil
}

// SetupMFA stores a fresh TOTP secret on the account with MFA left
// disabled until EnableMFA proves possession.
func (s *Service) SetupMFA(ctx context.Context, userID uuid.UUID) (*MFASetup, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	user.MFASecret = secret
	user.MFAEnabled = false
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	return &MFASetup{Secret: secret, URI: s.totp.ProvisionURI(user.Email, secret)}, nil
}

// EnableMFA flips MFA on after a valid code against the pending secret.
func (s *Service) EnableMFA(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFASecret == "" || !s.totp.VerifyCode(user.MFASecret, code) {
		return ErrInvalidMFACode
	}
	user.MFAEnabled = true
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return err
	}
	s.emit(ctx, "mfa_enable", user.ID, true, "")
	return nil
}

// DisableMFA clears the secret and the enabled flag. While MFA is active a
// valid code is required first.
func (s *Service) DisableMFA(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFAEnabled {
		if user.MFASecret == "" || !s.totp.VerifyCode(user.MFASecret, code) {
			return ErrInvalidMFACode
		}
	}
	user.MFAEnabled = false
	user.MFASecret = ""
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return err
	}
	s.emit(ctx, "mfa_disable", user.ID, true, "")
	return nil
}

// DeleteAccount requires password re-confirmation, then erases the
// credential record and everything the user owns. Token families die with
// the user row.
func (s *Service) DeleteAccount(ctx context.Context, userID uuid.UUID, password string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	match, err := s.passwords.Verify(password, user.PasswordHash)
	if err != nil || !match {
		return ErrInvalidCredentials
	}

	if err := s.store.RevokeAllRefreshTokens(ctx, userID, s.now()); err != nil {
		return err
	}
	if err := s.store.InvalidateOneTimeTokens(ctx, store.TokenEmailVerification, userID, s.now()); err != nil {
		return err
	}
	if err := s.store.InvalidateOneTimeTokens(ctx, store.TokenPasswordReset, userID, s.now()); err != nil {
		return err
	}
	s.emit(ctx, "account_delete", userID, true, "")
	return s.store.DeleteUser(ctx, userID)
}

// ReturnTokens reports whether one-time tokens are included in API
// responses (dev/test mode) or only dispatched out-of-band.
func (s *Service) ReturnTokens() bool { return s.cfg.ReturnTokens }

func (s *Service) getUser(ctx context.Context, userID uuid.UUID) (*store.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) buildResult(ctx context.Context, user *store.User, issueTokens bool) (*Result, error) {
	result := &Result{
		UserID:        user.ID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		MFAEnabled:    user.MFAEnabled,
	}
	if !issueTokens {
		return result, nil
	}

	access, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	refresh, err := NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	record := &store.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: HashOpaqueToken(refresh),
		ExpiresAt: s.now().Add(s.cfg.RefreshTokenTTL),
	}
	if err := s.store.CreateRefreshToken(ctx, record); err != nil {
		return nil, err
	}

	result.AccessToken = access
	result.RefreshToken = refresh
	return result, nil
}

func (s *Service) findRefreshToken(ctx context.Context, rawToken string) (*store.RefreshToken, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrInvalidToken
	}
	stored, err := s.store.GetRefreshTokenByHash(ctx, HashOpaqueToken(rawToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if stored.RevokedAt != nil {
		return nil, ErrInvalidToken
	}
	return stored, nil
}

func (s *Service) replaceOneTimeToken(ctx context.Context, userID uuid.UUID, kind store.TokenKind, ttl time.Duration) (string, error) {
	raw, err := NewOpaqueToken()
	if err != nil {
		return "", err
	}
	token := &store.OneTimeToken{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		TokenHash: HashOpaqueToken(raw),
		ExpiresAt: s.now().Add(ttl),
	}
	if err := s.store.ReplaceOneTimeToken(ctx, token); err != nil {
		return "", err
	}
	return raw, nil
}

// redeemOneTimeToken enforces the single-use state machine shared by
// verification and reset tokens: unknown fails invalid, used fails
// already-used, expired fails expired and is marked inert, and of
// concurrent redemptions exactly one marks the use-marker.
func (s *Service) redeemOneTimeToken(ctx context.Context, kind store.TokenKind, rawToken string) (*store.OneTimeToken, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrInvalidToken
	}
	stored, err := s.store.GetOneTimeTokenByHash(ctx, kind, HashOpaqueToken(rawToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if stored.UsedAt != nil {
		return nil, ErrTokenAlreadyUsed
	}
	if s.now().After(stored.ExpiresAt) {
		_, _ = s.store.MarkOneTimeTokenUsed(ctx, stored.ID, s.now())
		return nil, ErrTokenExpired
	}

	won, err := s.store.MarkOneTimeTokenUsed(ctx, stored.ID, s.now())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err != nil || !won {
		return nil, ErrTokenAlreadyUsed
	}
	return stored, nil
}

func (s *Service) emit(ctx context.Context, eventType string, userID uuid.UUID, success bool, detail string) {
	s.audit.Emit(ctx, audit.Event{
		Timestamp: s.now(),
		EventType: eventType,
		UserID:    userID,
		Success:   success,
		Detail:    detail,
	})
}

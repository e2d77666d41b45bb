// Package store defines the persistence surface for the service: the
// credential records owned by the auth layer and the application-tracking
// records it fronts. Two implementations exist, an in-memory store for
// tests and local development and a Postgres store for deployments.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateEmail is returned by CreateUser when the normalized email is
// already registered.
var ErrDuplicateEmail = errors.New("duplicate email")

// User is the credential record. Email is stored normalized (trimmed,
// lowercased) and unique.
type User struct {
	ID              uuid.UUID
	Email           string
	PasswordHash    string
	EmailVerified   bool
	EmailVerifiedAt *time.Time
	MFASecret       string
	MFAEnabled      bool
	CreatedAt       time.Time
}

// RefreshToken is one live session credential. Only the SHA-256 digest of
// the opaque value is stored. RevokedAt doubles as the rotation marker.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// TokenKind distinguishes the two single-use token namespaces that share
// one table shape.
type TokenKind string

const (
	TokenEmailVerification TokenKind = "email_verification"
	TokenPasswordReset     TokenKind = "password_reset"
)

// OneTimeToken is an email-verification or password-reset token. At most
// one unused, unexpired token exists per (user, kind); replacing invalidates
// all prior ones.
type OneTimeToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Kind      TokenKind
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// Application is one tracked job application.
type Application struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Company     string
	Role        string
	JobURL      string
	Location    string
	Notes       string
	Stage       string
	LastTouchAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StageEvent records one stage transition of an application.
type StageEvent struct {
	ID            uuid.UUID
	ApplicationID uuid.UUID
	FromStage     string
	ToStage       string
	OccurredAt    time.Time
}

// Task is a follow-up item attached to an application.
type Task struct {
	ID            uuid.UUID
	ApplicationID uuid.UUID
	UserID        uuid.UUID
	Title         string
	Status        string
	DueDate       *time.Time
	CreatedAt     time.Time
}

// AuditEvent is one append-only audit row.
type AuditEvent struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	EventType string
	Success   bool
	Detail    string
	CreatedAt time.Time
}

// UserStore owns credential records. The auth service is the only writer
// of password and MFA fields.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	// DeleteUser erases the credential record and everything owned by the
	// user: tokens, applications, stage events, tasks, audit rows.
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// RefreshTokenStore persists rotating session credentials.
type RefreshTokenStore interface {
	CreateRefreshToken(ctx context.Context, t *RefreshToken) error
	// GetRefreshTokenByHash returns the token row regardless of state;
	// the caller decides how revoked or expired rows fail.
	GetRefreshTokenByHash(ctx context.Context, hash string) (*RefreshToken, error)
	// RevokeRefreshToken marks the token revoked iff it is still live.
	// It reports whether this call performed the revocation, which is the
	// single-winner primitive rotation relies on.
	RevokeRefreshToken(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// OneTimeTokenStore persists verification and reset tokens.
type OneTimeTokenStore interface {
	// ReplaceOneTimeToken invalidates every live token of the same kind
	// for the user and stores t as the only live one.
	ReplaceOneTimeToken(ctx context.Context, t *OneTimeToken) error
	GetOneTimeTokenByHash(ctx context.Context, kind TokenKind, hash string) (*OneTimeToken, error)
	// MarkOneTimeTokenUsed sets the use-marker iff it is unset and
	// reports whether this call won.
	MarkOneTimeTokenUsed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	InvalidateOneTimeTokens(ctx context.Context, kind TokenKind, userID uuid.UUID, at time.Time) error
}

// RecordStore covers the application-tracking records that sit behind the
// auth layer.
type RecordStore interface {
	CreateApplication(ctx context.Context, a *Application) error
	GetApplication(ctx context.Context, id, userID uuid.UUID) (*Application, error)
	ListApplications(ctx context.Context, userID uuid.UUID) ([]Application, error)
	UpdateApplication(ctx context.Context, a *Application) error
	DeleteApplication(ctx context.Context, id, userID uuid.UUID) error
	AppendStageEvent(ctx context.Context, e *StageEvent) error
	ListStageEvents(ctx context.Context, applicationID uuid.UUID) ([]StageEvent, error)
	// ListRecentStageEvents returns the newest stage events across all of
	// the user's applications, newest first.
	ListRecentStageEvents(ctx context.Context, userID uuid.UUID, limit int) ([]StageEvent, error)

	CreateTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, id, userID uuid.UUID) (*Task, error)
	ListTasks(ctx context.Context, userID uuid.UUID) ([]Task, error)
	UpdateTask(ctx context.Context, t *Task) error
	DeleteTask(ctx context.Context, id, userID uuid.UUID) error

	CountApplicationsByStage(ctx context.Context, userID uuid.UUID) (map[string]int, error)
	CountOpenTasks(ctx context.Context, userID uuid.UUID) (int, error)
}

// AuditStore is the append-only event sink consumed by the audit
// dispatcher.
type AuditStore interface {
	AppendAuditEvent(ctx context.Context, e *AuditEvent) error
	ListAuditEvents(ctx context.Context, userID uuid.UUID, limit int) ([]AuditEvent, error)
}

// Store is the full persistence surface.
type Store interface {
	UserStore
	RefreshTokenStore
	OneTimeTokenStore
	RecordStore
	AuditStore
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/seanlumasag/job-application-tracker/internal/store/migrations"
)

// Postgres implements Store over database/sql with the pgx driver.
// Single-winner semantics rely on conditional UPDATEs guarded by the
// current row state.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres dials the database with exponential backoff, runs the
// embedded goose migrations, and returns the store.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	ping := func() error { return db.PingContext(ctx) }
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(ping, policy); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &Postgres{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) CreateUser(ctx context.Context, u *User) error {
	query := `INSERT INTO users (id, email, password_hash, email_verified, mfa_secret, mfa_enabled, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := p.db.ExecContext(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.EmailVerified, u.MFASecret, u.MFAEnabled, u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT id, email, password_hash, email_verified, email_verified_at, mfa_secret, mfa_enabled, created_at
	          FROM users WHERE email = lower($1)`
	return p.scanUser(p.db.QueryRowContext(ctx, query, email))
}

func (p *Postgres) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT id, email, password_hash, email_verified, email_verified_at, mfa_secret, mfa_enabled, created_at
	          FROM users WHERE id = $1`
	return p.scanUser(p.db.QueryRowContext(ctx, query, id))
}

func (p *Postgres) scanUser(row *sql.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerified, &u.EmailVerifiedAt,
		&u.MFASecret, &u.MFAEnabled, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (p *Postgres) UpdateUser(ctx context.Context, u *User) error {
	query := `UPDATE users
	          SET email = $2, password_hash = $3, email_verified = $4, email_verified_at = $5,
	              mfa_secret = $6, mfa_enabled = $7
	          WHERE id = $1`
	res, err := p.db.ExecContext(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.EmailVerified, u.EmailVerifiedAt, u.MFASecret, u.MFAEnabled)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRow(res)
}

func (p *Postgres) DeleteUser(ctx context.Context, id uuid.UUID) error {
	// Token, application, stage-event, task, and audit rows cascade via
	// foreign keys (see migrations).
	res, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRow(res)
}

func (p *Postgres) CreateRefreshToken(ctx context.Context, t *RefreshToken) error {
	query := `INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at) VALUES ($1, $2, $3, $4)`
	if _, err := p.db.ExecContext(ctx, query, t.ID, t.UserID, t.TokenHash, t.ExpiresAt); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (p *Postgres) GetRefreshTokenByHash(ctx context.Context, hash string) (*RefreshToken, error) {
	query := `SELECT id, user_id, token_hash, expires_at, revoked_at FROM refresh_tokens WHERE token_hash = $1`
	t := &RefreshToken{}
	err := p.db.QueryRowContext(ctx, query, hash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.RevokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}
	return t, nil
}

func (p *Postgres) RevokeRefreshToken(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	// The revoked_at IS NULL guard makes concurrent redemptions of the
	// same token resolve to exactly one winner.
	query := `UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`
	res, err := p.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *Postgres) RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID, at time.Time) error {
	query := `UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`
	if _, err := p.db.ExecContext(ctx, query, userID, at); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

func (p *Postgres) ReplaceOneTimeToken(ctx context.Context, t *OneTimeToken) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	invalidate := `UPDATE one_time_tokens SET used_at = now() WHERE user_id = $1 AND kind = $2 AND used_at IS NULL`
	if _, err := tx.ExecContext(ctx, invalidate, t.UserID, t.Kind); err != nil {
		return fmt.Errorf("invalidate prior tokens: %w", err)
	}

	insert := `INSERT INTO one_time_tokens (id, user_id, kind, token_hash, expires_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, insert, t.ID, t.UserID, t.Kind, t.TokenHash, t.ExpiresAt); err != nil {
		return fmt.Errorf("insert one-time token: %w", err)
	}

	return tx.Commit()
}

func (p *Postgres) GetOneTimeTokenByHash(ctx context.Context, kind TokenKind, hash string) (*OneTimeToken, error) {
	query := `SELECT id, user_id, kind, token_hash, expires_at, used_at
	          FROM one_time_tokens WHERE kind = $1 AND token_hash = $2`
	t := &OneTimeToken{}
	err := p.db.QueryRowContext(ctx, query, kind, hash).
		Scan(&t.ID, &t.UserID, &t.Kind, &t.TokenHash, &t.ExpiresAt, &t.UsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan one-time token: %w", err)
	}
	return t, nil
}

func (p *Postgres) MarkOneTimeTokenUsed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE one_time_tokens SET used_at = $2 WHERE id = $1 AND used_at IS NULL`
	res, err := p.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("mark token used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *Postgres) InvalidateOneTimeTokens(ctx context.Context, kind TokenKind, userID uuid.UUID, at time.Time) error {
	query := `UPDATE one_time_tokens SET used_at = $3 WHERE kind = $1 AND user_id = $2 AND used_at IS NULL`
	if _, err := p.db.ExecContext(ctx, query, kind, userID, at); err != nil {
		return fmt.Errorf("invalidate tokens: %w", err)
	}
	return nil
}

func (p *Postgres) CreateApplication(ctx context.Context, a *Application) error {
	query := `INSERT INTO applications (id, user_id, company, role, job_url, location, notes, stage, last_touch_at, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := p.db.ExecContext(ctx, query, a.ID, a.UserID, a.Company, a.Role, a.JobURL, a.Location,
		a.Notes, a.Stage, a.LastTouchAt, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (p *Postgres) GetApplication(ctx context.Context, id, userID uuid.UUID) (*Application, error) {
	query := `SELECT id, user_id, company, role, job_url, location, notes, stage, last_touch_at, created_at, updated_at
	          FROM applications WHERE id = $1 AND user_id = $2`
	a := &Application{}
	err := p.db.QueryRowContext(ctx, query, id, userID).Scan(&a.ID, &a.UserID, &a.Company, &a.Role,
		&a.JobURL, &a.Location, &a.Notes, &a.Stage, &a.LastTouchAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan application: %w", err)
	}
	return a, nil
}

func (p *Postgres) ListApplications(ctx context.Context, userID uuid.UUID) ([]Application, error) {
	query := `SELECT id, user_id, company, role, job_url, location, notes, stage, last_touch_at, created_at, updated_at
	          FROM applications WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []Application
	for rows.Next() {
		var a Application
		if err := rows.Scan(&a.ID, &a.UserID, &a.Company, &a.Role, &a.JobURL, &a.Location,
			&a.Notes, &a.Stage, &a.LastTouchAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateApplication(ctx context.Context, a *Application) error {
	query := `UPDATE applications
	          SET company = $3, role = $4, job_url = $5, location = $6, notes = $7, stage = $8,
	              last_touch_at = $9, updated_at = $10
	          WHERE id = $1 AND user_id = $2`
	res, err := p.db.ExecContext(ctx, query, a.ID, a.UserID, a.Company, a.Role, a.JobURL,
		a.Location, a.Notes, a.Stage, a.LastTouchAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	return requireRow(res)
}

func (p *Postgres) DeleteApplication(ctx context.Context, id, userID uuid.UUID) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	return requireRow(res)
}

func (p *Postgres) AppendStageEvent(ctx context.Context, e *StageEvent) error {
	query := `INSERT INTO stage_events (id, application_id, from_stage, to_stage, occurred_at)
	          VALUES ($1, $2, $3, $4, $5)`
	if _, err := p.db.ExecContext(ctx, query, e.ID, e.ApplicationID, e.FromStage, e.ToStage, e.OccurredAt); err != nil {
		return fmt.Errorf("insert stage event: %w", err)
	}
	return nil
}

func (p *Postgres) ListStageEvents(ctx context.Context, applicationID uuid.UUID) ([]StageEvent, error) {
	query := `SELECT id, application_id, from_stage, to_stage, occurred_at
	          FROM stage_events WHERE application_id = $1 ORDER BY occurred_at`
	rows, err := p.db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list stage events: %w", err)
	}
	defer rows.Close()

	var out []StageEvent
	for rows.Next() {
		var e StageEvent
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.FromStage, &e.ToStage, &e.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) ListRecentStageEvents(ctx context.Context, userID uuid.UUID, limit int) ([]StageEvent, error) {
	query := `SELECT se.id, se.application_id, se.from_stage, se.to_stage, se.occurred_at
	          FROM stage_events se
	          JOIN applications a ON a.id = se.application_id
	          WHERE a.user_id = $1 ORDER BY se.occurred_at DESC LIMIT $2`
	rows, err := p.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent stage events: %w", err)
	}
	defer rows.Close()

	var out []StageEvent
	for rows.Next() {
		var e StageEvent
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.FromStage, &e.ToStage, &e.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateTask(ctx context.Context, t *Task) error {
	query := `INSERT INTO tasks (id, application_id, user_id, title, status, due_date, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := p.db.ExecContext(ctx, query, t.ID, t.ApplicationID, t.UserID, t.Title, t.Status, t.DueDate, t.CreatedAt); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (p *Postgres) GetTask(ctx context.Context, id, userID uuid.UUID) (*Task, error) {
	query := `SELECT id, application_id, user_id, title, status, due_date, created_at
	          FROM tasks WHERE id = $1 AND user_id = $2`
	t := &Task{}
	err := p.db.QueryRowContext(ctx, query, id, userID).
		Scan(&t.ID, &t.ApplicationID, &t.UserID, &t.Title, &t.Status, &t.DueDate, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return t, nil
}

func (p *Postgres) ListTasks(ctx context.Context, userID uuid.UUID) ([]Task, error) {
	query := `SELECT id, application_id, user_id, title, status, due_date, created_at
	          FROM tasks WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.ApplicationID, &t.UserID, &t.Title, &t.Status, &t.DueDate, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateTask(ctx context.Context, t *Task) error {
	query := `UPDATE tasks SET title = $3, status = $4, due_date = $5 WHERE id = $1 AND user_id = $2`
	res, err := p.db.ExecContext(ctx, query, t.ID, t.UserID, t.Title, t.Status, t.DueDate)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireRow(res)
}

func (p *Postgres) DeleteTask(ctx context.Context, id, userID uuid.UUID) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireRow(res)
}

func (p *Postgres) CountApplicationsByStage(ctx context.Context, userID uuid.UUID) (map[string]int, error) {
	query := `SELECT stage, count(*) FROM applications WHERE user_id = $1 GROUP BY stage`
	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, err
		}
		counts[stage] = n
	}
	return counts, rows.Err()
}

func (p *Postgres) CountOpenTasks(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	query := `SELECT count(*) FROM tasks WHERE user_id = $1 AND status <> 'DONE'`
	if err := p.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

func (p *Postgres) AppendAuditEvent(ctx context.Context, e *AuditEvent) error {
	query := `INSERT INTO audit_events (id, user_id, event_type, success, detail, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := p.db.ExecContext(ctx, query, e.ID, e.UserID, e.EventType, e.Success, e.Detail, e.CreatedAt); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (p *Postgres) ListAuditEvents(ctx context.Context, userID uuid.UUID, limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, user_id, event_type, success, detail, created_at
	          FROM audit_events WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := p.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []AuditEvent
	for rows.Next() {
		var e AuditEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventType, &e.Success, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

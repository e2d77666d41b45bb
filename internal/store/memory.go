package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a mutex-protected in-memory Store. It backs the test suites
// and local development; semantics (conditional revocation, single-winner
// consumption) match the Postgres store.
type Memory struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*User
	usersByEmail  map[string]uuid.UUID
	refreshTokens map[uuid.UUID]*RefreshToken
	oneTimeTokens map[uuid.UUID]*OneTimeToken
	applications  map[uuid.UUID]*Application
	stageEvents   map[uuid.UUID]*StageEvent
	tasks         map[uuid.UUID]*Task
	auditEvents   []*AuditEvent
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:         make(map[uuid.UUID]*User),
		usersByEmail:  make(map[string]uuid.UUID),
		refreshTokens: make(map[uuid.UUID]*RefreshToken),
		oneTimeTokens: make(map[uuid.UUID]*OneTimeToken),
		applications:  make(map[uuid.UUID]*Application),
		stageEvents:   make(map[uuid.UUID]*StageEvent),
		tasks:         make(map[uuid.UUID]*Task),
	}
}

func (m *Memory) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, exists := m.usersByEmail[key]; exists {
		return ErrDuplicateEmail
	}
	cp := *u
	m.users[u.ID] = &cp
	m.usersByEmail[key] = u.ID
	return nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.usersByEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *Memory) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) UpdateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	delete(m.usersByEmail, strings.ToLower(existing.Email))
	cp := *u
	m.users[u.ID] = &cp
	m.usersByEmail[strings.ToLower(u.Email)] = u.ID
	return nil
}

func (m *Memory) DeleteUser(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.usersByEmail, strings.ToLower(u.Email))
	delete(m.users, id)
	for tid, t := range m.refreshTokens {
		if t.UserID == id {
			delete(m.refreshTokens, tid)
		}
	}
	for tid, t := range m.oneTimeTokens {
		if t.UserID == id {
			delete(m.oneTimeTokens, tid)
		}
	}
	for aid, a := range m.applications {
		if a.UserID == id {
			for sid, s := range m.stageEvents {
				if s.ApplicationID == aid {
					delete(m.stageEvents, sid)
				}
			}
			delete(m.applications, aid)
		}
	}
	for tid, t := range m.tasks {
		if t.UserID == id {
			delete(m.tasks, tid)
		}
	}
	kept := m.auditEvents[:0]
	for _, e := range m.auditEvents {
		if e.UserID != id {
			kept = append(kept, e)
		}
	}
	m.auditEvents = kept
	return nil
}

func (m *Memory) CreateRefreshToken(_ context.Context, t *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.refreshTokens[t.ID] = &cp
	return nil
}

func (m *Memory) GetRefreshTokenByHash(_ context.Context, hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.refreshTokens {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) RevokeRefreshToken(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.refreshTokens[id]
	if !ok {
		return false, ErrNotFound
	}
	if t.RevokedAt != nil {
		return false, nil
	}
	ts := at
	t.RevokedAt = &ts
	return true, nil
}

func (m *Memory) RevokeAllRefreshTokens(_ context.Context, userID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.refreshTokens {
		if t.UserID == userID && t.RevokedAt == nil {
			ts := at
			t.RevokedAt = &ts
		}
	}
	return nil
}

func (m *Memory) ReplaceOneTimeToken(_ context.Context, t *OneTimeToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.oneTimeTokens {
		if existing.UserID == t.UserID && existing.Kind == t.Kind && existing.UsedAt == nil {
			ts := time.Now()
			existing.UsedAt = &ts
		}
	}
	cp := *t
	m.oneTimeTokens[t.ID] = &cp
	return nil
}

func (m *Memory) GetOneTimeTokenByHash(_ context.Context, kind TokenKind, hash string) (*OneTimeToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.oneTimeTokens {
		if t.Kind == kind && t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) MarkOneTimeTokenUsed(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.oneTimeTokens[id]
	if !ok {
		return false, ErrNotFound
	}
	if t.UsedAt != nil {
		return false, nil
	}
	ts := at
	t.UsedAt = &ts
	return true, nil
}

func (m *Memory) InvalidateOneTimeTokens(_ context.Context, kind TokenKind, userID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.oneTimeTokens {
		if t.Kind == kind && t.UserID == userID && t.UsedAt == nil {
			ts := at
			t.UsedAt = &ts
		}
	}
	return nil
}

func (m *Memory) CreateApplication(_ context.Context, a *Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.applications[a.ID] = &cp
	return nil
}

func (m *Memory) GetApplication(_ context.Context, id, userID uuid.UUID) (*Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[id]
	if !ok || a.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) ListApplications(_ context.Context, userID uuid.UUID) ([]Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Application
	for _, a := range m.applications {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateApplication(_ context.Context, a *Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.applications[a.ID]
	if !ok || existing.UserID != a.UserID {
		return ErrNotFound
	}
	cp := *a
	m.applications[a.ID] = &cp
	return nil
}

func (m *Memory) DeleteApplication(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[id]
	if !ok || a.UserID != userID {
		return ErrNotFound
	}
	for sid, s := range m.stageEvents {
		if s.ApplicationID == id {
			delete(m.stageEvents, sid)
		}
	}
	for tid, t := range m.tasks {
		if t.ApplicationID == id {
			delete(m.tasks, tid)
		}
	}
	delete(m.applications, id)
	return nil
}

func (m *Memory) AppendStageEvent(_ context.Context, e *StageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.stageEvents[e.ID] = &cp
	return nil
}

func (m *Memory) ListStageEvents(_ context.Context, applicationID uuid.UUID) ([]StageEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StageEvent
	for _, e := range m.stageEvents {
		if e.ApplicationID == applicationID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (m *Memory) ListRecentStageEvents(_ context.Context, userID uuid.UUID, limit int) ([]StageEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned := make(map[uuid.UUID]bool)
	for id, a := range m.applications {
		if a.UserID == userID {
			owned[id] = true
		}
	}
	var out []StageEvent
	for _, e := range m.stageEvents {
		if owned[e.ApplicationID] {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CreateTask(_ context.Context, t *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *Memory) GetTask(_ context.Context, id, userID uuid.UUID) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) ListTasks(_ context.Context, userID uuid.UUID) ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Task
	for _, t := range m.tasks {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateTask(_ context.Context, t *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tasks[t.ID]
	if !ok || existing.UserID != t.UserID {
		return ErrNotFound
	}
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *Memory) DeleteTask(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *Memory) CountApplicationsByStage(_ context.Context, userID uuid.UUID) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, a := range m.applications {
		if a.UserID == userID {
			counts[a.Stage]++
		}
	}
	return counts, nil
}

func (m *Memory) CountOpenTasks(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if t.UserID == userID && t.Status != "DONE" {
			n++
		}
	}
	return n, nil
}

func (m *Memory) AppendAuditEvent(_ context.Context, e *AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.auditEvents = append(m.auditEvents, &cp)
	return nil
}

func (m *Memory) ListAuditEvents(_ context.Context, userID uuid.UUID, limit int) ([]AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AuditEvent
	for i := len(m.auditEvents) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.auditEvents[i].UserID == userID {
			out = append(out, *m.auditEvents[i])
		}
	}
	return out, nil
}

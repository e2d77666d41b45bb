// Package records implements the application-tracking domain behind the
// auth layer: job applications with a staged lifecycle, follow-up tasks,
// and the dashboard summary.
package records

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/seanlumasag/job-application-tracker/internal/store"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to
	// another user; the two cases are indistinguishable to the caller.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidStage is returned for an unknown stage name.
	ErrInvalidStage = errors.New("invalid stage")
	// ErrIllegalTransition is returned for a known but unreachable stage.
	ErrIllegalTransition = errors.New("illegal stage transition")
	// ErrInvalidStatus is returned for an unknown task status.
	ErrInvalidStatus = errors.New("invalid task status")
)

const (
	TaskOpen = "OPEN"
	TaskDone = "DONE"
)

// ApplicationInput carries the caller-editable fields of an application.
type ApplicationInput struct {
	Company  string
	Role     string
	JobURL   string
	Location string
	Notes    string
}

// TaskInput carries the caller-editable fields of a task.
type TaskInput struct {
	Title   string
	DueDate *time.Time
}

// Summary is the dashboard payload: application counts per stage, the
// number of open tasks, and the most recent stage moves.
type Summary struct {
	ApplicationsByStage map[string]int
	OpenTasks           int
	RecentActivity      []store.StageEvent
}

const recentActivityLimit = 10

// Service owns the tracking records. Every operation is scoped to the
// authenticated user; cross-user access fails as not-found.
type Service struct {
	store store.RecordStore
	audit store.AuditStore
	now   func() time.Time
}

func NewService(recordStore store.RecordStore, auditStore store.AuditStore) *Service {
	return &Service{store: recordStore, audit: auditStore, now: time.Now}
}

func (s *Service) CreateApplication(ctx context.Context, userID uuid.UUID, in ApplicationInput) (*store.Application, error) {
	now := s.now()
	app := &store.Application{
		ID:          uuid.New(),
		UserID:      userID,
		Company:     in.Company,
		Role:        in.Role,
		JobURL:      in.JobURL,
		Location:    in.Location,
		Notes:       in.Notes,
		Stage:       string(StageSaved),
		LastTouchAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateApplication(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

func (s *Service) GetApplication(ctx context.Context, id, userID uuid.UUID) (*store.Application, error) {
	app, err := s.store.GetApplication(ctx, id, userID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return app, nil
}

func (s *Service) ListApplications(ctx context.Context, userID uuid.UUID) ([]store.Application, error) {
	return s.store.ListApplications(ctx, userID)
}

func (s *Service) UpdateApplication(ctx context.Context, id, userID uuid.UUID, in ApplicationInput) (*store.Application, error) {
	app, err := s.store.GetApplication(ctx, id, userID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	app.Company = in.Company
	app.Role = in.Role
	app.JobURL = in.JobURL
	app.Location = in.Location
	app.Notes = in.Notes
	app.UpdatedAt = s.now()
	if err := s.store.UpdateApplication(ctx, app); err != nil {
		return nil, mapNotFound(err)
	}
	return app, nil
}

func (s *Service) DeleteApplication(ctx context.Context, id, userID uuid.UUID) error {
	return mapNotFound(s.store.DeleteApplication(ctx, id, userID))
}

// ChangeStage moves an application along the lifecycle, appending a stage
// event and bumping the last-touch timestamp. Illegal moves are rejected
// before anything is written.
func (s *Service) ChangeStage(ctx context.Context, id, userID uuid.UUID, to Stage) (*store.Application, error) {
	if !ValidStage(to) {
		return nil, ErrInvalidStage
	}
	app, err := s.store.GetApplication(ctx, id, userID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	from := Stage(app.Stage)
	if !CanTransition(from, to) {
		return nil, ErrIllegalTransition
	}

	now := s.now()
	app.Stage = string(to)
	app.LastTouchAt = now
	app.UpdatedAt = now
	if err := s.store.UpdateApplication(ctx, app); err != nil {
		return nil, mapNotFound(err)
	}
	if err := s.store.AppendStageEvent(ctx, &store.StageEvent{
		ID:            uuid.New(),
		ApplicationID: app.ID,
		FromStage:     string(from),
		ToStage:       string(to),
		OccurredAt:    now,
	}); err != nil {
		return nil, err
	}
	return app, nil
}

func (s *Service) ListStageEvents(ctx context.Context, id, userID uuid.UUID) ([]store.StageEvent, error) {
	// Ownership check first; stage events carry no user column.
	if _, err := s.store.GetApplication(ctx, id, userID); err != nil {
		return nil, mapNotFound(err)
	}
	return s.store.ListStageEvents(ctx, id)
}

func (s *Service) CreateTask(ctx context.Context, applicationID, userID uuid.UUID, in TaskInput) (*store.Task, error) {
	if _, err := s.store.GetApplication(ctx, applicationID, userID); err != nil {
		return nil, mapNotFound(err)
	}
	task := &store.Task{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		UserID:        userID,
		Title:         in.Title,
		Status:        TaskOpen,
		DueDate:       in.DueDate,
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) ListTasks(ctx context.Context, userID uuid.UUID) ([]store.Task, error) {
	return s.store.ListTasks(ctx, userID)
}

func (s *Service) UpdateTaskStatus(ctx context.Context, id, userID uuid.UUID, status string) (*store.Task, error) {
	if status != TaskOpen && status != TaskDone {
		return nil, ErrInvalidStatus
	}
	task, err := s.store.GetTask(ctx, id, userID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	task.Status = status
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, mapNotFound(err)
	}
	return task, nil
}

func (s *Service) DeleteTask(ctx context.Context, id, userID uuid.UUID) error {
	return mapNotFound(s.store.DeleteTask(ctx, id, userID))
}

// Dashboard aggregates the per-stage application counts and open task
// count for one user.
func (s *Service) Dashboard(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	byStage, err := s.store.CountApplicationsByStage(ctx, userID)
	if err != nil {
		return nil, err
	}
	open, err := s.store.CountOpenTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.ListRecentStageEvents(ctx, userID, recentActivityLimit)
	if err != nil {
		return nil, err
	}
	return &Summary{ApplicationsByStage: byStage, OpenTasks: open, RecentActivity: recent}, nil
}

func (s *Service) ListAuditEvents(ctx context.Context, userID uuid.UUID, limit int) ([]store.AuditEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.audit.ListAuditEvents(ctx, userID, limit)
}

func mapNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

package records

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanlumasag/job-application-tracker/internal/store"
)

func newTestRecords(t *testing.T) (*Service, uuid.UUID) {
	t.Helper()
	st := store.NewMemory()
	userID := uuid.New()
	require.NoError(t, st.CreateUser(context.Background(), &store.User{
		ID:    userID,
		Email: "alice@example.com",
	}))
	return NewService(st, st), userID
}

func TestStageTransitionTable(t *testing.T) {
	legal := []struct{ from, to Stage }{
		{StageSaved, StageApplied},
		{StageSaved, StageWithdrawn},
		{StageApplied, StageInterview},
		{StageApplied, StageRejected},
		{StageInterview, StageOffer},
		{StageOffer, StageRejected},
		{StageOffer, StageWithdrawn},
	}
	for _, tc := range legal {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	illegal := []struct{ from, to Stage }{
		{StageSaved, StageInterview},
		{StageSaved, StageOffer},
		{StageApplied, StageOffer},
		{StageInterview, StageApplied},
		{StageRejected, StageApplied},
		{StageWithdrawn, StageSaved},
		{StageOffer, StageInterview},
	}
	for _, tc := range illegal {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}

	assert.True(t, ValidStage(StageOffer))
	assert.False(t, ValidStage(Stage("HIRED")))
}

func TestApplicationLifecycle(t *testing.T) {
	svc, userID := newTestRecords(t)
	ctx := context.Background()

	app, err := svc.CreateApplication(ctx, userID, ApplicationInput{
		Company: "Acme", Role: "Engineer",
	})
	require.NoError(t, err)
	assert.Equal(t, string(StageSaved), app.Stage)
	assert.False(t, app.LastTouchAt.IsZero())

	updated, err := svc.UpdateApplication(ctx, app.ID, userID, ApplicationInput{
		Company: "Acme", Role: "Senior Engineer", Notes: "referred",
	})
	require.NoError(t, err)
	assert.Equal(t, "Senior Engineer", updated.Role)

	list, err := svc.ListApplications(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, svc.DeleteApplication(ctx, app.ID, userID))
	_, err = svc.GetApplication(ctx, app.ID, userID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChangeStageRecordsHistory(t *testing.T) {
	svc, userID := newTestRecords(t)
	ctx := context.Background()

	app, err := svc.CreateApplication(ctx, userID, ApplicationInput{Company: "Acme", Role: "Engineer"})
	require.NoError(t, err)
	touched := app.LastTouchAt

	moved, err := svc.ChangeStage(ctx, app.ID, userID, StageApplied)
	require.NoError(t, err)
	assert.Equal(t, string(StageApplied), moved.Stage)
	assert.False(t, moved.LastTouchAt.Before(touched))

	_, err = svc.ChangeStage(ctx, app.ID, userID, StageInterview)
	require.NoError(t, err)
	_, err = svc.ChangeStage(ctx, app.ID, userID, StageOffer)
	require.NoError(t, err)

	events, err := svc.ListStageEvents(ctx, app.ID, userID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, string(StageSaved), events[0].FromStage)
	assert.Equal(t, string(StageApplied), events[0].ToStage)
	assert.Equal(t, string(StageOffer), events[2].ToStage)
}

func TestChangeStageRejectsBadMoves(t *testing.T) {
	svc, userID := newTestRecords(t)
	ctx := context.Background()

	app, err := svc.CreateApplication(ctx, userID, ApplicationInput{Company: "Acme", Role: "Engineer"})
	require.NoError(t, err)

	_, err = svc.ChangeStage(ctx, app.ID, userID, Stage("HIRED"))
	assert.ErrorIs(t, err, ErrInvalidStage)

	_, err = svc.ChangeStage(ctx, app.ID, userID, StageOffer)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	// A rejected move must leave the record and history untouched.
	fresh, err := svc.GetApplication(ctx, app.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, string(StageSaved), fresh.Stage)
	events, err := svc.ListStageEvents(ctx, app.ID, userID)
	require.NoError(t, err)
	assert.Empty(t, events)

	// Terminal stages accept nothing.
	_, err = svc.ChangeStage(ctx, app.ID, userID, StageWithdrawn)
	require.NoError(t, err)
	_, err = svc.ChangeStage(ctx, app.ID, userID, StageSaved)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestTaskLifecycle(t *testing.T) {
	svc, userID := newTestRecords(t)
	ctx := context.Background()

	app, err := svc.CreateApplication(ctx, userID, ApplicationInput{Company: "Acme", Role: "Engineer"})
	require.NoError(t, err)

	due := time.Now().Add(48 * time.Hour)
	task, err := svc.CreateTask(ctx, app.ID, userID, TaskInput{Title: "send thank-you note", DueDate: &due})
	require.NoError(t, err)
	assert.Equal(t, TaskOpen, task.Status)

	_, err = svc.UpdateTaskStatus(ctx, task.ID, userID, "SNOOZED")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	done, err := svc.UpdateTaskStatus(ctx, task.ID, userID, TaskDone)
	require.NoError(t, err)
	assert.Equal(t, TaskDone, done.Status)

	reopened, err := svc.UpdateTaskStatus(ctx, task.ID, userID, TaskOpen)
	require.NoError(t, err)
	assert.Equal(t, TaskOpen, reopened.Status)

	require.NoError(t, svc.DeleteTask(ctx, task.ID, userID))
	_, err = svc.UpdateTaskStatus(ctx, task.ID, userID, TaskDone)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskRequiresOwnedApplication(t *testing.T) {
	svc, userID := newTestRecords(t)
	ctx := context.Background()

	_, err := svc.CreateTask(ctx, uuid.New(), userID, TaskInput{Title: "orphan"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDashboardSummary(t *testing.T) {
	svc, userID := newTestRecords(t)
	ctx := context.Background()

	first, err := svc.CreateApplication(ctx, userID, ApplicationInput{Company: "Acme", Role: "Engineer"})
	require.NoError(t, err)
	_, err = svc.CreateApplication(ctx, userID, ApplicationInput{Company: "Globex", Role: "Engineer"})
	require.NoError(t, err)
	_, err = svc.ChangeStage(ctx, first.ID, userID, StageApplied)
	require.NoError(t, err)

	task, err := svc.CreateTask(ctx, first.ID, userID, TaskInput{Title: "a"})
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, first.ID, userID, TaskInput{Title: "b"})
	require.NoError(t, err)
	_, err = svc.UpdateTaskStatus(ctx, task.ID, userID, TaskDone)
	require.NoError(t, err)

	summary, err := svc.Dashboard(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"SAVED": 1, "APPLIED": 1}, summary.ApplicationsByStage)
	assert.Equal(t, 1, summary.OpenTasks)
	require.Len(t, summary.RecentActivity, 1)
	assert.Equal(t, string(StageApplied), summary.RecentActivity[0].ToStage)
}

func TestCrossUserAccessIsNotFound(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st, st)
	ctx := context.Background()
	owner := uuid.New()
	intruder := uuid.New()

	app, err := svc.CreateApplication(ctx, owner, ApplicationInput{Company: "Acme", Role: "Engineer"})
	require.NoError(t, err)

	_, err = svc.GetApplication(ctx, app.ID, intruder)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.ChangeStage(ctx, app.ID, intruder, StageApplied)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.ListStageEvents(ctx, app.ID, intruder)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteApplication(ctx, app.ID, intruder), ErrNotFound)
}

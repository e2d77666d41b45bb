package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/seanlumasag/job-application-tracker/internal/records"
	"github.com/seanlumasag/job-application-tracker/internal/store"
)

type RecordsHandler struct {
	service *records.Service
}

func NewRecordsHandler(service *records.Service) *RecordsHandler {
	return &RecordsHandler{service: service}
}

type applicationRequest struct {
	Company  string `json:"company" validate:"required,max=255"`
	Role     string `json:"role" validate:"required,max=255"`
	JobURL   string `json:"jobUrl" validate:"omitempty,url,max=2048"`
	Location string `json:"location" validate:"max=255"`
	Notes    string `json:"notes" validate:"max=10000"`
}

type stageRequest struct {
	Stage string `json:"stage" validate:"required"`
}

type taskRequest struct {
	Title   string     `json:"title" validate:"required,max=255"`
	DueDate *time.Time `json:"dueDate"`
}

type taskStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type applicationResponse struct {
	ID          string    `json:"id"`
	Company     string    `json:"company"`
	Role        string    `json:"role"`
	JobURL      string    `json:"jobUrl,omitempty"`
	Location    string    `json:"location,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Stage       string    `json:"stage"`
	LastTouchAt time.Time `json:"lastTouchAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type stageEventResponse struct {
	ID         string    `json:"id"`
	FromStage  string    `json:"fromStage"`
	ToStage    string    `json:"toStage"`
	OccurredAt time.Time `json:"occurredAt"`
}

type taskResponse struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"applicationId"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type auditEventResponse struct {
	ID        string    `json:"id"`
	EventType string    `json:"eventType"`
	Success   bool      `json:"success"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toApplicationResponse(a *store.Application) applicationResponse {
	return applicationResponse{
		ID:          a.ID.String(),
		Company:     a.Company,
		Role:        a.Role,
		JobURL:      a.JobURL,
		Location:    a.Location,
		Notes:       a.Notes,
		Stage:       a.Stage,
		LastTouchAt: a.LastTouchAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func toTaskResponse(t *store.Task) taskResponse {
	return taskResponse{
		ID:            t.ID.String(),
		ApplicationID: t.ApplicationID.String(),
		Title:         t.Title,
		Status:        t.Status,
		DueDate:       t.DueDate,
		CreatedAt:     t.CreatedAt,
	}
}

func pathID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}

func (h *RecordsHandler) CreateApplication(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	req := new(applicationRequest)
	if ok, err := bindAndValidate(c, req); !ok {
		return err
	}
	app, err := h.service.CreateApplication(c.Request().Context(), identity.UserID, records.ApplicationInput{
		Company:  req.Company,
		Role:     req.Role,
		JobURL:   req.JobURL,
		Location: req.Location,
		Notes:    req.Notes,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toApplicationResponse(app))
}

func (h *RecordsHandler) ListApplications(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	apps, err := h.service.ListApplications(c.Request().Context(), identity.UserID)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := make([]applicationResponse, 0, len(apps))
	for i := range apps {
		resp = append(resp, toApplicationResponse(&apps[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *RecordsHandler) GetApplication(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	id, err := pathID(c)
	if err != nil {
		return writeBadRequest(c, "invalid id")
	}
	app, err := h.service.GetApplication(c.Request().Context(), id, identity.UserID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toApplicationResponse(app))
}

func (h *RecordsHandler) UpdateApplication(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	id, err := pathID(c)
	if err != nil {
		return writeBadRequest(c, "invalid id")
	}
	req := new(applicationRequest)
	if ok, err := bindAndValidate(c, req); !ok {
		return err
	}
	app, err := h.service.UpdateApplication(c.Request().Context(), id, identity.UserID, records.ApplicationInput{
		Company:  req.Company,
		Role:     req.Role,
		JobURL:   req.JobURL,
		Location: req.Location,
		Notes:    req.Notes,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toApplicationResponse(app))
}

func (h *RecordsHandler) DeleteApplication(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	id, err := pathID(c)
	if err != nil {
		return writeBadRequest(c, "invalid id")
	}
	if err := h.service.DeleteApplication(c.Request().Context(), id, identity.UserID); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RecordsHandler) ChangeStage(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	id, err := pathID(c)
	if err != nil {
		return writeBadRequest(c, "invalid id")
	}
	req := new(stageRequest)
	if ok, err := bindAndValidate(c, req); !ok {
		return err
	}
	app, err := h.service.ChangeStage(c.Request().Context(), id, identity.UserID, records.Stage(req.Stage))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toApplicationResponse(app))
}

func (h *RecordsHandler) ListStageEvents(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	id, err := pathID(c)
	if err != nil {
		return writeBadRequest(c, "invalid id")
	}
	events, err := h.service.ListStageEvents(c.Request().Context(), id, identity.UserID)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := make([]stageEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, stageEventResponse{
			ID:         e.ID.String(),
			FromStage:  e.FromStage,
			ToStage:    e.ToStage,
			OccurredAt: e.OccurredAt,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *RecordsHandler) CreateTask(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	id, err := pathID(c)
	if err != nil {
		return writeBadRequest(c, "invalid id")
	}
	req := new(taskRequest)
	if ok, err := bindAndValidate(c, req); !ok {
		return err
	}
	task, err := h.service.CreateTask(c.Request().Context(), id, identity.UserID, records.TaskInput{
		Title:   req.Title,
		DueDate: req.DueDate,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toTaskResponse(task))
}

func (h *RecordsHandler) ListTasks(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	tasks, err := h.service.ListTasks(c.Request().Context(), identity.UserID)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		resp = append(resp, toTaskResponse(&tasks[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *RecordsHandler) UpdateTaskStatus(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	id, err := pathID(c)
	if err != nil {
		return writeBadRequest(c, "invalid id")
	}
	req := new(taskStatusRequest)
	if ok, err := bindAndValidate(c, req); !ok {
		return err
	}
	task, err := h.service.UpdateTaskStatus(c.Request().Context(), id, identity.UserID, req.Status)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toTaskResponse(task))
}

func (h *RecordsHandler) DeleteTask(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	id, err := pathID(c)
	if err != nil {
		return writeBadRequest(c, "invalid id")
	}
	if err := h.service.DeleteTask(c.Request().Context(), id, identity.UserID); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RecordsHandler) Dashboard(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	summary, err := h.service.Dashboard(c.Request().Context(), identity.UserID)
	if err != nil {
		return writeServiceError(c, err)
	}
	recent := make([]stageEventResponse, 0, len(summary.RecentActivity))
	for _, e := range summary.RecentActivity {
		recent = append(recent, stageEventResponse{
			ID:         e.ID.String(),
			FromStage:  e.FromStage,
			ToStage:    e.ToStage,
			OccurredAt: e.OccurredAt,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"applicationsByStage": summary.ApplicationsByStage,
		"openTasks":           summary.OpenTasks,
		"recentActivity":      recent,
	})
}

func (h *RecordsHandler) ListAuditEvents(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	events, err := h.service.ListAuditEvents(c.Request().Context(), identity.UserID, limit)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, auditEventResponse{
			ID:        e.ID.String(),
			EventType: e.EventType,
			Success:   e.Success,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

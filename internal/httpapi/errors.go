package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/seanlumasag/job-application-tracker/internal/auth"
	"github.com/seanlumasag/job-application-tracker/internal/records"
)

// errorBody is the uniform error envelope every failure returns.
type errorBody struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}

func writeError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, errorBody{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     code,
		Message:   message,
		Path:      c.Request().URL.Path,
	})
}

// writeServiceError maps domain errors onto HTTP statuses and stable error
// codes. Unknown errors collapse into a generic 500 so internals never
// leak into response bodies.
func writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		return writeError(c, http.StatusConflict, "email_taken", "email is already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return writeError(c, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, auth.ErrEmailNotVerified):
		return writeError(c, http.StatusForbidden, "email_not_verified", "email address is not verified")
	case errors.Is(err, auth.ErrInvalidMFACode):
		return writeError(c, http.StatusUnauthorized, "invalid_mfa_code", "invalid mfa code")
	case errors.Is(err, auth.ErrTokenExpired):
		return writeError(c, http.StatusBadRequest, "token_expired", "token has expired")
	case errors.Is(err, auth.ErrTokenAlreadyUsed):
		return writeError(c, http.StatusBadRequest, "token_already_used", "token has already been used")
	case errors.Is(err, auth.ErrInvalidToken):
		return writeError(c, http.StatusUnauthorized, "invalid_token", "token is invalid")
	case errors.Is(err, auth.ErrUserNotFound):
		return writeError(c, http.StatusNotFound, "not_found", "user not found")
	case errors.Is(err, auth.ErrRateLimited):
		return writeError(c, http.StatusTooManyRequests, "rate_limited", "too many requests")
	case errors.Is(err, records.ErrNotFound):
		return writeError(c, http.StatusNotFound, "not_found", "record not found")
	case errors.Is(err, records.ErrInvalidStage):
		return writeError(c, http.StatusBadRequest, "invalid_stage", "unknown stage")
	case errors.Is(err, records.ErrIllegalTransition):
		return writeError(c, http.StatusConflict, "illegal_transition", "stage transition is not allowed")
	case errors.Is(err, records.ErrInvalidStatus):
		return writeError(c, http.StatusBadRequest, "invalid_status", "unknown task status")
	default:
		return writeError(c, http.StatusInternalServerError, "server_error", "internal server error")
	}
}

func writeBadRequest(c echo.Context, message string) error {
	return writeError(c, http.StatusBadRequest, "bad_request", message)
}

func writeUnauthorized(c echo.Context, message string) error {
	return writeError(c, http.StatusUnauthorized, "unauthorized", message)
}

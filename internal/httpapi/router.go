// Package httpapi wires the HTTP surface: routing, request validation,
// bearer authentication, per-bucket rate limiting, and the uniform error
// envelope.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/seanlumasag/job-application-tracker/internal/audit"
	"github.com/seanlumasag/job-application-tracker/internal/auth"
	"github.com/seanlumasag/job-application-tracker/internal/ratelimit"
	"github.com/seanlumasag/job-application-tracker/internal/records"
)

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// Router builds the echo engine with all routes registered.
type Router struct {
	authService    *auth.Service
	recordsService *records.Service
	tokens         *auth.TokenManager
	limiter        ratelimit.Limiter
	dispatcher     *audit.Dispatcher
	logger         zerolog.Logger
	startedAt      time.Time
}

func NewRouter(
	authService *auth.Service,
	recordsService *records.Service,
	tokens *auth.TokenManager,
	limiter ratelimit.Limiter,
	dispatcher *audit.Dispatcher,
	logger zerolog.Logger,
) *Router {
	return &Router{
		authService:    authService,
		recordsService: recordsService,
		tokens:         tokens,
		limiter:        limiter,
		dispatcher:     dispatcher,
		logger:         logger,
		startedAt:      time.Now(),
	}
}

func (r *Router) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(r.requestLogger())
	e.Use(rateLimit(r.limiter))

	authHandler := NewAuthHandler(r.authService)
	recordsHandler := NewRecordsHandler(r.recordsService)
	authed := requireAuth(r.tokens)

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", authHandler.Signup)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.POST("/verify-email", authHandler.VerifyEmail)
	authGroup.POST("/verify-email/resend", authHandler.ResendVerification)
	authGroup.POST("/password/forgot", authHandler.ForgotPassword)
	authGroup.POST("/password/reset", authHandler.ResetPassword)
	authGroup.POST("/mfa/setup", authHandler.SetupMFA, authed)
	authGroup.POST("/mfa/enable", authHandler.EnableMFA, authed)
	authGroup.POST("/mfa/disable", authHandler.DisableMFA, authed)
	authGroup.DELETE("/account", authHandler.DeleteAccount, authed)

	apps := api.Group("/applications", authed)
	apps.POST("", recordsHandler.CreateApplication)
	apps.GET("", recordsHandler.ListApplications)
	apps.GET("/:id", recordsHandler.GetApplication)
	apps.PUT("/:id", recordsHandler.UpdateApplication)
	apps.DELETE("/:id", recordsHandler.DeleteApplication)
	apps.PATCH("/:id/stage", recordsHandler.ChangeStage)
	apps.GET("/:id/events", recordsHandler.ListStageEvents)
	apps.POST("/:id/tasks", recordsHandler.CreateTask)

	tasks := api.Group("/tasks", authed)
	tasks.GET("", recordsHandler.ListTasks)
	tasks.PATCH("/:id/status", recordsHandler.UpdateTaskStatus)
	tasks.DELETE("/:id", recordsHandler.DeleteTask)

	api.GET("/dashboard/summary", recordsHandler.Dashboard, authed)
	api.GET("/audit-events", recordsHandler.ListAuditEvents, authed)

	api.GET("/health", r.health)
	api.GET("/metrics", r.metrics)

	return e
}

func (r *Router) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) metrics(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"uptimeSeconds":      int(time.Since(r.startedAt).Seconds()),
		"auditEventsDropped": r.dispatcher.Dropped(),
	})
}

func (r *Router) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			r.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Msg("request")
			return nil
		},
	})
}

package httpapi

import (
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/seanlumasag/job-application-tracker/internal/auth"
	"github.com/seanlumasag/job-application-tracker/internal/ratelimit"
)

const identityKey = "identity"

// requireAuth verifies the bearer token and stores the resolved identity
// on the request context.
func requireAuth(tokens *auth.TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authz := c.Request().Header.Get(echo.HeaderAuthorization)
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return writeUnauthorized(c, "missing bearer token")
			}
			identity, err := tokens.Verify(parts[1])
			if err != nil {
				return writeUnauthorized(c, "invalid or expired token")
			}
			c.Set(identityKey, identity)
			return next(c)
		}
	}
}

func identityFrom(c echo.Context) (auth.Identity, bool) {
	identity, ok := c.Get(identityKey).(auth.Identity)
	return identity, ok
}

// Bucket names shared with the limiter configuration.
const (
	bucketAuth      = "auth"
	bucketSensitive = "sensitive"
)

// bucketFor maps a request path onto its rate bucket; most routes are
// unlimited.
func bucketFor(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/auth/"):
		return bucketAuth
	case strings.HasPrefix(path, "/api/tasks/") && strings.HasSuffix(path, "/status"):
		return bucketSensitive
	case strings.HasPrefix(path, "/api/applications/") && strings.HasSuffix(path, "/stage"):
		return bucketSensitive
	case path == "/api/audit-events":
		return bucketSensitive
	default:
		return ""
	}
}

// rateLimit rejects requests over the bucket budget with 429. The client
// key is the first X-Forwarded-For hop when present, otherwise the remote
// address.
func rateLimit(limiter ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bucket := bucketFor(c.Request().URL.Path)
			if bucket == "" {
				return next(c)
			}

			allowed, err := limiter.Allow(c.Request().Context(), clientKey(c.Request()), bucket)
			if err != nil {
				// A broken limiter backend must not take auth down with it.
				return next(c)
			}
			if !allowed {
				return writeServiceError(c, auth.ErrRateLimited)
			}
			return next(c)
		}
	}
}

func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

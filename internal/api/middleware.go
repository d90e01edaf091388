package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"smartzone/internal/identity"
)

// authMiddleware resolves the bearer token and stores the user id in the
// request context, where the services expect it.
func authMiddleware(ids *identity.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			uid, err := ids.ParseToken(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			req := c.Request()
			c.SetRequest(req.WithContext(identity.WithUser(req.Context(), uid)))
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	// SSE clients (EventSource) cannot set headers; allow ?token= for the
	// watch endpoint.
	return strings.TrimSpace(c.QueryParam("token"))
}

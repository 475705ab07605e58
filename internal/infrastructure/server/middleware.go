package server

import (
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	httpHandlers "github.com/taskmaster/tracker/internal/adapters/http"
	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

// authMiddleware resolves the bearer ID token to the signed-in user
func (s *Server) authMiddleware(auth ports.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := httpHandlers.BearerToken(c)
			if token == "" {
				return entities.NewAuthError("Authenticate", "MISSING_TOKEN", nil)
			}

			user, err := auth.Authenticate(c.Request().Context(), token)
			if err != nil {
				s.logger.LogSecurityEvent("invalid_token", "", c.RealIP(), map[string]interface{}{
					"error": err.Error(),
					"path":  c.Request().URL.Path,
				})
				return err
			}

			s.logger.WithUserID(user.ID).Debugw("Request authenticated", "path", c.Request().URL.Path)
			httpHandlers.SetCurrentUser(c, user)
			return next(c)
		}
	}
}

// credentialParams carry secrets in the query string: the stream fallback for
// the ID token and the OAuth authorization code
var credentialParams = []string{"token", "code"}

// redactedURI is the request URI safe for logs
func redactedURI(u *url.URL) string {
	if u.RawQuery == "" {
		return u.Path
	}
	query := u.Query()
	for _, name := range credentialParams {
		if query.Has(name) {
			query.Set(name, "REDACTED")
		}
	}
	return u.Path + "?" + query.Encode()
}

// isStreamRoute matches the server-sent event endpoints
func isStreamRoute(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasSuffix(path, "/stream") || strings.HasSuffix(path, "/auth/state")
}

// swaggerSkipper leaves the docs UI without the strict content security policy
func swaggerSkipper(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/docs/")
}

package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/inboxd/inboxd/internal/domain"
	"github.com/inboxd/inboxd/internal/identity"
)

// ProfileContextKey is where the auth middleware stores the caller's profile.
const ProfileContextKey = "profile"

// Auth creates a middleware that resolves the caller's bearer token through
// the identity directory. Tokens arrive pre-validated; this is a pure lookup,
// not an authentication provider.
func Auth(directory identity.Directory) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			profile, err := directory.Resolve(c.Request().Context(), token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "unknown credential")
			}

			c.Set(ProfileContextKey, profile)
			return next(c)
		}
	}
}

// currentProfile returns the authenticated caller set by Auth.
func currentProfile(c echo.Context) (*domain.Profile, bool) {
	profile, ok := c.Get(ProfileContextKey).(*domain.Profile)
	return profile, ok && profile != nil
}

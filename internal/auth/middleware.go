package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// accessorContextKey is where the middleware stores the verified accessor.
const accessorContextKey = "auth.accessor"

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// Middleware verifies the bearer token on every request and injects the
// accessor into the echo context. Mounted by services that expose internal
// routes; the broadcast server authenticates in-band instead.
func Middleware(verifier *Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "missing bearer token")
			}

			token, ok := BearerToken(header)
			if !ok {
				return echo.NewHTTPError(http.StatusBadRequest, "malformed bearer token")
			}

			accessor, err := verifier.Verify(token)
			if err != nil {
				if errors.Is(err, ErrExpired) {
					return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(accessorContextKey, accessor)
			return next(c)
		}
	}
}

// FromContext returns the accessor stored by Middleware, if any.
func FromContext(c echo.Context) (Accessor, bool) {
	accessor, ok := c.Get(accessorContextKey).(Accessor)
	return accessor, ok
}

package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const permissionDeniedMessage = "You do not have permission to perform this action."

// RequireRole returns middleware that admits only callers holding one of roles.
// It must run after Middleware.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided.")
			}
			if !HasRole(p, roles...) {
				return echo.NewHTTPError(http.StatusForbidden, permissionDeniedMessage)
			}
			return next(c)
		}
	}
}

func HasRole(p Principal, roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

package authmw

import (
	"context"
	"errors"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/affiliate_catalog/internal/logging"
	"github.com/Skotchmaster/affiliate_catalog/internal/service"
)

// ContextKey is where the verified *service.Identity is stored on the echo context.
const ContextKey = "admin"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.Identity, error)
}

// RequireAdmin rejects requests without a valid "Authorization: Bearer <token>" header.
func RequireAdmin(auth Authenticator) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  ContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return auth.Authenticate(c.Request().Context(), token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			l := logging.FromContext(c.Request().Context()).With("middleware", "auth.require_admin")
			if errors.Is(err, service.ErrInvalidToken) {
				l.Warn("auth_failed", "status", 401, "reason", "invalid token", "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}
			l.Warn("auth_failed", "status", 401, "reason", "missing token")
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
		},
	})
}

func IdentityFrom(c echo.Context) (*service.Identity, bool) {
	id, ok := c.Get(ContextKey).(*service.Identity)
	return id, ok
}

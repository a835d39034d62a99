package middleware

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"orgapi/internal/auth"
	apperrors "orgapi/internal/errors"
	"orgapi/internal/model"
	"orgapi/internal/service"
)

const (
	claimsContextKey = "claims"
	userContextKey   = "currentUser"
)

// AuthConfig holds the collaborators of the access middleware.
type AuthConfig struct {
	JWT    *auth.JWTService
	Tokens auth.TokenStoreInterface
	Users  service.UserService
}

// Authenticate verifies the bearer token, resolves the user it names and
// stores both on the context. Every failure yields the same 401.
func Authenticate(cfg AuthConfig) echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		ContextKey:  claimsContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return cfg.JWT.ValidateToken(token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			slog.DebugContext(c.Request().Context(), "bearer token rejected", "error", err)
			return unauthorized()
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(func(c echo.Context) error {
			ctx := c.Request().Context()
			claims, ok := c.Get(claimsContextKey).(*auth.Claims)
			if !ok {
				return unauthorized()
			}

			revoked, err := cfg.Tokens.IsAccessTokenRevoked(ctx, claims.ID)
			if err != nil || revoked {
				slog.DebugContext(ctx, "revoked token presented", "jti", claims.ID)
				return unauthorized()
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				return unauthorized()
			}
			user, err := cfg.Users.GetUser(ctx, userID)
			if err != nil {
				slog.DebugContext(ctx, "token user unresolvable", "user_id", claims.UserID, "error", err)
				return unauthorized()
			}

			c.Set(userContextKey, user)
			return next(c)
		})
	}
}

// CurrentUser returns the user resolved by Authenticate.
func CurrentUser(c echo.Context) (*model.User, bool) {
	user, ok := c.Get(userContextKey).(*model.User)
	return user, ok && user != nil
}

// CurrentClaims returns the verified token claims.
func CurrentClaims(c echo.Context) (*auth.Claims, bool) {
	claims, ok := c.Get(claimsContextKey).(*auth.Claims)
	return claims, ok && claims != nil
}

func unauthorized() error {
	httpErr := apperrors.MapErrorToHTTP(apperrors.ErrUnauthorized)
	return echo.NewHTTPError(http.StatusUnauthorized, httpErr.Body())
}

// Package middleware provides the request-processing chain shared by
// the ticket routes: bearer-token authentication, admin capability
// resolution, the ban guard and last-seen upkeep.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/BladedNarwhal/Nar-Bot/internal/model"
)

// identityKey is the context key under which the resolved caller is
// stored for handlers.
const identityKey = "identity"

// AdminResolver answers whether a user currently holds the admin
// capability.  Implemented by service.RoleChecker.
type AdminResolver interface {
	IsAdmin(ctx context.Context, userID string) bool
}

// Authenticate validates the Bearer access token, resolves the admin
// capability and stores the caller's Identity in the request context.
// Tokens carry the user ID in "sub" plus "username" and "avatar"
// display claims.
func Authenticate(secret string, roles AdminResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			id, err := ParseToken(raw, secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			id.Admin = roles.IsAdmin(c.Request().Context(), id.ID)

			c.Set(identityKey, id)
			return next(c)
		}
	}
}

// ParseToken validates an HS256 token and extracts the identity
// claims.  Admin is left false; the caller resolves it separately.
func ParseToken(raw, secret string) (model.Identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return model.Identity{}, echo.ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return model.Identity{}, echo.ErrUnauthorized
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return model.Identity{}, echo.ErrUnauthorized
	}
	username, _ := claims["username"].(string)
	avatar, _ := claims["avatar"].(string)
	return model.Identity{ID: sub, Username: username, Avatar: avatar}, nil
}

// IdentityFrom returns the caller stored by Authenticate.  Handlers
// behind the auth chain can rely on it being present.
func IdentityFrom(c echo.Context) model.Identity {
	id, _ := c.Get(identityKey).(model.Identity)
	return id
}

// RequireAdmin aborts with 403 unless the resolved caller holds the
// admin capability.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !IdentityFrom(c).Admin {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "admin access required"})
			}
			return next(c)
		}
	}
}

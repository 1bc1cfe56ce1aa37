package middleware

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/BladedNarwhal/Nar-Bot/internal/model"
)

// BanChecker reports whether a user is banned.  Implemented by
// repository.BanRepo.
type BanChecker interface {
	IsBanned(ctx context.Context, userID string) (bool, error)
}

// UserToucher upserts a user's profile row with a fresh last-seen
// timestamp.  Implemented by repository.UserRepo.
type UserToucher interface {
	Touch(ctx context.Context, id model.Identity, at time.Time) error
}

// BanGuard rejects banned users before any handler runs.  A failed
// ban lookup fails open: losing the database must not lock everyone
// out, and the ban is re-checked on the next request.
func BanGuard(bans BanChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := IdentityFrom(c)
			banned, err := bans.IsBanned(c.Request().Context(), id.ID)
			if err != nil {
				log.Printf("middleware: ban lookup failed for %s: %v", id.ID, err)
			} else if banned {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "you are banned"})
			}
			return next(c)
		}
	}
}

// TouchUser refreshes the caller's profile row on every authenticated
// request.  Upkeep is best-effort and never fails the request.
func TouchUser(users UserToucher) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := IdentityFrom(c)
			if err := users.Touch(c.Request().Context(), id, time.Now().UTC()); err != nil {
				log.Printf("middleware: failed to touch user %s: %v", id.ID, err)
			}
			return next(c)
		}
	}
}

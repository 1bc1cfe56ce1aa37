// Package handler contains the HTTP surface of the coordinator.  All
// handlers assume the middleware chain has authenticated the caller
// and stored a model.Identity in the request context.
package handler

import (
	"log"
	"math"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/BladedNarwhal/Nar-Bot/internal/apperr"
)

// respondError translates a coded error into its HTTP shape.  Internal
// causes are logged server-side and never leaked to the client.
func respondError(c echo.Context, err error) error {
	e := apperr.From(err)
	switch e.Code {
	case apperr.CodeValidation, apperr.CodeInvalidState:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": e.Message})
	case apperr.CodePermission:
		return c.JSON(http.StatusForbidden, echo.Map{"error": e.Message})
	case apperr.CodeNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": e.Message})
	case apperr.CodeRateLimited:
		retry := int(math.Ceil(e.RetryAfter.Seconds()))
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error":       e.Message,
			"retry_after": retry,
		})
	default:
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
	}
}

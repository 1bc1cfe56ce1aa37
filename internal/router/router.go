// Package router maps the HTTP surface onto handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/BladedNarwhal/Nar-Bot/internal/handler"
	"github.com/BladedNarwhal/Nar-Bot/internal/middleware"
)

// Deps bundles everything route registration needs.
type Deps struct {
	Tickets   *handler.TicketHandler
	Users     *handler.UserHandler
	WS        *handler.WSHandler
	JWTSecret string
	Roles     middleware.AdminResolver
	Bans      middleware.BanChecker
	Touch     middleware.UserToucher
}

// Register wires all routes.  /healthz and /ws sit outside the
// authenticated group; the websocket carries its token as a query
// parameter and validates it itself.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	e.GET("/ws", d.WS.Connect)

	api := e.Group("/api")
	api.Use(middleware.Authenticate(d.JWTSecret, d.Roles))
	api.Use(middleware.BanGuard(d.Bans))
	api.Use(middleware.TouchUser(d.Touch))

	api.GET("/tickets", d.Tickets.List)
	api.POST("/tickets", d.Tickets.Create)
	api.GET("/tickets/:id", d.Tickets.Get)
	api.POST("/tickets/:id/messages", d.Tickets.PostMessage)
	api.POST("/tickets/:ticketId/messages/:messageId/reactions", d.Tickets.ToggleReaction)
	api.PUT("/tickets/:id/status", d.Tickets.UpdateStatus)
	api.POST("/tickets/:id/rate", d.Tickets.Rate)
	api.GET("/tickets/:id/viewers", d.Tickets.Viewers)
	api.DELETE("/ticket-viewers/:ticketId/:userId", d.Tickets.ClearViewer)

	api.GET("/banned", d.Users.Banned)
	api.GET("/ratings", d.Users.RatingList)
	api.GET("/statistics", d.Users.Statistics)

	admin := api.Group("", middleware.RequireAdmin())
	admin.DELETE("/tickets/:id", d.Tickets.Delete)
	admin.POST("/tickets/:id/accept", d.Tickets.Accept)
	admin.DELETE("/ticket-viewers/:ticketId", d.Tickets.ClearViewers)
	admin.POST("/users/:id/ban", d.Users.Ban)
	admin.POST("/users/:id/unban", d.Users.Unban)
}

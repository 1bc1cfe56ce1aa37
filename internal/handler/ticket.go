package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/BladedNarwhal/Nar-Bot/internal/apperr"
	"github.com/BladedNarwhal/Nar-Bot/internal/middleware"
	"github.com/BladedNarwhal/Nar-Bot/internal/model"
	"github.com/BladedNarwhal/Nar-Bot/internal/service"
)

// TicketHandler exposes the ticket state machine over HTTP.  Request
// validation beyond JSON shape lives in the service; handlers bind,
// delegate and translate errors.
type TicketHandler struct {
	Tickets *service.TicketService
}

// NewTicketHandler constructs the handler.  The service must be
// non-nil.
func NewTicketHandler(tickets *service.TicketService) *TicketHandler {
	if tickets == nil {
		panic("nil service passed to NewTicketHandler")
	}
	return &TicketHandler{Tickets: tickets}
}

// List handles GET /api/tickets.  Admins see everything; everyone
// else sees their own tickets plus public ones.
func (h *TicketHandler) List(c echo.Context) error {
	tickets, err := h.Tickets.ListTickets(c.Request().Context(), middleware.IdentityFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tickets)
}

// Create handles POST /api/tickets.
func (h *TicketHandler) Create(c echo.Context) error {
	var in service.CreateTicketInput
	if err := c.Bind(&in); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}
	ticket, err := h.Tickets.CreateTicket(c.Request().Context(), middleware.IdentityFrom(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, ticket)
}

// Get handles GET /api/tickets/:id.  The response bundles the ticket
// document with its viewer list.
func (h *TicketHandler) Get(c echo.Context) error {
	ticket, viewers, err := h.Tickets.GetTicket(c.Request().Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ticket":  ticket,
		"viewers": viewers,
	})
}

// Delete handles DELETE /api/tickets/:id (admin only).
func (h *TicketHandler) Delete(c echo.Context) error {
	if err := h.Tickets.DeleteTicket(c.Request().Context(), middleware.IdentityFrom(c), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": c.Param("id")})
}

// PostMessage handles POST /api/tickets/:id/messages.
func (h *TicketHandler) PostMessage(c echo.Context) error {
	var in service.PostMessageInput
	if err := c.Bind(&in); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}
	msg, err := h.Tickets.PostMessage(c.Request().Context(), middleware.IdentityFrom(c), c.Param("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// ToggleReaction handles POST
// /api/tickets/:ticketId/messages/:messageId/reactions.
func (h *TicketHandler) ToggleReaction(c echo.Context) error {
	var body struct {
		Emoji string `json:"emoji"`
	}
	if err := c.Bind(&body); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}
	reactions, err := h.Tickets.ToggleReaction(c.Request().Context(),
		middleware.IdentityFrom(c), c.Param("ticketId"), c.Param("messageId"), body.Emoji)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reactions": reactions})
}

// UpdateStatus handles PUT /api/tickets/:id/status.  The body may
// carry a status, a type, or both; "frozen" as status toggles the
// freeze flag without replacing the stored lifecycle status.
func (h *TicketHandler) UpdateStatus(c echo.Context) error {
	var body struct {
		Status model.Status     `json:"status"`
		Type   model.TicketType `json:"type"`
	}
	if err := c.Bind(&body); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}
	change, err := h.Tickets.ChangeStatus(c.Request().Context(),
		middleware.IdentityFrom(c), c.Param("id"), body.Status, body.Type)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, change)
}

// Accept handles POST /api/tickets/:id/accept (admin only).
func (h *TicketHandler) Accept(c echo.Context) error {
	ticket, err := h.Tickets.AcceptTicket(c.Request().Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ticket)
}

// Rate handles POST /api/tickets/:id/rate.
func (h *TicketHandler) Rate(c echo.Context) error {
	var body struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := c.Bind(&body); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}
	if err := h.Tickets.RateTicket(c.Request().Context(),
		middleware.IdentityFrom(c), c.Param("id"), body.Rating, body.Comment); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rated": c.Param("id")})
}

// Viewers handles GET /api/tickets/:id/viewers.
func (h *TicketHandler) Viewers(c echo.Context) error {
	viewers, err := h.Tickets.ListViewers(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, viewers)
}

// ClearViewers handles DELETE /api/ticket-viewers/:ticketId (admin
// only).
func (h *TicketHandler) ClearViewers(c echo.Context) error {
	if err := h.Tickets.ClearViewers(c.Request().Context(), c.Param("ticketId")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"cleared": c.Param("ticketId")})
}

// ClearViewer handles DELETE /api/ticket-viewers/:ticketId/:userId.
// Users may remove themselves; removing someone else requires the
// admin capability.
func (h *TicketHandler) ClearViewer(c echo.Context) error {
	actor := middleware.IdentityFrom(c)
	userID := c.Param("userId")
	if userID != actor.ID && !actor.Admin {
		return respondError(c, apperr.Permission("permission denied"))
	}
	if err := h.Tickets.ClearViewer(c.Request().Context(), c.Param("ticketId"), userID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"cleared": userID})
}

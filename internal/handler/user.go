package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/BladedNarwhal/Nar-Bot/internal/apperr"
	"github.com/BladedNarwhal/Nar-Bot/internal/config"
	"github.com/BladedNarwhal/Nar-Bot/internal/middleware"
	"github.com/BladedNarwhal/Nar-Bot/internal/model"
	"github.com/BladedNarwhal/Nar-Bot/internal/queue"
	"github.com/BladedNarwhal/Nar-Bot/internal/repository"
	"github.com/BladedNarwhal/Nar-Bot/internal/service"
)

// UserHandler covers moderation and community endpoints: ban/unban,
// the banned and ratings listings, and statistics.
type UserHandler struct {
	Users   *repository.UserRepo
	Bans    *repository.BanRepo
	Points  *repository.PointsRepo
	Ratings *repository.RatingRepo
	Tickets repository.TicketStore
	Events  service.EventPublisher
	RT      service.Broadcaster
	Limits  config.Limits
}

// NewUserHandler constructs the handler.
func NewUserHandler(
	users *repository.UserRepo,
	bans *repository.BanRepo,
	points *repository.PointsRepo,
	ratings *repository.RatingRepo,
	tickets repository.TicketStore,
	events service.EventPublisher,
	rt service.Broadcaster,
	limits config.Limits,
) *UserHandler {
	if users == nil || bans == nil || points == nil || ratings == nil || tickets == nil {
		panic("nil repository passed to NewUserHandler")
	}
	return &UserHandler{
		Users:   users,
		Bans:    bans,
		Points:  points,
		Ratings: ratings,
		Tickets: tickets,
		Events:  events,
		RT:      rt,
		Limits:  limits,
	}
}

// Ban handles POST /api/users/:id/ban (admin only).  The record
// snapshots the target's profile so the ban list stays readable even
// if the user row is later lost.
func (h *UserHandler) Ban(c echo.Context) error {
	admin := middleware.IdentityFrom(c)
	targetID := c.Param("id")
	if targetID == admin.ID {
		return respondError(c, apperr.Validation("cannot ban yourself"))
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}
	if body.Reason == "" {
		body.Reason = "No reason provided"
	}

	ctx := c.Request().Context()
	record := &model.BanRecord{
		UserID:    targetID,
		AdminID:   admin.ID,
		AdminName: admin.Username,
		Reason:    body.Reason,
		Timestamp: time.Now().UTC(),
	}
	if target, err := h.Users.Get(ctx, targetID); err == nil {
		record.Username = target.Username
		record.Avatar = target.Avatar
	}
	if err := h.Bans.Ban(ctx, record); err != nil {
		if errors.Is(err, repository.ErrAlreadyBanned) {
			return respondError(c, apperr.InvalidState("user is already banned"))
		}
		return respondError(c, apperr.Internal("failed to ban user", err))
	}

	adminRef := admin.Ref()
	h.publish(queue.Event{
		Kind:   queue.KindUserBanned,
		At:     record.Timestamp,
		UserID: targetID,
		Actor:  &adminRef,
		Reason: body.Reason,
	})
	h.RT.BroadcastGlobal("user_banned", map[string]any{
		"userId": targetID,
		"reason": body.Reason,
	})
	return c.JSON(http.StatusOK, echo.Map{"banned": targetID})
}

// Unban handles POST /api/users/:id/unban (admin only).
func (h *UserHandler) Unban(c echo.Context) error {
	targetID := c.Param("id")
	if err := h.Bans.Unban(c.Request().Context(), targetID); err != nil {
		if errors.Is(err, repository.ErrNotBanned) {
			return respondError(c, apperr.NotFound("user is not banned"))
		}
		return respondError(c, apperr.Internal("failed to unban user", err))
	}
	h.RT.BroadcastGlobal("user_unbanned", map[string]any{"userId": targetID})
	return c.JSON(http.StatusOK, echo.Map{"unbanned": targetID})
}

// Banned handles GET /api/banned.
func (h *UserHandler) Banned(c echo.Context) error {
	records, err := h.Bans.List(c.Request().Context())
	if err != nil {
		return respondError(c, apperr.Internal("failed to list bans", err))
	}
	return c.JSON(http.StatusOK, records)
}

// RatingList handles GET /api/ratings.
func (h *UserHandler) RatingList(c echo.Context) error {
	entries, err := h.Ratings.List(c.Request().Context())
	if err != nil {
		return respondError(c, apperr.Internal("failed to list ratings", err))
	}
	return c.JSON(http.StatusOK, entries)
}

// Statistics handles GET /api/statistics: ticket totals by status,
// community totals with an active window, and the admin leaderboard.
func (h *UserHandler) Statistics(c echo.Context) error {
	ctx := c.Request().Context()

	tickets, err := h.Tickets.List(ctx)
	if err != nil {
		return respondError(c, apperr.Internal("failed to list tickets", err))
	}
	byStatus := map[model.Status]int{}
	frozen := 0
	for _, t := range tickets {
		byStatus[t.Status]++
		if t.Frozen {
			frozen++
		}
	}

	since := time.Now().UTC().Add(-h.Limits.ActiveUserThreshold)
	totalUsers, err := h.Users.CountAll(ctx)
	if err != nil {
		return respondError(c, apperr.Internal("failed to count users", err))
	}
	activeUsers, err := h.Users.CountActive(ctx, since)
	if err != nil {
		return respondError(c, apperr.Internal("failed to count users", err))
	}
	totalAdmins, err := h.Users.CountAdmins(ctx)
	if err != nil {
		return respondError(c, apperr.Internal("failed to count admins", err))
	}
	activeAdmins, err := h.Users.CountActiveAdmins(ctx, since)
	if err != nil {
		return respondError(c, apperr.Internal("failed to count admins", err))
	}
	top, err := h.Points.Top(ctx, 10)
	if err != nil {
		return respondError(c, apperr.Internal("failed to rank admins", err))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"tickets": echo.Map{
			"total":  len(tickets),
			"open":   byStatus[model.StatusOpen],
			"closed": byStatus[model.StatusClosed],
			"onHold": byStatus[model.StatusOnHold],
			"frozen": frozen,
		},
		"users": echo.Map{
			"total":  totalUsers,
			"active": activeUsers,
		},
		"admins": echo.Map{
			"total":  totalAdmins,
			"active": activeAdmins,
			"top":    top,
		},
	})
}

// publish forwards an event without blocking the request.
func (h *UserHandler) publish(ev queue.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.Events.Publish(ctx, ev)
	}()
}

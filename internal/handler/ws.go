package handler

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/BladedNarwhal/Nar-Bot/internal/middleware"
	"github.com/BladedNarwhal/Nar-Bot/internal/realtime"
)

// upgrader accepts any origin: browser clients connect from the
// community frontend, token auth is what gates the socket.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSHandler upgrades GET /ws connections and hands them to the hub.
// Browsers cannot set headers on websocket dials, so the access token
// arrives as a query parameter instead of a Bearer header.
type WSHandler struct {
	Hub    *realtime.Hub
	Secret string
}

// NewWSHandler constructs the handler.
func NewWSHandler(hub *realtime.Hub, secret string) *WSHandler {
	if hub == nil {
		panic("nil hub passed to NewWSHandler")
	}
	return &WSHandler{Hub: hub, Secret: secret}
}

// Connect validates the token, upgrades the connection and serves it
// until either side closes.
func (h *WSHandler) Connect(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing token"})
	}
	id, err := middleware.ParseToken(token, h.Secret)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("ws: upgrade failed for %s: %v", id.ID, err)
		return nil
	}
	client := realtime.NewClient(h.Hub, conn, id.ID)
	client.Serve(c.Request().Context())
	return nil
}

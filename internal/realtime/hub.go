// Package realtime pushes state deltas to connected clients over
// WebSocket.  Each ticket has a room; high-frequency events (messages,
// reactions, status flips, read receipts) are delivered only to that
// room's subscribers, while list-level events (new ticket, acceptance,
// deletion, ratings, bans) go to every connected client.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
)

// Frame is the wire format for both directions: a type tag and a
// JSON payload.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ReadReceiptHandler is invoked when a client reports having read a
// message.  The hub does not persist anything itself; the ticket
// service owns the mutation and the resulting room broadcast.
type ReadReceiptHandler interface {
	MarkMessageRead(ctx context.Context, ticketID, messageID, readerID string) error
}

// Hub tracks connected clients and their room subscriptions.  All
// broadcasting goes through the per-client send channel; a slow client
// drops frames rather than blocking the hub.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	readHandler   ReadReceiptHandler
	readHandlerMu sync.RWMutex
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

// SetReadReceiptHandler wires the service that persists read receipts.
func (h *Hub) SetReadReceiptHandler(handler ReadReceiptHandler) {
	h.readHandlerMu.Lock()
	defer h.readHandlerMu.Unlock()
	h.readHandler = handler
}

// Register adds a connected client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	log.Printf("realtime: client connected user=%s", c.UserID)
}

// Unregister removes a client and all of its room subscriptions.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(c.send)
	log.Printf("realtime: client disconnected user=%s", c.UserID)
}

// Join subscribes a client to a ticket's room.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

// Leave unsubscribes a client from a room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// BroadcastGlobal delivers an event to every connected client.
func (h *Hub) BroadcastGlobal(event string, data any) {
	payload, err := json.Marshal(Frame{Type: event, Data: data})
	if err != nil {
		log.Printf("realtime: marshal %s event failed: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.enqueue(payload)
	}
}

// BroadcastRoom delivers an event only to subscribers of one room.
func (h *Hub) BroadcastRoom(room, event string, data any) {
	payload, err := json.Marshal(Frame{Type: event, Data: data})
	if err != nil {
		log.Printf("realtime: marshal %s event failed: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		c.enqueue(payload)
	}
}

// RoomSize returns the number of subscribers of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// handleFrame routes one inbound client frame.
func (h *Hub) handleFrame(ctx context.Context, c *Client, raw []byte) {
	var in struct {
		Action    string `json:"action"`
		TicketID  string `json:"ticket_id"`
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		log.Printf("realtime: bad frame from user=%s: %v", c.UserID, err)
		return
	}
	switch in.Action {
	case "join_ticket":
		if in.TicketID != "" {
			h.Join(c, in.TicketID)
		}
	case "leave_ticket":
		if in.TicketID != "" {
			h.Leave(c, in.TicketID)
		}
	case "message_read":
		h.readHandlerMu.RLock()
		handler := h.readHandler
		h.readHandlerMu.RUnlock()
		if handler == nil || in.TicketID == "" || in.MessageID == "" {
			return
		}
		if err := handler.MarkMessageRead(ctx, in.TicketID, in.MessageID, c.UserID); err != nil {
			log.Printf("realtime: mark message read failed: %v", err)
		}
	}
}

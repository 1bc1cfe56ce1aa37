// Package queue defines the domain events exchanged over the message
// broker and the components on both ends: the publisher used by the
// state machine and the dispatcher that consumes events and fans out
// push notifications.
package queue

import (
	"time"

	"github.com/BladedNarwhal/Nar-Bot/internal/model"
)

// Kind discriminates the event payload.  The first five kinds are
// emitted by the ticket state machine; the purchase and subscription
// kinds arrive from the store collaborator on the same bus and are
// only consumed here.
type Kind string

const (
	KindTicketCreated        Kind = "ticket_created"
	KindMessagePosted        Kind = "message_posted"
	KindStatusChanged        Kind = "status_changed"
	KindTicketAccepted       Kind = "ticket_accepted"
	KindUserBanned           Kind = "user_banned"
	KindPurchaseCompleted    Kind = "purchase_completed"
	KindSubscriptionExpiring Kind = "subscription_expiring"
	KindSubscriptionExpired  Kind = "subscription_expired"
)

// TicketInfo is the slice of a ticket an event carries: enough for a
// recipient-facing notification without querying the document store.
type TicketInfo struct {
	ID    string           `json:"id"`
	Title string           `json:"title"`
	Type  model.TicketType `json:"type"`
	Owner model.UserRef    `json:"owner"`
}

// MessageInfo carries the notified message.  Content is the full text;
// the dispatcher truncates for display.
type MessageInfo struct {
	ID         string        `json:"id"`
	Author     model.UserRef `json:"author"`
	IsAdmin    bool          `json:"isAdmin"`
	Content    string        `json:"content"`
	Attachment string        `json:"attachment,omitempty"`
}

// Event is the single envelope published to the notifications queue.
// Fields beyond Kind and At are set per kind:
//
//	ticket_created        Ticket
//	message_posted        Ticket, Message
//	status_changed        Ticket, Actor, Status
//	ticket_accepted       Ticket, Actor
//	user_banned           UserID, Actor, Reason
//	purchase_completed    UserID, Product
//	subscription_expiring UserID, Product, DaysLeft
//	subscription_expired  UserID, Product
type Event struct {
	Kind Kind      `json:"kind"`
	At   time.Time `json:"at"`

	Ticket  *TicketInfo    `json:"ticket,omitempty"`
	Message *MessageInfo   `json:"message,omitempty"`
	Actor   *model.UserRef `json:"actor,omitempty"`
	Status  model.Status   `json:"status,omitempty"`

	UserID   string `json:"user_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Product  string `json:"product,omitempty"`
	DaysLeft int    `json:"days_left,omitempty"`
}

// TicketInfoOf snapshots the event-relevant fields of a ticket.
func TicketInfoOf(t *model.Ticket) *TicketInfo {
	return &TicketInfo{ID: t.ID, Title: t.Title, Type: t.Type, Owner: t.Owner}
}

// MessageInfoOf snapshots a message for a message_posted event.
func MessageInfoOf(m *model.Message) *MessageInfo {
	info := &MessageInfo{
		ID:      m.ID,
		Author:  m.Author,
		IsAdmin: m.IsAdmin,
		Content: m.Content,
	}
	if len(m.Attachments) > 0 {
		info.Attachment = m.Attachments[0]
	}
	return info
}

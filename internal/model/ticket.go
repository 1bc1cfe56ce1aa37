package model

import "time"

// Status enumerates the lifecycle states a ticket can be in.  The
// frozen flag is deliberately not a status: it is an orthogonal
// switch that blocks new messages without losing the underlying
// state (see Ticket.Frozen).
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
	StatusOnHold Status = "on-hold"

	// StatusFrozen is accepted in status-change requests only.  It is
	// never stored as a ticket's status: requesting it sets the frozen
	// flag and leaves the lifecycle state untouched.
	StatusFrozen Status = "frozen"
)

// ValidStatus reports whether s is one of the known lifecycle states.
// Unknown values are rejected at the boundary rather than stored.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOpen, StatusClosed, StatusOnHold:
		return true
	}
	return false
}

// TicketType controls visibility.  Public tickets can be read and
// answered by any authenticated user; private tickets only by the
// owner and admins.
type TicketType string

const (
	TypePublic  TicketType = "public"
	TypePrivate TicketType = "private"
)

// ValidType reports whether t is a known ticket type.
func ValidType(t TicketType) bool {
	return t == TypePublic || t == TypePrivate
}

// UserRef is the display snapshot of a user embedded in tickets and
// messages.  It is captured at write time and never refreshed, so a
// later username or avatar change does not rewrite history.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Rating is the owner's verdict on a closed ticket.  Stored on the
// ticket document itself; an independent ledger row is appended by
// the rating repository for aggregate reporting.
type Rating struct {
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Timestamp time.Time `json:"timestamp"`
}

// Acceptance records which admin took responsibility for a ticket and
// when.  Re-accepting overwrites the previous record.
type Acceptance struct {
	By UserRef   `json:"by"`
	At time.Time `json:"at"`
}

// Message is a single entry in a ticket's append-only thread.
//
// IsAdmin is captured at send time and stays fixed even if the
// author's role changes later.  Reactions map an emoji to the ordered
// list of user IDs that reacted with it; empty lists are pruned.
// ReadBy accumulates the IDs of users that have seen the message.
type Message struct {
	ID          string              `json:"id"`
	Author      UserRef             `json:"author"`
	IsAdmin     bool                `json:"isAdmin"`
	Content     string              `json:"content"`
	Attachments []string            `json:"attachments"`
	ReplyTo     string              `json:"replyTo,omitempty"`
	Reactions   map[string][]string `json:"reactions"`
	ReadBy      []string            `json:"readBy,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// Ticket is the unit of durability: the whole document, messages
// included, is read and rewritten on every mutation.  Viewer presence
// is intentionally not part of the document; it lives in a side index
// keyed by ticket ID (see repository.ViewerRepo).
type Ticket struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Type        TicketType  `json:"type"`
	Status      Status      `json:"status"`
	Frozen      bool        `json:"frozen"`
	Owner       UserRef     `json:"owner"`
	Attachments []string    `json:"attachments"`
	Messages    []*Message  `json:"messages"`
	Accepted    bool        `json:"accepted"`
	Acceptance  *Acceptance `json:"acceptance,omitempty"`
	Rating      *Rating     `json:"rating,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// FindMessage returns the message with the given ID, or nil if the
// ticket does not contain it.
func (t *Ticket) FindMessage(id string) *Message {
	for _, m := range t.Messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// VisibleTo reports whether the given user may read this ticket.
func (t *Ticket) VisibleTo(userID string, admin bool) bool {
	return admin || t.Owner.ID == userID || t.Type == TypePublic
}

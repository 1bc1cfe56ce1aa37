package model

import "time"

// Identity is the authenticated caller as resolved by the middleware
// chain: claims from the bearer token plus the admin capability
// resolved through the role checker.  Handlers never look at the raw
// token; they operate on this value from the request context.
type Identity struct {
	ID       string
	Username string
	Avatar   string
	Admin    bool
}

// Ref converts an identity into the display snapshot embedded in
// tickets and messages.
func (i Identity) Ref() UserRef {
	return UserRef{ID: i.ID, Username: i.Username, Avatar: i.Avatar}
}

// User mirrors the users table.  Rows are upserted from authenticated
// traffic; LastSeen drives the active-user threshold in statistics.
type User struct {
	ID       string    // users.id
	Username string    // users.username
	Avatar   string    // users.avatar
	LastSeen time.Time // users.last_seen
	Points   int       // coalesced from points.points
}

// BanRecord mirrors the banned table.  A user with a row here is
// rejected by the ban guard before reaching any handler.
type BanRecord struct {
	ID        int64     // banned.id
	UserID    string    // banned.user_id
	Username  string    // banned.username
	Avatar    string    // banned.avatar
	AdminID   string    // banned.admin_id
	AdminName string    // banned.admin_name
	Reason    string    // banned.reason
	Timestamp time.Time // banned.timestamp
}

// RatingEntry mirrors the ratings ledger table.  Each row snapshots
// the ticket title and the accepting admin at rating time, so the
// ledger stays meaningful after the ticket document is deleted.
type RatingEntry struct {
	ID          string    // ratings.id
	TicketID    string    // ratings.ticket_id
	TicketTitle string    // ratings.ticket_title
	User        UserRef   // rater (the ticket owner)
	Admin       UserRef   // accepting admin, or the system-admin sentinel
	Rating      int       // ratings.rating
	Comment     string    // ratings.comment
	Timestamp   time.Time // ratings.timestamp
}

// SystemAdminName is recorded in the rating ledger when a ticket was
// never accepted by a specific admin.
const SystemAdminName = "System Admin"

// Viewer is one entry of a ticket's presence index: who has opened
// the ticket and when they first did.
type Viewer struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar,omitempty"`
	FirstSeen time.Time `json:"firstSeen"`
}

// Package repository defines the persistence layer: the file-backed
// ticket document store plus the MySQL-backed relational aggregates
// (users, admin roster, ban list, points, ratings, viewer index).
// Sentinel errors declared here let the service layer distinguish
// failure scenarios without inspecting driver errors.
package repository

import "errors"

// ErrTicketNotFound is returned when no document exists for the
// requested ticket ID.  The service maps this to a NOT_FOUND error.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrUserNotFound is returned when a users-table lookup matches no row.
var ErrUserNotFound = errors.New("user not found")

// ErrAlreadyBanned signals that a ban insert would duplicate an
// existing active ban for the same user.
var ErrAlreadyBanned = errors.New("user is already banned")

// ErrNotBanned signals that an unban targeted a user with no active ban.
var ErrNotBanned = errors.New("user is not banned")

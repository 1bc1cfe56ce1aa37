// Package service implements the coordinator's business logic: the
// ticket state machine, the cooldown limiter and the role checker.
// The state machine validates each action against the current
// document, rewrites it atomically, pushes a delta to realtime
// subscribers and emits a domain event for asynchronous notification
// fan-out.  Broadcast and fan-out never gate the mutation: once the
// document is written the operation has succeeded.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/BladedNarwhal/Nar-Bot/internal/apperr"
	"github.com/BladedNarwhal/Nar-Bot/internal/config"
	"github.com/BladedNarwhal/Nar-Bot/internal/model"
	"github.com/BladedNarwhal/Nar-Bot/internal/queue"
	"github.com/BladedNarwhal/Nar-Bot/internal/repository"
)

// ViewerIndex is the presence side index consulted and updated on
// every ticket read.
type ViewerIndex interface {
	Record(ctx context.Context, ticketID, userID string, at time.Time) error
	List(ctx context.Context, ticketID string) ([]model.Viewer, error)
	Clear(ctx context.Context, ticketID, userID string) error
	ClearAll(ctx context.Context, ticketID string) error
}

// RatingLedger receives one append per rating action.
type RatingLedger interface {
	Append(ctx context.Context, e *model.RatingEntry) error
}

// PointsLedger tracks per-admin contribution points.
type PointsLedger interface {
	Increment(ctx context.Context, adminID string) error
}

// EventPublisher hands domain events to the notification bus.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// Broadcaster pushes deltas to realtime subscribers.
type Broadcaster interface {
	BroadcastGlobal(event string, data any)
	BroadcastRoom(room, event string, data any)
}

// TicketService is the ticket state machine.
type TicketService struct {
	store    repository.TicketStore
	viewers  ViewerIndex
	ratings  RatingLedger
	points   PointsLedger
	events   EventPublisher
	rt       Broadcaster
	messages *CooldownLimiter
	limits   config.Limits
	now      func() time.Time
}

// NewTicketService wires the state machine.  now is the clock; pass
// time.Now outside tests.
func NewTicketService(
	store repository.TicketStore,
	viewers ViewerIndex,
	ratings RatingLedger,
	points PointsLedger,
	events EventPublisher,
	rt Broadcaster,
	messages *CooldownLimiter,
	limits config.Limits,
	now func() time.Time,
) *TicketService {
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		store:    store,
		viewers:  viewers,
		ratings:  ratings,
		points:   points,
		events:   events,
		rt:       rt,
		messages: messages,
		limits:   limits,
		now:      now,
	}
}

// CreateTicketInput carries the fields of a ticket-open request.
type CreateTicketInput struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Type        model.TicketType `json:"type"`
	Attachments []string         `json:"attachments"`
}

// CreateTicket opens a new ticket for the actor.  The creation
// cooldown is measured from the actor's most recent persisted ticket,
// whatever its status, so it holds across restarts.
func (s *TicketService) CreateTicket(ctx context.Context, actor model.Identity, in CreateTicketInput) (*model.Ticket, error) {
	if in.Title == "" || in.Description == "" || in.Type == "" {
		return nil, apperr.Validation("missing required fields")
	}
	if !model.ValidType(in.Type) {
		return nil, apperr.Validation("invalid ticket type")
	}

	existing, err := s.store.List(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list tickets", err)
	}
	now := s.now().UTC()
	for _, t := range existing {
		if t.Owner.ID != actor.ID {
			continue
		}
		// List is newest-first, so the first match is the latest.
		if elapsed := now.Sub(t.CreatedAt); elapsed < s.limits.TicketCooldown {
			return nil, apperr.RateLimited(
				fmt.Sprintf("please wait %s between creating tickets", s.limits.TicketCooldown),
				s.limits.TicketCooldown-elapsed)
		}
		break
	}

	attachments := in.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	ticket := &model.Ticket{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Type:        in.Type,
		Status:      model.StatusOpen,
		Frozen:      false,
		Owner:       actor.Ref(),
		Attachments: attachments,
		Messages:    []*model.Message{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Put(ctx, ticket); err != nil {
		return nil, apperr.Internal("failed to persist ticket", err)
	}

	s.recordView(ctx, ticket.ID, actor.ID)
	s.publish(queue.Event{
		Kind:   queue.KindTicketCreated,
		At:     now,
		Ticket: queue.TicketInfoOf(ticket),
	})
	// The ticket did not exist before, so nobody is in its room yet:
	// announce globally.
	s.rt.BroadcastGlobal("new_ticket", ticket)
	return ticket, nil
}

// ListTickets returns the tickets visible to the actor: everything for
// admins, otherwise the actor's own tickets plus public ones.
func (s *TicketService) ListTickets(ctx context.Context, actor model.Identity) ([]*model.Ticket, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list tickets", err)
	}
	visible := make([]*model.Ticket, 0, len(all))
	for _, t := range all {
		if t.VisibleTo(actor.ID, actor.Admin) {
			visible = append(visible, t)
		}
	}
	return visible, nil
}

// GetTicket returns one ticket with its viewer list.  Reading a ticket
// records the reader in the presence index (first view only).
func (s *TicketService) GetTicket(ctx context.Context, actor model.Identity, id string) (*model.Ticket, []model.Viewer, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !ticket.VisibleTo(actor.ID, actor.Admin) {
		return nil, nil, apperr.Permission("permission denied")
	}
	s.recordView(ctx, id, actor.ID)
	viewers, err := s.viewers.List(ctx, id)
	if err != nil {
		return nil, nil, apperr.Internal("failed to list viewers", err)
	}
	return ticket, viewers, nil
}

// PostMessageInput carries one message-post request.  Attachments are
// base64 payloads; their decoded size is capped per attachment.
type PostMessageInput struct {
	Content     string   `json:"message"`
	Attachments []string `json:"attachments"`
	ReplyTo     string   `json:"replyTo"`
}

// PostMessage appends a message to an open, unfrozen ticket.  The
// author cooldown is process-wide and independent of the ticket.
func (s *TicketService) PostMessage(ctx context.Context, actor model.Identity, ticketID string, in PostMessageInput) (*model.Message, error) {
	var msg *model.Message
	ticket, err := s.store.Mutate(ctx, ticketID, func(t *model.Ticket) error {
		if !t.VisibleTo(actor.ID, actor.Admin) {
			return apperr.Permission("permission denied")
		}
		if t.Frozen {
			return apperr.InvalidState("ticket is frozen")
		}
		if t.Status != model.StatusOpen {
			return apperr.InvalidState("ticket is not open")
		}
		if utf8.RuneCountInString(in.Content) > s.limits.MaxMessageLength {
			return apperr.Validation(fmt.Sprintf("message cannot exceed %d characters", s.limits.MaxMessageLength))
		}
		for _, a := range in.Attachments {
			if decodedSize(a) > s.limits.MaxAttachmentBytes {
				return apperr.Validation("attachment size must not exceed 1 MB")
			}
		}
		if wait, ok := s.messages.Allow(actor.ID); !ok {
			secs := int(math.Ceil(wait.Seconds()))
			return apperr.RateLimited(
				fmt.Sprintf("please wait %d seconds before sending another message", secs), wait)
		}

		attachments := in.Attachments
		if attachments == nil {
			attachments = []string{}
		}
		now := s.now().UTC()
		msg = &model.Message{
			ID:          uuid.NewString(),
			Author:      actor.Ref(),
			IsAdmin:     actor.Admin,
			Content:     in.Content,
			Attachments: attachments,
			ReplyTo:     in.ReplyTo,
			Reactions:   map[string][]string{},
			CreatedAt:   now,
		}
		t.Messages = append(t.Messages, msg)
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		// A consumed cooldown is only kept for messages that became
		// visible; a failed write gives the author their slot back.
		if msg != nil {
			s.messages.Reset(actor.ID)
		}
		return nil, s.asAppError(err, "failed to post message")
	}

	s.rt.BroadcastRoom(ticketID, "new_message", msg)
	s.publish(queue.Event{
		Kind:    queue.KindMessagePosted,
		At:      msg.CreatedAt,
		Ticket:  queue.TicketInfoOf(ticket),
		Message: queue.MessageInfoOf(msg),
	})
	if actor.Admin {
		s.awardPoint(ctx, actor.ID)
	}
	return msg, nil
}

// ToggleReaction flips the actor's reaction with the given emoji on a
// message: present removes, absent adds.  Empty reaction lists are
// pruned so the map only carries live emoji.
func (s *TicketService) ToggleReaction(ctx context.Context, actor model.Identity, ticketID, messageID, emoji string) (map[string][]string, error) {
	if emoji == "" {
		return nil, apperr.Validation("emoji is required")
	}
	var reactions map[string][]string
	_, err := s.store.Mutate(ctx, ticketID, func(t *model.Ticket) error {
		msg := t.FindMessage(messageID)
		if msg == nil {
			return apperr.NotFound("message not found")
		}
		if msg.Reactions == nil {
			msg.Reactions = map[string][]string{}
		}
		users := msg.Reactions[emoji]
		removed := false
		for i, id := range users {
			if id == actor.ID {
				msg.Reactions[emoji] = append(users[:i], users[i+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			msg.Reactions[emoji] = append(users, actor.ID)
		}
		if len(msg.Reactions[emoji]) == 0 {
			delete(msg.Reactions, emoji)
		}
		reactions = msg.Reactions
		return nil
	})
	if err != nil {
		return nil, s.asAppError(err, "failed to toggle reaction")
	}

	s.rt.BroadcastRoom(ticketID, "reaction_update", map[string]any{
		"ticketId":  ticketID,
		"messageId": messageID,
		"reactions": reactions,
	})
	return reactions, nil
}

// StatusChange reports the outcome of a ChangeStatus call.  Fields are
// nil when the corresponding part of the request was absent.
type StatusChange struct {
	Status *model.Status     `json:"status,omitempty"`
	Frozen *bool             `json:"frozen,omitempty"`
	Type   *model.TicketType `json:"type,omitempty"`
}

// ChangeStatus updates a ticket's lifecycle state and/or visibility
// type.  Requesting the frozen pseudo-status sets the frozen flag and
// leaves the stored status untouched; any real status clears it.
func (s *TicketService) ChangeStatus(ctx context.Context, actor model.Identity, ticketID string, newStatus model.Status, newType model.TicketType) (*StatusChange, error) {
	if newStatus != "" && newStatus != model.StatusFrozen && !model.ValidStatus(newStatus) {
		return nil, apperr.Validation("invalid status")
	}
	if newType != "" && !model.ValidType(newType) {
		return nil, apperr.Validation("invalid type")
	}
	if newStatus == "" && newType == "" {
		return nil, apperr.Validation("nothing to change")
	}

	change := &StatusChange{}
	ticket, err := s.store.Mutate(ctx, ticketID, func(t *model.Ticket) error {
		if !actor.Admin && t.Owner.ID != actor.ID {
			return apperr.Permission("permission denied")
		}
		if newStatus != "" {
			if newStatus == model.StatusFrozen {
				t.Frozen = true
			} else {
				t.Status = newStatus
				t.Frozen = false
			}
			status := t.Status
			frozen := t.Frozen
			change.Status = &status
			change.Frozen = &frozen
		}
		if newType != "" {
			t.Type = newType
			typ := t.Type
			change.Type = &typ
		}
		t.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, s.asAppError(err, "failed to update ticket")
	}

	if change.Status != nil {
		s.rt.BroadcastRoom(ticketID, "status_update", map[string]any{
			"ticketId": ticketID,
			"status":   *change.Status,
			"frozen":   *change.Frozen,
		})
	}
	if change.Type != nil {
		s.rt.BroadcastRoom(ticketID, "type_update", map[string]any{
			"ticketId": ticketID,
			"type":     *change.Type,
		})
	}
	if change.Status != nil && actor.Admin && ticket.Owner.ID != actor.ID {
		actorRef := actor.Ref()
		s.publish(queue.Event{
			Kind:   queue.KindStatusChanged,
			At:     s.now().UTC(),
			Ticket: queue.TicketInfoOf(ticket),
			Actor:  &actorRef,
			Status: newStatus,
		})
		s.awardPoint(ctx, actor.ID)
	}
	return change, nil
}

// AcceptTicket marks a ticket as taken by the admin.  Accepting an
// already-accepted ticket overwrites the acceptance record and
// re-notifies; the data-level result is the same either way.
func (s *TicketService) AcceptTicket(ctx context.Context, admin model.Identity, ticketID string) (*model.Ticket, error) {
	if !admin.Admin {
		return nil, apperr.Permission("admin access required")
	}
	now := s.now().UTC()
	ticket, err := s.store.Mutate(ctx, ticketID, func(t *model.Ticket) error {
		t.Accepted = true
		t.Acceptance = &model.Acceptance{By: admin.Ref(), At: now}
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, s.asAppError(err, "failed to accept ticket")
	}

	s.recordView(ctx, ticketID, admin.ID)
	// Acceptance changes list-level state, so every client hears it.
	s.rt.BroadcastGlobal("ticket_accepted", map[string]any{
		"ticketId":   ticketID,
		"acceptedBy": ticket.Acceptance.By,
	})
	adminRef := admin.Ref()
	s.publish(queue.Event{
		Kind:   queue.KindTicketAccepted,
		At:     now,
		Ticket: queue.TicketInfoOf(ticket),
		Actor:  &adminRef,
	})
	s.awardPoint(ctx, admin.ID)
	return ticket, nil
}

// RateTicket records the owner's verdict on a closed ticket and
// appends a ledger entry snapshotting the title and the accepting
// admin (or the system-admin sentinel when nobody accepted).  Rating
// again overwrites the document's rating and appends another row.
func (s *TicketService) RateTicket(ctx context.Context, actor model.Identity, ticketID string, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return apperr.Validation("rating must be between 1 and 5")
	}
	now := s.now().UTC()
	ticket, err := s.store.Mutate(ctx, ticketID, func(t *model.Ticket) error {
		if t.Owner.ID != actor.ID {
			return apperr.Permission("permission denied")
		}
		if t.Status != model.StatusClosed {
			return apperr.InvalidState("can only rate closed tickets")
		}
		t.Rating = &model.Rating{Rating: rating, Comment: comment, Timestamp: now}
		return nil
	})
	if err != nil {
		return s.asAppError(err, "failed to rate ticket")
	}

	adminRef := model.UserRef{Username: model.SystemAdminName}
	if ticket.Acceptance != nil {
		adminRef = ticket.Acceptance.By
	}
	entry := &model.RatingEntry{
		ID:          uuid.NewString(),
		TicketID:    ticketID,
		TicketTitle: ticket.Title,
		User:        ticket.Owner,
		Admin:       adminRef,
		Rating:      rating,
		Comment:     comment,
		Timestamp:   now,
	}
	if err := s.ratings.Append(ctx, entry); err != nil {
		return apperr.Internal("failed to record rating", err)
	}

	s.rt.BroadcastGlobal("new_rating", map[string]any{
		"id":       entry.ID,
		"ticketId": ticketID,
	})
	return nil
}

// DeleteTicket destroys the persisted document.  The presence index is
// cleared best-effort; notification ledgers are not cascaded.
func (s *TicketService) DeleteTicket(ctx context.Context, actor model.Identity, ticketID string) error {
	if !actor.Admin {
		return apperr.Permission("admin access required")
	}
	if err := s.store.Delete(ctx, ticketID); err != nil {
		return s.asAppError(err, "failed to delete ticket")
	}
	if err := s.viewers.ClearAll(ctx, ticketID); err != nil {
		log.Printf("tickets: failed to clear viewers of %s: %v", ticketID, err)
	}
	s.rt.BroadcastGlobal("ticket_deleted", ticketID)
	return nil
}

// MarkMessageRead adds the reader to a message's read set.  The room
// is always re-notified, even when the reader was already recorded,
// so late subscribers converge.
func (s *TicketService) MarkMessageRead(ctx context.Context, ticketID, messageID, readerID string) error {
	_, err := s.store.Mutate(ctx, ticketID, func(t *model.Ticket) error {
		msg := t.FindMessage(messageID)
		if msg == nil {
			return apperr.NotFound("message not found")
		}
		for _, id := range msg.ReadBy {
			if id == readerID {
				return nil
			}
		}
		msg.ReadBy = append(msg.ReadBy, readerID)
		return nil
	})
	if err != nil {
		return s.asAppError(err, "failed to mark message read")
	}
	s.rt.BroadcastRoom(ticketID, "message_read", map[string]any{
		"ticketId":  ticketID,
		"messageId": messageID,
		"readBy":    readerID,
	})
	return nil
}

// ListViewers returns a ticket's presence index, most recent first.
func (s *TicketService) ListViewers(ctx context.Context, ticketID string) ([]model.Viewer, error) {
	viewers, err := s.viewers.List(ctx, ticketID)
	if err != nil {
		return nil, apperr.Internal("failed to list viewers", err)
	}
	return viewers, nil
}

// ClearViewer removes one viewer from a ticket's index.
func (s *TicketService) ClearViewer(ctx context.Context, ticketID, userID string) error {
	if err := s.viewers.Clear(ctx, ticketID, userID); err != nil {
		return apperr.Internal("failed to clear viewer", err)
	}
	return nil
}

// ClearViewers wipes a ticket's presence index.
func (s *TicketService) ClearViewers(ctx context.Context, ticketID string) error {
	if err := s.viewers.ClearAll(ctx, ticketID); err != nil {
		return apperr.Internal("failed to clear viewers", err)
	}
	return nil
}

// load fetches a ticket, translating the store's sentinel.
func (s *TicketService) load(ctx context.Context, id string) (*model.Ticket, error) {
	t, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrTicketNotFound) {
		return nil, apperr.NotFound("ticket not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load ticket", err)
	}
	return t, nil
}

// asAppError passes coded errors through and wraps everything else,
// translating the store's not-found sentinel on the way.
func (s *TicketService) asAppError(err error, msg string) error {
	var coded *apperr.Error
	if errors.As(err, &coded) {
		return coded
	}
	if errors.Is(err, repository.ErrTicketNotFound) {
		return apperr.NotFound("ticket not found")
	}
	return apperr.Internal(msg, err)
}

// recordView writes to the presence index.  Failures are logged and
// do not fail the surrounding operation.
func (s *TicketService) recordView(ctx context.Context, ticketID, userID string) {
	if err := s.viewers.Record(ctx, ticketID, userID, s.now().UTC()); err != nil {
		log.Printf("tickets: failed to record viewer %s on %s: %v", userID, ticketID, err)
	}
}

// awardPoint bumps an admin's counter, best-effort.
func (s *TicketService) awardPoint(ctx context.Context, adminID string) {
	if err := s.points.Increment(ctx, adminID); err != nil {
		log.Printf("tickets: failed to award point to %s: %v", adminID, err)
	}
}

// publish hands an event to the bus without blocking the caller.  The
// publisher logs its own failures; a lost notification never rolls
// back the mutation that produced it.
func (s *TicketService) publish(ev queue.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.events.Publish(ctx, ev)
	}()
}

// decodedSize estimates the decoded byte count of a base64 payload.
func decodedSize(b64 string) int {
	return (len(b64)*3 + 3) / 4
}

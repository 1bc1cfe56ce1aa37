package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/BladedNarwhal/Nar-Bot/internal/gateway"
	"github.com/BladedNarwhal/Nar-Bot/internal/model"
)

// Pusher is the push channel the dispatcher delivers through.
type Pusher interface {
	SendDM(ctx context.Context, userID string, n gateway.Notice) error
}

// RosterSource resolves the admin roster for roster-wide fan-out.
type RosterSource interface {
	Roster(ctx context.Context) ([]string, error)
}

// Dispatcher consumes the notifications queue and fans events out to
// their recipients.  Delivery is best-effort: a failure for one
// recipient is logged and the remaining recipients still get theirs.
// There is no retry queue; a notification that cannot be delivered is
// dropped.
type Dispatcher struct {
	url    string
	push   Pusher
	roster RosterSource
	link   string // web panel URL attached to notices, may be empty
}

// NewDispatcher builds a dispatcher consuming from the broker at url.
func NewDispatcher(url string, push Pusher, roster RosterSource, link string) *Dispatcher {
	return &Dispatcher{url: url, push: push, roster: roster, link: link}
}

// Start connects to RabbitMQ, declares the notifications queue and
// consumes it until the context is cancelled.  It runs a reconnect
// loop with capped backoff; processing errors reject the message
// without requeue so a poison event cannot wedge the queue.
func (d *Dispatcher) Start(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(d.url)
		if err != nil {
			log.Printf("dispatcher: failed to dial broker: %v; retrying in %s", err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := d.consumeLoop(ctx, conn); err != nil {
			log.Printf("dispatcher: consume loop ended: %v; reconnecting", err)
			_ = conn.Close()
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (d *Dispatcher) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("dispatcher: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(notificationsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(notificationsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case del, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := d.Handle(ctx, del.Body); err != nil {
				log.Printf("dispatcher: handle event failed: %v", err)
				_ = del.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = del.Ack(false)
		}
	}
}

// Handle decodes and dispatches a single event body.  Decode
// failures, missing payloads and unknown kinds are errors so the
// consume loop rejects them; delivery failures are swallowed here by
// design.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	// The bus is shared with other producers; a well-formed envelope
	// can still arrive without the payload its kind requires.  Reject
	// it here rather than crash on a nil dereference below.
	switch ev.Kind {
	case KindTicketCreated, KindStatusChanged, KindTicketAccepted:
		if ev.Ticket == nil {
			return fmt.Errorf("event %s missing ticket payload", ev.Kind)
		}
	case KindMessagePosted:
		if ev.Ticket == nil || ev.Message == nil {
			return fmt.Errorf("event %s missing ticket or message payload", ev.Kind)
		}
	}

	switch ev.Kind {
	case KindTicketCreated:
		d.toRoster(ctx, gateway.Notice{
			Title: "🎫 New Support Ticket",
			Body: fmt.Sprintf("**Title:** %s\n**Type:** %s\n**From:** %s",
				ev.Ticket.Title, ev.Ticket.Type, ev.Ticket.Owner.Username),
			Color: "#22c55e",
			Link:  d.link,
		})
	case KindMessagePosted:
		notice := gateway.Notice{
			Title:  fmt.Sprintf("💬 New response on: %s", ev.Ticket.Title),
			Body:   excerpt(ev.Message.Content, 200),
			Color:  "#06b6d4",
			Author: ev.Message.Author.Username,
			Image:  ev.Message.Attachment,
			Link:   d.link,
		}
		if ev.Message.IsAdmin {
			// Admin replied: tell the owner.
			d.toUser(ctx, ev.Ticket.Owner.ID, notice)
		} else {
			d.toRoster(ctx, notice)
		}
	case KindStatusChanged:
		d.toUser(ctx, ev.Ticket.Owner.ID, gateway.Notice{
			Title:  fmt.Sprintf("📝 Status Update: %s", ev.Ticket.Title),
			Body:   fmt.Sprintf("The ticket status has been changed to: **%s**", statusLabel(ev.Status)),
			Color:  statusColor(ev.Status),
			Author: actorName(ev.Actor),
			Link:   d.link,
		})
	case KindTicketAccepted:
		d.toUser(ctx, ev.Ticket.Owner.ID, gateway.Notice{
			Title:  fmt.Sprintf("✅ Ticket Accepted: %s", ev.Ticket.Title),
			Body:   fmt.Sprintf("Your ticket has been accepted by **%s**\nYou will receive a response soon.", actorName(ev.Actor)),
			Color:  "#10b981",
			Author: actorName(ev.Actor),
			Link:   d.link,
		})
	case KindUserBanned:
		reason := ev.Reason
		if reason == "" {
			reason = "No reason provided"
		}
		d.toUser(ctx, ev.UserID, gateway.Notice{
			Title:  "🚫 Account Suspended",
			Body:   fmt.Sprintf("Your access has been suspended by **%s**\n**Reason:** %s", actorName(ev.Actor), reason),
			Color:  "#ef4444",
			Author: actorName(ev.Actor),
		})
	case KindPurchaseCompleted:
		d.toUser(ctx, ev.UserID, gateway.Notice{
			Title: "🎉 Purchase Completed Successfully!",
			Body:  fmt.Sprintf("Your purchase of **%s** has been completed successfully ✅", ev.Product),
			Color: "#22c55e",
		})
		d.toRoster(ctx, gateway.Notice{
			Title: "💸 New Store Purchase!",
			Body:  fmt.Sprintf("A new purchase has been completed in the store: **%s**", ev.Product),
			Color: "#6366f1",
		})
	case KindSubscriptionExpiring:
		d.toUser(ctx, ev.UserID, gateway.Notice{
			Title: "⚠️ Warning: Subscription Expiring Soon!",
			Body:  fmt.Sprintf("Your subscription for **%s** expires in %d days.", ev.Product, ev.DaysLeft),
			Color: "#f59e0b",
		})
	case KindSubscriptionExpired:
		d.toUser(ctx, ev.UserID, gateway.Notice{
			Title: "❌ Subscription Expired!",
			Body:  fmt.Sprintf("Your subscription for **%s** has expired.", ev.Product),
			Color: "#ef4444",
		})
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return nil
}

// toUser delivers to a single recipient, logging any failure.
func (d *Dispatcher) toUser(ctx context.Context, userID string, n gateway.Notice) {
	if userID == "" {
		return
	}
	if err := d.push.SendDM(ctx, userID, n); err != nil {
		log.Printf("dispatcher: failed to notify user %s: %v", userID, err)
	}
}

// toRoster delivers to every admin; one unreachable admin never stops
// delivery to the rest.
func (d *Dispatcher) toRoster(ctx context.Context, n gateway.Notice) {
	admins, err := d.roster.Roster(ctx)
	if err != nil {
		log.Printf("dispatcher: failed to load admin roster: %v", err)
		return
	}
	for _, id := range admins {
		if err := d.push.SendDM(ctx, id, n); err != nil {
			log.Printf("dispatcher: failed to notify admin %s: %v", id, err)
		}
	}
}

// excerpt truncates to max runes, never splitting a multibyte
// character.
func excerpt(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

func actorName(u *model.UserRef) string {
	if u == nil {
		return ""
	}
	return u.Username
}

func statusLabel(s model.Status) string {
	switch s {
	case model.StatusOpen:
		return "Open"
	case model.StatusClosed:
		return "Closed"
	case model.StatusOnHold:
		return "On Hold"
	case model.StatusFrozen:
		return "Frozen"
	}
	return string(s)
}

func statusColor(s model.Status) string {
	switch s {
	case model.StatusOpen:
		return "#22c55e"
	case model.StatusClosed:
		return "#ef4444"
	case model.StatusOnHold:
		return "#f59e0b"
	case model.StatusFrozen:
		return "#06b6d4"
	}
	return "#06b6d4"
}

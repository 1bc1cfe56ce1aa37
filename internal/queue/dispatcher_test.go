package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BladedNarwhal/Nar-Bot/internal/gateway"
	"github.com/BladedNarwhal/Nar-Bot/internal/model"
)

type sentDM struct {
	UserID string
	Notice gateway.Notice
}

type fakePusher struct {
	sent []sentDM
	fail map[string]error // userID -> error to return
}

func (p *fakePusher) SendDM(_ context.Context, userID string, n gateway.Notice) error {
	if err := p.fail[userID]; err != nil {
		return err
	}
	p.sent = append(p.sent, sentDM{UserID: userID, Notice: n})
	return nil
}

type fakeRoster struct {
	admins []string
	err    error
}

func (r *fakeRoster) Roster(context.Context) ([]string, error) {
	return r.admins, r.err
}

func marshal(t *testing.T, ev Event) []byte {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	return body
}

func ticketInfo() *TicketInfo {
	return &TicketInfo{
		ID:    "t1",
		Title: "printer on fire",
		Type:  model.TypePublic,
		Owner: model.UserRef{ID: "u1", Username: "alice"},
	}
}

func TestHandleTicketCreatedNotifiesRoster(t *testing.T) {
	push := &fakePusher{}
	d := NewDispatcher("", push, &fakeRoster{admins: []string{"a1", "a2"}}, "https://panel")

	err := d.Handle(context.Background(), marshal(t, Event{
		Kind: KindTicketCreated, At: time.Now(), Ticket: ticketInfo(),
	}))
	require.NoError(t, err)
	require.Len(t, push.sent, 2)
	assert.Equal(t, "a1", push.sent[0].UserID)
	assert.Contains(t, push.sent[0].Notice.Body, "printer on fire")
	assert.Equal(t, "https://panel", push.sent[0].Notice.Link)
}

func TestHandleMessagePostedRouting(t *testing.T) {
	push := &fakePusher{}
	d := NewDispatcher("", push, &fakeRoster{admins: []string{"a1"}}, "")

	// Admin message goes to the ticket owner.
	err := d.Handle(context.Background(), marshal(t, Event{
		Kind:   KindMessagePosted,
		Ticket: ticketInfo(),
		Message: &MessageInfo{
			ID: "m1", Author: model.UserRef{ID: "a1", Username: "mod"},
			IsAdmin: true, Content: "looking into it",
		},
	}))
	require.NoError(t, err)
	require.Len(t, push.sent, 1)
	assert.Equal(t, "u1", push.sent[0].UserID)

	// User message goes to the roster.
	push.sent = nil
	err = d.Handle(context.Background(), marshal(t, Event{
		Kind:   KindMessagePosted,
		Ticket: ticketInfo(),
		Message: &MessageInfo{
			ID: "m2", Author: model.UserRef{ID: "u1", Username: "alice"},
			Content: "still burning",
		},
	}))
	require.NoError(t, err)
	require.Len(t, push.sent, 1)
	assert.Equal(t, "a1", push.sent[0].UserID)
}

func TestHandleDeliveryFailureDoesNotStopFanout(t *testing.T) {
	push := &fakePusher{fail: map[string]error{"a1": errors.New("dms closed")}}
	d := NewDispatcher("", push, &fakeRoster{admins: []string{"a1", "a2", "a3"}}, "")

	err := d.Handle(context.Background(), marshal(t, Event{
		Kind: KindTicketCreated, Ticket: ticketInfo(),
	}))
	require.NoError(t, err, "delivery failures are swallowed")
	require.Len(t, push.sent, 2)
	assert.Equal(t, "a2", push.sent[0].UserID)
	assert.Equal(t, "a3", push.sent[1].UserID)
}

func TestHandleUserBannedDefaultsReason(t *testing.T) {
	push := &fakePusher{}
	d := NewDispatcher("", push, &fakeRoster{}, "")
	actor := model.UserRef{ID: "a1", Username: "mod"}

	err := d.Handle(context.Background(), marshal(t, Event{
		Kind: KindUserBanned, UserID: "u1", Actor: &actor,
	}))
	require.NoError(t, err)
	require.Len(t, push.sent, 1)
	assert.Contains(t, push.sent[0].Notice.Body, "No reason provided")
	assert.Contains(t, push.sent[0].Notice.Body, "mod")
}

func TestHandleRejectsGarbage(t *testing.T) {
	d := NewDispatcher("", &fakePusher{}, &fakeRoster{}, "")
	assert.Error(t, d.Handle(context.Background(), []byte("not json")))
	assert.Error(t, d.Handle(context.Background(), marshal(t, Event{Kind: "mystery"})))
}

func TestHandleRejectsMissingPayload(t *testing.T) {
	// A well-formed envelope without the payload its kind requires
	// must come back as an error, never a panic: the consume loop
	// turns the error into a reject-without-requeue, and a panic
	// would crash-loop the process on a redelivered poison message.
	push := &fakePusher{}
	d := NewDispatcher("", push, &fakeRoster{admins: []string{"a1"}}, "")
	ctx := context.Background()

	cases := []struct {
		name string
		body []byte
	}{
		{"created without ticket", []byte(`{"kind":"ticket_created"}`)},
		{"status without ticket", []byte(`{"kind":"status_changed"}`)},
		{"accepted without ticket", []byte(`{"kind":"ticket_accepted"}`)},
		{"posted without anything", []byte(`{"kind":"message_posted"}`)},
		{"posted without message", marshal(t, Event{Kind: KindMessagePosted, Ticket: ticketInfo()})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Error(t, d.Handle(ctx, tc.body))
			})
		})
	}
	assert.Empty(t, push.sent, "no partial delivery for rejected events")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", excerpt("short", 10))
	long := make([]byte, 250)
	for i := range long {
		long[i] = 'x'
	}
	got := excerpt(string(long), 200)
	assert.Len(t, got, 203)
	assert.Equal(t, "...", got[200:])
}

func TestExcerptRuneBoundary(t *testing.T) {
	long := []rune{}
	for i := 0; i < 250; i++ {
		long = append(long, 'ж')
	}
	got := excerpt(string(long), 200)
	assert.True(t, utf8.ValidString(got), "truncation must not split a rune")
	runes := []rune(got)
	assert.Len(t, runes, 203)
	assert.Equal(t, "...", string(runes[200:]))
}

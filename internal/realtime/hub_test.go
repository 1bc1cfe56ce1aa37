package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, c *Client) []Frame {
	t.Helper()
	var frames []Frame
	for {
		select {
		case payload := <-c.send:
			var f Frame
			require.NoError(t, json.Unmarshal(payload, &f))
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func TestBroadcastGlobalReachesAllClients(t *testing.T) {
	hub := NewHub()
	a := NewClient(hub, nil, "u1")
	b := NewClient(hub, nil, "u2")
	hub.Register(a)
	hub.Register(b)

	hub.BroadcastGlobal("new_ticket", map[string]string{"id": "t1"})

	for _, c := range []*Client{a, b} {
		frames := drain(t, c)
		require.Len(t, frames, 1)
		assert.Equal(t, "new_ticket", frames[0].Type)
	}
}

func TestBroadcastRoomScopedToSubscribers(t *testing.T) {
	hub := NewHub()
	inside := NewClient(hub, nil, "u1")
	outside := NewClient(hub, nil, "u2")
	hub.Register(inside)
	hub.Register(outside)
	hub.Join(inside, "t1")

	hub.BroadcastRoom("t1", "new_message", map[string]string{"id": "m1"})

	frames := drain(t, inside)
	require.Len(t, frames, 1)
	assert.Equal(t, "new_message", frames[0].Type)
	assert.Empty(t, drain(t, outside), "non-subscriber must not receive room events")
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := NewHub()
	c := NewClient(hub, nil, "u1")
	hub.Register(c)
	hub.Join(c, "t1")
	require.Equal(t, 1, hub.RoomSize("t1"))

	hub.Leave(c, "t1")
	assert.Equal(t, 0, hub.RoomSize("t1"))

	hub.BroadcastRoom("t1", "new_message", nil)
	assert.Empty(t, drain(t, c))
}

func TestUnregisterCleansRooms(t *testing.T) {
	hub := NewHub()
	c := NewClient(hub, nil, "u1")
	hub.Register(c)
	hub.Join(c, "t1")
	hub.Join(c, "t2")

	hub.Unregister(c)
	assert.Equal(t, 0, hub.RoomSize("t1"))
	assert.Equal(t, 0, hub.RoomSize("t2"))

	// Broadcasting after unregister must not deliver or panic.
	hub.BroadcastGlobal("new_ticket", nil)
}

type recordingReads struct {
	calls [][3]string
}

func (r *recordingReads) MarkMessageRead(_ context.Context, ticketID, messageID, readerID string) error {
	r.calls = append(r.calls, [3]string{ticketID, messageID, readerID})
	return nil
}

func TestHandleFrameRouting(t *testing.T) {
	hub := NewHub()
	reads := &recordingReads{}
	hub.SetReadReceiptHandler(reads)
	c := NewClient(hub, nil, "u1")
	hub.Register(c)

	ctx := context.Background()
	hub.handleFrame(ctx, c, []byte(`{"action":"join_ticket","ticket_id":"t1"}`))
	assert.Equal(t, 1, hub.RoomSize("t1"))

	hub.handleFrame(ctx, c, []byte(`{"action":"message_read","ticket_id":"t1","message_id":"m1"}`))
	require.Len(t, reads.calls, 1)
	assert.Equal(t, [3]string{"t1", "m1", "u1"}, reads.calls[0])

	hub.handleFrame(ctx, c, []byte(`{"action":"leave_ticket","ticket_id":"t1"}`))
	assert.Equal(t, 0, hub.RoomSize("t1"))

	// Garbage frames are ignored.
	hub.handleFrame(ctx, c, []byte(`not json`))
	hub.handleFrame(ctx, c, []byte(`{"action":"message_read"}`))
	assert.Len(t, reads.calls, 1)
}

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BladedNarwhal/Nar-Bot/internal/model"
)

func testTicket(id string, createdAt time.Time) *model.Ticket {
	return &model.Ticket{
		ID:          id,
		Title:       "title " + id,
		Description: "desc",
		Type:        model.TypePublic,
		Status:      model.StatusOpen,
		Owner:       model.UserRef{ID: "u1", Username: "alice"},
		Attachments: []string{},
		Messages:    []*model.Message{},
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestFileTicketStoreRoundtrip(t *testing.T) {
	store, err := NewFileTicketStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	want := testTicket("t1", now)
	require.NoError(t, store.Put(ctx, want))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Title, got.Title)
	assert.True(t, got.CreatedAt.Equal(now))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestFileTicketStoreMutate(t *testing.T) {
	store, err := NewFileTicketStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, testTicket("t1", now)))

	got, err := store.Mutate(ctx, "t1", func(tk *model.Ticket) error {
		tk.Status = model.StatusClosed
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, got.Status)

	// The mutation was persisted, not just returned.
	reread, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, reread.Status)

	// A failing callback leaves the document untouched.
	sentinel := assert.AnError
	_, err = store.Mutate(ctx, "t1", func(tk *model.Ticket) error {
		tk.Status = model.StatusOpen
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	reread, err = store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, reread.Status)

	_, err = store.Mutate(ctx, "missing", func(*model.Ticket) error { return nil })
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestFileTicketStoreDelete(t *testing.T) {
	store, err := NewFileTicketStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, testTicket("t1", time.Now())))

	require.NoError(t, store.Delete(ctx, "t1"))
	_, err = store.Get(ctx, "t1")
	assert.ErrorIs(t, err, ErrTicketNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "t1"), ErrTicketNotFound)
}

func TestFileTicketStoreListNewestFirst(t *testing.T) {
	store, err := NewFileTicketStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, testTicket("old", base)))
	require.NoError(t, store.Put(ctx, testTicket("mid", base.Add(time.Hour))))
	require.NoError(t, store.Put(ctx, testTicket("new", base.Add(2*time.Hour))))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "mid", list[1].ID)
	assert.Equal(t, "old", list[2].ID)
}

func TestFileTicketStorePathTraversal(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileTicketStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	// A hostile ID must resolve inside the store directory.
	_, err = store.Get(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

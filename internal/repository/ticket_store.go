package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BladedNarwhal/Nar-Bot/internal/model"
)

// TicketStore is the key-value abstraction over ticket documents.  The
// whole document is the unit of durability: Get returns a private copy,
// Put replaces the stored document atomically.  Mutate is the
// read-modify-write primitive; implementations must serialize Mutate
// calls per ticket ID so two concurrent mutations cannot clobber each
// other's changes.
type TicketStore interface {
	Get(ctx context.Context, id string) (*model.Ticket, error)
	Put(ctx context.Context, t *model.Ticket) error
	// Mutate loads the document, applies fn under the per-ID lock and
	// writes the result back.  If fn returns an error nothing is
	// persisted and the error is returned unchanged.
	Mutate(ctx context.Context, id string, fn func(*model.Ticket) error) (*model.Ticket, error)
	Delete(ctx context.Context, id string) error
	// List returns every stored ticket, newest first.
	List(ctx context.Context) ([]*model.Ticket, error)
}

// FileTicketStore persists one JSON file per ticket under a directory.
// A striped mutex set keyed by ticket ID serializes read-modify-write
// cycles; the original system had no such lock and a last-write-wins
// race on concurrent mutations of the same ticket.
type FileTicketStore struct {
	dir   string
	locks [64]sync.Mutex
}

// NewFileTicketStore creates the backing directory if needed and
// returns a store rooted there.
func NewFileTicketStore(dir string) (*FileTicketStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ticket dir: %w", err)
	}
	return &FileTicketStore{dir: dir}, nil
}

func (s *FileTicketStore) lock(id string) *sync.Mutex {
	var h uint32
	for i := 0; i < len(id); i++ {
		h = h*31 + uint32(id[i])
	}
	return &s.locks[h%uint32(len(s.locks))]
}

func (s *FileTicketStore) path(id string) string {
	// Ticket IDs are generated UUIDs, but never trust an ID in a path.
	return filepath.Join(s.dir, filepath.Base(id)+".json")
}

func (s *FileTicketStore) read(id string) (*model.Ticket, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("read ticket %s: %w", id, err)
	}
	var t model.Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode ticket %s: %w", id, err)
	}
	return &t, nil
}

func (s *FileTicketStore) write(t *model.Ticket) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ticket %s: %w", t.ID, err)
	}
	// Write to a temp file and rename so readers never observe a
	// partially written document.
	tmp := s.path(t.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write ticket %s: %w", t.ID, err)
	}
	if err := os.Rename(tmp, s.path(t.ID)); err != nil {
		return fmt.Errorf("replace ticket %s: %w", t.ID, err)
	}
	return nil
}

func (s *FileTicketStore) Get(ctx context.Context, id string) (*model.Ticket, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()
	return s.read(id)
}

func (s *FileTicketStore) Put(ctx context.Context, t *model.Ticket) error {
	mu := s.lock(t.ID)
	mu.Lock()
	defer mu.Unlock()
	return s.write(t)
}

func (s *FileTicketStore) Mutate(ctx context.Context, id string, fn func(*model.Ticket) error) (*model.Ticket, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()
	t, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	if err := s.write(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *FileTicketStore) Delete(ctx context.Context, id string) error {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrTicketNotFound
	}
	return err
}

func (s *FileTicketStore) List(ctx context.Context) ([]*model.Ticket, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	tickets := make([]*model.Ticket, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		t, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			// A ticket deleted between ReadDir and read is not an error.
			if errors.Is(err, ErrTicketNotFound) {
				continue
			}
			return nil, err
		}
		tickets = append(tickets, t)
	}
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})
	return tickets, nil
}

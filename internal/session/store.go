package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"invoice-workflow-console/internal/console"
)

var ErrNotFound = errors.New("session not found")

// Store persists console snapshots by session id.
type Store interface {
	Load(ctx context.Context, id string) (console.State, error)
	Save(ctx context.Context, id string, st console.State) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	state   console.State
	expires time.Time
}

// MemoryStore keeps snapshots in process. Entries expire ttl after their last save; ttl <= 0 keeps them forever.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Load(_ context.Context, id string) (console.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return console.State{}, ErrNotFound
	}
	if !e.expires.IsZero() && s.now().After(e.expires) {
		delete(s.entries, id)
		return console.State{}, ErrNotFound
	}
	return e.state, nil
}

func (s *MemoryStore) Save(_ context.Context, id string, st console.State) error {
	e := memoryEntry{state: st}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

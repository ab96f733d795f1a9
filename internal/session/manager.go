package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"invoice-workflow-console/internal/console"
)

type liveConsole struct {
	c        *console.Console
	lastSeen time.Time
}

// Manager hands out one live Console per session id so that the console's
// loading flag covers every request of that session in this process. Snapshots
// are written through to the Store after each change, and an idle cached console
// is refreshed from the Store on every Get so that servers sharing a Store see
// each other's changes.
type Manager struct {
	store Store
	api   console.WorkflowAPI
	log   *zap.Logger
	idle  time.Duration
	now   func() time.Time

	mu   sync.Mutex
	live map[string]*liveConsole
}

// NewManager evicts consoles idle for longer than idle from the in-process cache; the
// store still holds their snapshot. idle <= 0 disables eviction.
func NewManager(store Store, api console.WorkflowAPI, idle time.Duration, log *zap.Logger) *Manager {
	return &Manager{
		store: store,
		api:   api,
		log:   log,
		idle:  idle,
		now:   time.Now,
		live:  make(map[string]*liveConsole),
	}
}

func (m *Manager) NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like an id issued by NewID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get returns the console for id, restoring it from the store or creating a fresh one.
// A cached console with a request in flight is returned as is.
func (m *Manager) Get(ctx context.Context, id string) (*console.Console, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evictLocked(now)

	if lc, ok := m.live[id]; ok {
		lc.lastSeen = now
		if lc.c.Snapshot().Loading {
			return lc.c, nil
		}
		st, err := m.store.Load(ctx, id)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return nil, err
		default:
			lc.c.Reload(st)
		}
		return lc.c, nil
	}

	var c *console.Console
	st, err := m.store.Load(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		c = console.New(m.api, m.log)
	case err != nil:
		return nil, err
	default:
		c = console.Restore(m.api, m.log, st)
	}
	m.live[id] = &liveConsole{c: c, lastSeen: now}
	return c, nil
}

func (m *Manager) Save(ctx context.Context, id string, c *console.Console) error {
	return m.store.Save(ctx, id, c.Snapshot())
}

// Len is the number of consoles cached in process.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

func (m *Manager) evictLocked(now time.Time) {
	if m.idle <= 0 {
		return
	}
	for id, lc := range m.live {
		if now.Sub(lc.lastSeen) > m.idle && !lc.c.Snapshot().Loading {
			delete(m.live, id)
		}
	}
}

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/tedsta/ted/pkg/logger"
)

// Store is the persistence boundary a Manager saves snapshots through.
// pkg/store's LocalBackend and S3Backend both satisfy it; Manager never
// imports pkg/store directly so the session package stays storage-agnostic.
type Store interface {
	Save(ctx context.Context, id string, text string) error
	Load(ctx context.Context, id string) (text string, ok bool, err error)
}

// entry is one hosted document: its live session plus the bookkeeping
// the reaper needs to decide when it has gone idle.
type entry struct {
	session      *Session
	lastAccessed atomic64
}

// atomic64 is a tiny unix-nano timestamp box; sync/atomic's Int64 is used
// directly everywhere else in this package but entry needs a
// RWMutex-protected read/write pair for LastAccessed because the reaper
// reads it from a different goroutine than requests update it.
type atomic64 struct {
	mu sync.RWMutex
	ns int64
}

func (a *atomic64) Set(t time.Time) {
	a.mu.Lock()
	a.ns = t.UnixNano()
	a.mu.Unlock()
}

func (a *atomic64) Get() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return time.Unix(0, a.ns)
}

// Manager hosts many documents keyed by a generated uuid, each evicted
// by a robfig/cron-scheduled reaper once it has been idle past its
// configured expiry.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	cfg      Config
	store    Store
	expiry   time.Duration
	cron     *cron.Cron
}

// NewManager creates a Manager. store may be nil to disable persistence.
func NewManager(cfg Config, store Store, expiry time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*entry),
		cfg:      cfg,
		store:    store,
		expiry:   expiry,
	}
}

// Create starts a new, empty hosted document and returns its id.
func (m *Manager) Create() string {
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = &entry{session: New(m.cfg)}
	m.sessions[id].lastAccessed.Set(time.Now())
	m.mu.Unlock()
	return id
}

// Get returns the hosted session for id, loading it from the store on
// first access if one is configured.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		e.lastAccessed.Set(time.Now())
		return e.session, nil
	}

	sess := New(m.cfg)
	if m.store != nil {
		if text, found, err := m.store.Load(ctx, id); err != nil {
			return nil, fmt.Errorf("session: load %s: %w", id, err)
		} else if found {
			restored, err := FromSnapshot(m.cfg, text)
			if err != nil {
				return nil, err
			}
			sess = restored
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		existing.lastAccessed.Set(time.Now())
		return existing.session, nil
	}
	ne := &entry{session: sess}
	ne.lastAccessed.Set(time.Now())
	m.sessions[id] = ne
	return sess, nil
}

// Count returns the number of currently hosted documents.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartReaper schedules a cron job that evicts documents idle longer than
// expiry.
func (m *Manager) StartReaper(ctx context.Context, schedule string) error {
	m.cron = cron.New()
	_, err := m.cron.AddFunc(schedule, func() { m.reap(ctx) })
	if err != nil {
		return fmt.Errorf("session: schedule reaper: %w", err)
	}
	m.cron.Start()
	go func() {
		<-ctx.Done()
		m.cron.Stop()
	}()
	return nil
}

func (m *Manager) reap(ctx context.Context) {
	now := time.Now()
	var expired []string

	m.mu.RLock()
	for id, e := range m.sessions {
		if now.Sub(e.lastAccessed.Get()) > m.expiry {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.evict(ctx, id)
	}
}

func (m *Manager) evict(ctx context.Context, id string) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	if m.store != nil {
		if err := m.store.Save(ctx, id, e.session.Text()); err != nil {
			logger.Error("session: persisting %s before eviction: %v", id, err)
		}
	} else if e.session.Version() > 0 {
		logger.Warn("session: reaping %s with no store configured, discarding %d timeline entries", id, e.session.Version())
	}
	logger.WithFields("session: reaped idle document", logger.Fields{
		"id":        id,
		"clients":   e.session.ClientCount(),
		"persisted": m.store != nil,
	})
}

// Persist saves every currently hosted document through the store,
// whether or not it changed since its last save, run once across the
// whole manager rather than as a goroutine per document.
func (m *Manager) Persist(ctx context.Context) {
	if m.store == nil {
		return
	}

	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	sessions := make([]*Session, 0, len(m.sessions))
	for id, e := range m.sessions {
		ids = append(ids, id)
		sessions = append(sessions, e.session)
	}
	m.mu.RUnlock()

	for i, id := range ids {
		if err := m.store.Save(ctx, id, sessions[i].Text()); err != nil {
			logger.Error("session: persisting %s: %v", id, err)
		}
	}
}

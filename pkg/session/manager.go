package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/quarry/internal/logging"
	"github.com/aretw0/quarry/pkg/domain"
	"github.com/aretw0/quarry/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a session.
const DefaultLockTTL = 30 * time.Second

// Resumer is implemented by dispatchers that need to normalize a session
// the first time a process touches it (e.g. dropping a transient overlay).
type Resumer interface {
	Resume(s *domain.Session) *domain.Session
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store  ports.SessionStore
	engine ports.Dispatcher

	mu      sync.Mutex            // Global lock for the maps
	locks   map[string]*lockEntry // Map of active locks
	resumed map[string]bool       // Sessions already normalized by this process

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL for distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a new Session Manager driving engine over store.
func NewManager(store ports.SessionStore, engine ports.Dispatcher, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		engine:  engine,
		locks:   make(map[string]*lockEntry),
		resumed: make(map[string]bool),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// load reads a session and resumes it on first touch. Callers hold the session lock.
func (m *Manager) load(ctx context.Context, sessionID string) (*domain.Session, error) {
	s, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	first := !m.resumed[sessionID]
	m.resumed[sessionID] = true
	m.mu.Unlock()

	if r, ok := m.engine.(Resumer); ok && first {
		s = r.Resume(s)
	}
	return s, nil
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	var s *domain.Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		s, err = m.load(ctx, sessionID)
		return err
	})
	return s, err
}

// LoadOrStart tries to load a session. If not found, it starts a new one and persists it.
func (m *Manager) LoadOrStart(ctx context.Context, sessionID string) (*domain.Session, error) {
	var s *domain.Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		s, err = m.load(ctx, sessionID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		s, err = m.engine.Start(ctx, sessionID)
		if err != nil {
			return err
		}
		// Persist immediately to reserve the ID
		if err := m.store.Save(ctx, sessionID, s); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	return s, err
}

// Apply loads the session, dispatches ev and persists the result, all under the session lock.
// It returns the snapshots before and after the event. A rejected event leaves the store untouched.
func (m *Manager) Apply(ctx context.Context, sessionID string, ev domain.Event) (prev, next *domain.Session, err error) {
	err = m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		prev, err = m.load(ctx, sessionID)
		if err != nil {
			return err
		}
		next, err = m.engine.Dispatch(ctx, prev, ev)
		if err != nil {
			return err
		}
		if err := m.store.Save(ctx, sessionID, next); err != nil {
			return fmt.Errorf("failed to persist session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return prev, next, nil
}

// Suggestions returns the quick replies for the stored session.
func (m *Manager) Suggestions(ctx context.Context, sessionID string) ([]string, error) {
	s, err := m.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return m.engine.Suggestions(s), nil
}

// Save persists the session.
func (m *Manager) Save(ctx context.Context, sessionID string, s *domain.Session) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, sessionID, s)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.mu.Lock()
		delete(m.resumed, sessionID)
		m.mu.Unlock()
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// Dispatcher returns the engine the Manager drives.
func (m *Manager) Dispatcher() ports.Dispatcher {
	return m.engine
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

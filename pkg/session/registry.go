package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parley-labs/parley/internal/logging"
	"github.com/parley-labs/parley/pkg/domain"
	"github.com/parley-labs/parley/pkg/ports"
)

// lockTTL bounds a replica's distributed ownership of a session; the lock
// is released on Close or expires if the holder dies.
const lockTTL = 30 * time.Second

// Registry tracks live sessions by id with an explicit lifecycle:
// Create, Lookup/Load, Close. Records of closed sessions are invalidated so
// in-flight generation results fail their stale checks.
type Registry struct {
	mu   sync.Mutex
	live map[string]*entry

	store  ports.RecordStore
	locker ports.DistributedLocker
	logger *slog.Logger
}

type entry struct {
	ctrl   *Controller
	unlock ports.UnlockFunc
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDistributedLocker enables cross-replica session ownership.
func WithDistributedLocker(locker ports.DistributedLocker) RegistryOption {
	return func(g *Registry) {
		g.locker = locker
	}
}

// WithRegistryLogger sets the registry's logger, shared with the
// controllers it creates.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(g *Registry) {
		g.logger = logger
	}
}

// NewRegistry creates a session registry over the given store.
func NewRegistry(store ports.RecordStore, opts ...RegistryOption) *Registry {
	g := &Registry{
		live:   make(map[string]*entry),
		store:  store,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Create registers a fresh record and persists it immediately to reserve
// the id.
func (g *Registry) Create(ctx context.Context, rec *domain.Record) (*Controller, error) {
	unlock, err := g.acquire(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	ctrl := NewController(rec, g.store, WithLogger(g.logger))
	if err := ctrl.Commit(ctx); err != nil {
		g.release(ctx, rec.ID, unlock)
		return nil, fmt.Errorf("reserve session: %w", err)
	}

	g.mu.Lock()
	g.live[rec.ID] = &entry{ctrl: ctrl, unlock: unlock}
	g.mu.Unlock()

	g.logger.Info("session created", "session_id", rec.ID, "level", rec.Level)
	return ctrl, nil
}

// Lookup returns the live controller for a session id, if any.
func (g *Registry) Lookup(sessionID string) (*Controller, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.live[sessionID]
	if !ok {
		return nil, false
	}
	return e.ctrl, true
}

// Load returns the live controller for a session, adopting it from the
// store if this process does not hold it yet.
func (g *Registry) Load(ctx context.Context, sessionID string) (*Controller, error) {
	if ctrl, ok := g.Lookup(sessionID); ok {
		return ctrl, nil
	}

	unlock, err := g.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rec, err := g.store.Load(ctx, sessionID)
	if err != nil {
		g.release(ctx, sessionID, unlock)
		return nil, err
	}
	if rec.Closed {
		g.release(ctx, sessionID, unlock)
		return nil, domain.ErrSessionClosed
	}

	ctrl := NewController(rec, g.store, WithLogger(g.logger))

	g.mu.Lock()
	// Lost a race against a concurrent Load; keep the winner.
	if e, ok := g.live[sessionID]; ok {
		g.mu.Unlock()
		g.release(ctx, sessionID, unlock)
		return e.ctrl, nil
	}
	g.live[sessionID] = &entry{ctrl: ctrl, unlock: unlock}
	g.mu.Unlock()

	return ctrl, nil
}

// Close invalidates the session: the record is marked closed, its position
// cleared so stale generation results cannot apply, a final snapshot is
// persisted, and the controller is dropped from the registry.
func (g *Registry) Close(ctx context.Context, sessionID string) error {
	g.mu.Lock()
	e, ok := g.live[sessionID]
	g.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}

	err := e.ctrl.Transaction(ctx, func(tx *Tx) error {
		rec := tx.Record()
		if rec.Closed {
			return nil
		}
		rec.Closed = true
		rec.Position = nil
		rec.Pending = nil
		rec.Events = append(rec.Events, domain.NewEvent(domain.EventSessionClosed, nil))
		rec.Touch()
		return nil
	})
	if err != nil {
		// The entry stays registered and the lock stays held, so a retry
		// can finish the close.
		return err
	}

	g.mu.Lock()
	cur, still := g.live[sessionID]
	if still && cur == e {
		delete(g.live, sessionID)
	}
	g.mu.Unlock()
	// Lost a race against a concurrent Close; the winner releases the lock.
	if !still || cur != e {
		return domain.ErrSessionNotFound
	}

	if err := e.ctrl.Commit(ctx); err != nil && !errors.Is(err, context.Canceled) {
		// Durability warning only; in-memory close already took effect.
		g.logger.Warn("final commit on close failed", "session_id", sessionID, "err", err)
	}

	g.release(ctx, sessionID, e.unlock)
	g.logger.Info("session closed", "session_id", sessionID)
	return nil
}

// List returns all persisted session ids.
func (g *Registry) List(ctx context.Context) ([]string, error) {
	return g.store.List(ctx)
}

func (g *Registry) acquire(ctx context.Context, sessionID string) (ports.UnlockFunc, error) {
	if g.locker == nil {
		return nil, nil
	}
	unlock, err := g.locker.Lock(ctx, sessionID, lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	return unlock, nil
}

func (g *Registry) release(ctx context.Context, sessionID string, unlock ports.UnlockFunc) {
	if unlock == nil {
		return
	}
	if err := unlock(ctx); err != nil {
		g.logger.Warn("failed to release session lock (will expire via TTL)",
			"session_id", sessionID, "err", err)
	}
}

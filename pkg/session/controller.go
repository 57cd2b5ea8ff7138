package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/parley-labs/parley/internal/logging"
	"github.com/parley-labs/parley/pkg/domain"
	"github.com/parley-labs/parley/pkg/ports"
)

// Controller owns one session's record. All mutation goes through
// Transaction; readers snapshot with Read and block on WaitForChange.
type Controller struct {
	mu  sync.Mutex
	rec *domain.Record

	// notifyMu guards the current notification channel. Closing the
	// channel is the broadcast; a fresh channel replaces it so the signal
	// is cleared for waiters that arrive later.
	notifyMu sync.Mutex
	notify   chan struct{}

	store  ports.RecordStore
	logger *slog.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController wraps a record with its transaction controller.
func NewController(rec *domain.Record, store ports.RecordStore, opts ...ControllerOption) *Controller {
	c := &Controller{
		rec:    rec,
		notify: make(chan struct{}),
		store:  store,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the session id.
func (c *Controller) ID() string {
	return c.rec.ID
}

// Tx is the handle passed to a transaction body. It is only valid for the
// duration of the call.
type Tx struct {
	c *Controller
}

// Record gives access to the live record. Mutations are visible to the next
// reader as soon as the transaction releases the lock (or earlier, via
// MarkChanged).
func (t *Tx) Record() *domain.Record {
	return t.c.rec
}

// MarkChanged wakes current waiters before the transaction ends. Used to
// reveal intermediate progress, e.g. a typing flag set ahead of a slow
// generation call.
func (t *Tx) MarkChanged() {
	t.c.markChanged()
}

// Transaction runs fn while holding the record's mutual-exclusion lock.
// The lock is released and the change notification fired on every exit
// path: even a failed mutation attempt may have progressed visible flags
// that waiters must reconcile.
func (c *Controller) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		c.markChanged()
	}()
	return fn(&Tx{c: c})
}

// Read returns a consistent snapshot of the record.
func (c *Controller) Read() *domain.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.Clone()
}

// WaitForChange suspends until the next change notification or context
// cancellation. Delivery is at-most-once per call; callers re-read the
// record themselves.
func (c *Controller) WaitForChange(ctx context.Context) error {
	c.notifyMu.Lock()
	ch := c.notify
	c.notifyMu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) markChanged() {
	c.notifyMu.Lock()
	close(c.notify)
	c.notify = make(chan struct{})
	c.notifyMu.Unlock()
}

// Commit persists the record. The snapshot is taken under the lock; the
// store write runs outside it, so persistence never serializes session
// activity. A store failure leaves in-memory state authoritative.
func (c *Controller) Commit(ctx context.Context) error {
	snap := c.Read()
	if err := c.store.Save(ctx, snap); err != nil {
		c.logger.Warn("commit failed, in-memory record remains authoritative",
			"session_id", snap.ID, "err", err)
		return fmt.Errorf("commit session %s: %w", snap.ID, err)
	}
	return nil
}

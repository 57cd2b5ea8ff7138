package ports

import (
	"context"

	"github.com/parley-labs/parley/pkg/domain"
)

// RecordStore persists session records. A saved record is always a
// transaction-consistent snapshot: the controller clones under its lock and
// writes outside it, so implementations never observe partial mutation.
type RecordStore interface {
	// Save persists the record keyed by its session id.
	Save(ctx context.Context, rec *domain.Record) error

	// Load retrieves the record for a session id.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Record, error)

	// Delete removes the record for a session id.
	Delete(ctx context.Context, sessionID string) error

	// List returns the ids of all persisted sessions.
	List(ctx context.Context) ([]string, error)
}

package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates session ownership across replicas. The
// in-process controller mutex serializes transactions within one process;
// the distributed lock keeps two processes from adopting the same session.
type DistributedLocker interface {
	// Lock acquires a lock for the key, blocking until acquired or the
	// context is canceled. The returned UnlockFunc MUST be called to
	// release it; the TTL bounds the damage if the holder dies.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

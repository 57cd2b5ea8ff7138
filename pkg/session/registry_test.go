package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-labs/parley/pkg/domain"
	"github.com/parley-labs/parley/pkg/ports"
)

// fakeLocker records lock acquisitions and releases.
type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired int
	released int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) Lock(_ context.Context, key string, _ time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key] = true
	l.acquired++
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.released++
		return nil
	}, nil
}

func TestRegistryCreateAndLookup(t *testing.T) {
	store := newFakeStore()
	reg := NewRegistry(store)
	ctx := context.Background()

	rec := domain.NewRecord("sess-1", "user-1", "Sam", "level-1", 7, nil)
	ctrl, err := reg.Create(ctx, rec)
	require.NoError(t, err)

	// The id is reserved in the store immediately.
	saved, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", saved.UserID)

	got, ok := reg.Lookup("sess-1")
	require.True(t, ok)
	assert.Same(t, ctrl, got)

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistryLoadAdoptsFromStore(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	rec := domain.NewRecord("sess-2", "user-1", "Sam", "level-1", 7, nil)
	require.NoError(t, store.Save(ctx, rec))

	reg := NewRegistry(store)
	ctrl, err := reg.Load(ctx, "sess-2")
	require.NoError(t, err)
	assert.Equal(t, "sess-2", ctrl.ID())

	// Second load returns the same live controller.
	again, err := reg.Load(ctx, "sess-2")
	require.NoError(t, err)
	assert.Same(t, ctrl, again)
}

func TestRegistryLoadMissing(t *testing.T) {
	reg := NewRegistry(newFakeStore())
	_, err := reg.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRegistryLoadClosedSession(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	rec := domain.NewRecord("sess-3", "user-1", "Sam", "level-1", 7, nil)
	rec.Closed = true
	require.NoError(t, store.Save(ctx, rec))

	reg := NewRegistry(store)
	_, err := reg.Load(ctx, "sess-3")
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestRegistryCloseInvalidatesRecord(t *testing.T) {
	store := newFakeStore()
	reg := NewRegistry(store)
	ctx := context.Background()

	rec := domain.NewRecord("sess-4", "user-1", "Sam", "level-1", 7, nil)
	ctrl, err := reg.Create(ctx, rec)
	require.NoError(t, err)

	require.NoError(t, reg.Close(ctx, "sess-4"))

	snap := ctrl.Read()
	assert.True(t, snap.Closed)
	assert.Nil(t, snap.Position)
	assert.Nil(t, snap.Pending)
	require.NotEmpty(t, snap.Events)
	assert.Equal(t, domain.EventSessionClosed, snap.Events[len(snap.Events)-1].Kind)

	// Dropped from the registry; the closed snapshot was persisted.
	_, ok := reg.Lookup("sess-4")
	assert.False(t, ok)
	saved, err := store.Load(ctx, "sess-4")
	require.NoError(t, err)
	assert.True(t, saved.Closed)

	assert.ErrorIs(t, reg.Close(ctx, "sess-4"), domain.ErrSessionNotFound)
}

func TestRegistryDistributedLockLifecycle(t *testing.T) {
	store := newFakeStore()
	locker := newFakeLocker()
	reg := NewRegistry(store, WithDistributedLocker(locker))
	ctx := context.Background()

	rec := domain.NewRecord("sess-5", "user-1", "Sam", "level-1", 7, nil)
	_, err := reg.Create(ctx, rec)
	require.NoError(t, err)

	locker.mu.Lock()
	assert.True(t, locker.held["sess-5"])
	locker.mu.Unlock()

	require.NoError(t, reg.Close(ctx, "sess-5"))

	locker.mu.Lock()
	assert.False(t, locker.held["sess-5"])
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)
	locker.mu.Unlock()
}

func TestRegistryCloseRetriesAfterFailedTransaction(t *testing.T) {
	store := newFakeStore()
	locker := newFakeLocker()
	reg := NewRegistry(store, WithDistributedLocker(locker))
	ctx := context.Background()

	rec := domain.NewRecord("sess-6", "user-1", "Sam", "level-1", 7, nil)
	_, err := reg.Create(ctx, rec)
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.Error(t, reg.Close(cancelled, "sess-6"))

	// The failed close left the session addressable and its lock held, so
	// nothing leaks behind a record that is still open in the store.
	_, ok := reg.Lookup("sess-6")
	assert.True(t, ok)
	locker.mu.Lock()
	assert.True(t, locker.held["sess-6"])
	assert.Equal(t, 0, locker.released)
	locker.mu.Unlock()

	require.NoError(t, reg.Close(ctx, "sess-6"))

	_, ok = reg.Lookup("sess-6")
	assert.False(t, ok)
	locker.mu.Lock()
	assert.False(t, locker.held["sess-6"])
	assert.Equal(t, 1, locker.released)
	locker.mu.Unlock()

	saved, err := store.Load(ctx, "sess-6")
	require.NoError(t, err)
	assert.True(t, saved.Closed)
}

func TestRegistryList(t *testing.T) {
	store := newFakeStore()
	reg := NewRegistry(store)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := reg.Create(ctx, domain.NewRecord(id, "u", "Sam", "level-1", 1, nil))
		require.NoError(t, err)
	}

	ids, err := reg.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)
}

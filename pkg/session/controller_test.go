package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-labs/parley/pkg/domain"
)

// fakeStore is a minimal in-memory RecordStore for controller tests.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*domain.Record
	saveErr error
	saves   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*domain.Record)}
}

func (s *fakeStore) Save(_ context.Context, rec *domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *fakeStore) Load(_ context.Context, id string) (*domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return rec.Clone(), nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *fakeStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids, nil
}

func newTestController(t *testing.T) (*Controller, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	rec := domain.NewRecord("sess-1", "user-1", "Sam", "level-1", 42, nil)
	return NewController(rec, store), store
}

func TestTransactionSerializesMutation(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				err := ctrl.Transaction(ctx, func(tx *Tx) error {
					rec := tx.Record()
					// Read-modify-write that would tear without mutual
					// exclusion.
					n := rec.LastFeedbackAt
					rec.LastFeedbackAt = n + 1
					return nil
				})
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, ctrl.Read().LastFeedbackAt)
}

func TestTransactionContextCancelled(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := ctrl.Transaction(ctx, func(tx *Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestWaitForChangeWakesOnTransaction(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	woke := make(chan error, 1)
	go func() {
		woke <- ctrl.WaitForChange(ctx)
	}()

	// Give the waiter a moment to park on the channel.
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, ctrl.Transaction(ctx, func(tx *Tx) error {
		tx.Record().Unread = true
		return nil
	}))

	select {
	case err := <-woke:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by transaction")
	}
	assert.True(t, ctrl.Read().Unread)
}

func TestWaitForChangeAtMostOncePerCall(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx := context.Background()

	require.NoError(t, ctrl.Transaction(ctx, func(tx *Tx) error { return nil }))

	// The notification above must not satisfy a wait that starts after it.
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := ctrl.WaitForChange(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMarkChangedRevealsMidTransaction(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	observed := make(chan bool, 1)
	release := make(chan struct{})

	go func() {
		if err := ctrl.WaitForChange(ctx); err != nil {
			observed <- false
			return
		}
		observed <- ctrl.Read().AgentTyping
		close(release)
	}()

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, ctrl.Transaction(ctx, func(tx *Tx) error {
		tx.Record().AgentTyping = true
		tx.MarkChanged()
		// Hold the lock until the waiter has read the snapshot, proving the
		// flag was visible before the transaction ended.
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
		tx.Record().AgentTyping = false
		return nil
	}))

	assert.True(t, <-observed)
	assert.False(t, ctrl.Read().AgentTyping)
}

func TestNotificationFiresWhenTransactionFails(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	woke := make(chan error, 1)
	go func() {
		woke <- ctrl.WaitForChange(ctx)
	}()
	time.Sleep(20 * time.Millisecond)

	boom := errors.New("boom")
	err := ctrl.Transaction(ctx, func(tx *Tx) error { return boom })
	require.ErrorIs(t, err, boom)

	select {
	case err := <-woke:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("failed transaction did not notify waiters")
	}
}

func TestReadReturnsIsolatedSnapshot(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx := context.Background()

	require.NoError(t, ctrl.Transaction(ctx, func(tx *Tx) error {
		rec := tx.Record()
		rec.Transcript = append(rec.Transcript, domain.NewMessageEntry("Sam", "hello"))
		return nil
	}))

	snap := ctrl.Read()
	snap.Transcript[0].Message.Content = "tampered"
	snap.Closed = true

	fresh := ctrl.Read()
	assert.Equal(t, "hello", fresh.Transcript[0].Message.Content)
	assert.False(t, fresh.Closed)
}

func TestCommitPersistsSnapshot(t *testing.T) {
	ctrl, store := newTestController(t)
	ctx := context.Background()

	require.NoError(t, ctrl.Transaction(ctx, func(tx *Tx) error {
		tx.Record().Completed = true
		return nil
	}))
	require.NoError(t, ctrl.Commit(ctx))

	saved, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, saved.Completed)
}

func TestCommitFailureLeavesMemoryAuthoritative(t *testing.T) {
	ctrl, store := newTestController(t)
	ctx := context.Background()

	require.NoError(t, ctrl.Transaction(ctx, func(tx *Tx) error {
		tx.Record().Completed = true
		return nil
	}))

	store.mu.Lock()
	store.saveErr = errors.New("store unavailable")
	store.mu.Unlock()

	err := ctrl.Commit(ctx)
	require.Error(t, err)

	// In-memory state is unaffected and a later commit succeeds.
	assert.True(t, ctrl.Read().Completed)

	store.mu.Lock()
	store.saveErr = nil
	store.mu.Unlock()

	require.NoError(t, ctrl.Commit(ctx))
	saved, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, saved.Completed)
}

package pgstore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/store"
)

// Set MUDRA_TEST_POSTGRES_DSN to run these against a scratch database.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("MUDRA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MUDRA_TEST_POSTGRES_DSN not set")
	}

	s, err := New(dsn)
	require.NoError(t, err)
	require.NoError(t, s.db.Exec("TRUNCATE predictions, sessions, users RESTART IDENTITY").Error)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessions_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := s.Sessions()

	start := time.Now().Add(-time.Minute).UTC().Truncate(time.Microsecond)
	sess := &store.Session{ID: uuid.NewString(), UserID: "u1", StartTime: start}
	require.NoError(t, repo.Create(ctx, sess))

	for i := 1; i <= 3; i++ {
		n, err := repo.Increment(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	ended, err := repo.End(ctx, sess.ID, start.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, ended.IsActive)
	assert.Equal(t, 3, ended.GestureCount)
	require.NotNil(t, ended.DurationSeconds)
	assert.InDelta(t, 30.0, *ended.DurationSeconds, 1e-6)

	_, err = repo.End(ctx, sess.ID, time.Now())
	assert.ErrorIs(t, err, store.ErrSessionEnded)
	_, err = repo.Increment(ctx, sess.ID)
	assert.ErrorIs(t, err, store.ErrSessionEnded)
	_, err = repo.Increment(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessions_ConcurrentIncrement(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess := &store.Session{ID: uuid.NewString(), UserID: "u1"}
	require.NoError(t, s.Sessions().Create(ctx, sess))

	const workers = 40
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Sessions().Increment(ctx, sess.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Sessions().Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, got.GestureCount)
}

func TestPredictions_Ordering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := s.Predictions()

	ts := time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)
	for _, p := range []*store.Prediction{
		{ID: "p1", UserID: "u1", Label: "A", Timestamp: ts},
		{ID: "p2", UserID: "u1", Label: "B", Timestamp: ts.Add(time.Second)},
		{ID: "p3", UserID: "u1", Label: "C", Timestamp: ts},
	} {
		require.NoError(t, repo.Create(ctx, p))
	}

	list, total, err := repo.ListByUser(ctx, "u1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"p2", "p1", "p3"}, []string{list[0].ID, list[1].ID, list[2].ID})

	assert.ErrorIs(t, repo.Delete(ctx, "p1", "u2"), store.ErrNotFound)
	assert.NoError(t, repo.Delete(ctx, "p1", "u1"))

	var seen []string
	require.NoError(t, repo.Scan(ctx, func(p *store.Prediction) error {
		seen = append(seen, p.ID)
		return nil
	}))
	assert.Equal(t, []string{"p2", "p3"}, seen)
}

func TestUsers_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, err := s.Users().Ensure(ctx, &store.User{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, store.RoleUser, u.Role)

	require.NoError(t, s.Sessions().Create(ctx, &store.Session{ID: "s1", UserID: "u1"}))
	require.NoError(t, s.Predictions().Create(ctx, &store.Prediction{ID: "p1", UserID: "u1", Label: "Yes"}))

	require.NoError(t, s.Users().Delete(ctx, "u1"))

	_, err = s.Sessions().Get(ctx, "s1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Predictions().Get(ctx, "p1", "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Users().Delete(ctx, "u1"), store.ErrNotFound)
}

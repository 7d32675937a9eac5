package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycounter/internal/model"
	"daycounter/internal/repository"
	"daycounter/internal/repository/repotest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory()
	require.NoError(t, err, "new memory store")
	t.Cleanup(func() { s.Close() })
	return s
}

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s := newTestStore(t)

	var version int
	require.NoError(t, s.db.Get(&version, "PRAGMA user_version"))
	assert.Equal(t, currentVersion, version)
}

func TestNewWithPath_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "daycounter.db")
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)

	s, err := New(path)
	require.NoError(t, err)
	ev := model.NewEvent("persisted", now.Add(time.Hour), now)
	require.NoError(t, s.Save(ctx, ev))
	require.NoError(t, s.SetSetting(ctx, "daily_summary_time", "21:00"))
	require.NoError(t, s.Close())

	// Reopen: should not re-migrate or lose rows.
	s2, err := New(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ev, got[0])

	v, ok, err := s2.GetSetting(ctx, "daily_summary_time")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "21:00", v)
}

func TestDefaultDBPath(t *testing.T) {
	path, err := DefaultDBPath()
	require.NoError(t, err)
	assert.Equal(t, "daycounter.db", filepath.Base(path))
}

// ============================================================
// Events
// ============================================================

func TestStoreContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.Store {
		return newTestStore(t)
	})
}

func TestFetchOrdersByTarget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	late := model.NewEvent("late", now.Add(48*time.Hour), now)
	early := model.NewEvent("early", now.Add(time.Hour), now)
	require.NoError(t, s.Save(ctx, late))
	require.NoError(t, s.Save(ctx, early))

	got, err := s.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].Title)
	assert.Equal(t, "late", got[1].Title)
}

func TestTimesNormalizedToUTC(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	loc := time.FixedZone("+09:00", 9*3600)
	target := time.Date(2026, 6, 1, 9, 0, 0, 0, loc)

	ev := model.NewEvent("seoul", target, target.Add(-time.Hour))
	ev.TargetAt = target
	require.NoError(t, s.Save(ctx, ev))

	got, err := s.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].TargetAt.Equal(target))
	assert.Equal(t, time.UTC, got[0].TargetAt.Location())
}

func TestClosedStoreReturnsStorageError(t *testing.T) {
	s, err := NewMemory()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Fetch(context.Background())
	var se *repository.StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "fetch", se.Op)

	err = s.Save(context.Background(), model.NewEvent("x", time.Now(), time.Now()))
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "save", se.Op)
}

// Package repotest holds the behaviour every repository.Store adapter must
// share. Adapter packages call Run from their own tests.
package repotest

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycounter/internal/model"
	"daycounter/internal/repository"
)

var base = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

// Run exercises newStore against the repository contract. newStore must
// return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) repository.Store) {
	t.Run("SaveAppendsAndFetchReturnsAll", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := sampleEvent("a", 3)
		b := sampleEvent("b", 1)
		require.NoError(t, s.Save(ctx, a))
		require.NoError(t, s.Save(ctx, b))

		got, err := s.Fetch(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.ElementsMatch(t, []string{a.ID, b.ID}, ids(got))
	})

	t.Run("SaveReplacesWholeEvent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := sampleEvent("original", 2)
		require.NoError(t, s.Save(ctx, ev))

		replacement := model.NewEvent("replaced", base.Add(5*time.Hour), base)
		replacement.ID = ev.ID
		require.NoError(t, s.Save(ctx, replacement))

		got, err := s.Fetch(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, replacement, got[0])
		// Fields only the original had must be gone, not merged.
		assert.Empty(t, got[0].Tasks)
		assert.Empty(t, got[0].Description)
		assert.Nil(t, got[0].Recurring)
	})

	t.Run("RoundTripsAllFields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := sampleEvent("full", 4)
		require.NoError(t, s.Save(ctx, ev))

		got, err := s.Fetch(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, ev, got[0])
	})

	t.Run("FetchReturnsCopies", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := sampleEvent("copy", 1)
		require.NoError(t, s.Save(ctx, ev))

		got, err := s.Fetch(ctx)
		require.NoError(t, err)
		got[0].Title = "mutated"
		got[0].Tasks[0].Done = true

		again, err := s.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, "copy", again[0].Title)
		assert.False(t, again[0].Tasks[0].Done)
	})

	t.Run("DeleteRemovesByIDAndIgnoresUnknown", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := sampleEvent("a", 1)
		b := sampleEvent("b", 2)
		require.NoError(t, s.Save(ctx, a))
		require.NoError(t, s.Save(ctx, b))

		require.NoError(t, s.Delete(ctx, a.ID))
		require.NoError(t, s.Delete(ctx, "does-not-exist"))

		got, err := s.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{b.ID}, ids(got))
	})

	t.Run("ClearEmptiesCollection", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Clear(ctx))
		require.NoError(t, s.Save(ctx, sampleEvent("a", 1)))
		require.NoError(t, s.Save(ctx, sampleEvent("b", 2)))
		require.NoError(t, s.Clear(ctx))

		got, err := s.Fetch(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Settings", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, ok, err := s.GetSetting(ctx, "daily_summary_time")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.SetSetting(ctx, "daily_summary_time", "09:00"))
		require.NoError(t, s.SetSetting(ctx, "daily_summary_time", "18:30"))

		v, ok, err := s.GetSetting(ctx, "daily_summary_time")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "18:30", v)
	})
}

func sampleEvent(title string, hours int) model.Event {
	ev := model.NewEvent(title, base.Add(time.Duration(hours)*time.Hour), base)
	start := base.Add(-time.Hour)
	until := base.Add(90 * 24 * time.Hour)
	due := base.Add(30 * time.Minute)
	ev.Description = "notes for " + title
	ev.StartAt = &start
	ev.Timezone = "Asia/Seoul"
	ev.Recurring = &model.Recurring{Frequency: model.FrequencyWeekly, Until: &until}
	ev.Tasks = []model.Task{{ID: "t1", Text: "prepare", Date: &due}}
	ev.Reminders = []model.Reminder{{ID: "r1", OffsetMinutesFromTarget: -60}, {ID: "r2", OffsetMinutesFromTarget: -1440, TimeOfDay: "09:00"}}
	ev.Category = "exam"
	ev.Icon = "📝"
	return ev
}

func ids(events []model.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	sort.Strings(out)
	return out
}

package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycounter/internal/model"
	"daycounter/internal/notify"
	"daycounter/internal/repository"
	"daycounter/internal/storage/memory"
)

func summaryEvents() (due, soon, later, archived, optedOut model.Event) {
	due = model.NewEvent("Exam", base.Add(10*time.Hour), base)
	soon = model.NewEvent("Hackathon", base.Add(48*time.Hour), base)
	later = model.NewEvent("Trip", base.Add(96*time.Hour), base)
	archived = model.NewEvent("Old", base.Add(2*time.Hour), base)
	archived.IsArchived = true
	optedOut = model.NewEvent("Quiet", base.Add(3*time.Hour), base)
	optedOut.NotifyDailySummary = false
	return
}

func TestBuildSummary(t *testing.T) {
	due, soon, later, archived, optedOut := summaryEvents()
	past := model.NewEvent("Past", base.Add(-72*time.Hour), base)

	s := BuildSummary([]model.Event{later, archived, soon, optedOut, due, past}, base, time.UTC)

	require.Len(t, s.DueToday, 1)
	assert.Equal(t, due.ID, s.DueToday[0].ID)
	require.Len(t, s.Upcoming, 2)
	assert.Equal(t, soon.ID, s.Upcoming[0].ID)
	assert.Equal(t, later.ID, s.Upcoming[1].ID)
	assert.False(t, s.Empty())
}

func TestBuildSummary_UpcomingCapped(t *testing.T) {
	var events []model.Event
	for i := 1; i <= 5; i++ {
		events = append(events, model.NewEvent("e", base.Add(time.Duration(i)*24*time.Hour), base))
	}
	s := BuildSummary(events, base, time.UTC)
	assert.Empty(t, s.DueToday)
	assert.Len(t, s.Upcoming, 3)
}

func TestBuildSummary_Empty(t *testing.T) {
	_, _, _, archived, optedOut := summaryEvents()
	assert.True(t, BuildSummary([]model.Event{archived, optedOut}, base, time.UTC).Empty())
	assert.True(t, BuildSummary(nil, base, time.UTC).Empty())
}

func TestComposeSummary(t *testing.T) {
	due, soon, _, _, _ := summaryEvents()
	due.Category = "exam"

	body := ComposeSummary(Summary{Now: base, DueToday: []model.Event{due}, Upcoming: []model.Event{soon}})

	assert.Equal(t, "Due today: 📝 Exam\nUpcoming: 📅 Hackathon (2d 0h remaining)", body)
	assert.Equal(t, "", ComposeSummary(Summary{Now: base}))
}

func TestNextRun(t *testing.T) {
	next, err := NextRun("09:00", base, time.UTC)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)), next)

	next, err = NextRun("07:30", base, time.UTC)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2026, 5, 11, 7, 30, 0, 0, time.UTC)), next)

	// 08:00 UTC is 17:00 in +09:00, so 09:00 there is tomorrow.
	loc := time.FixedZone("+09:00", 9*3600)
	next, err = NextRun("09:00", base, loc)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)), next)

	_, err = NextRun("9am", base, time.UTC)
	assert.Error(t, err)
}

func newTestSummary(t *testing.T, store *memory.Store, granted bool) (*DailySummary, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	alarms := newFakeAlarms()
	alarms.granted = granted
	d := NewDailySummary(store, store, alarms, rec, time.UTC)
	d.now = func() time.Time { return base }
	t.Cleanup(d.Stop)
	return d, rec
}

func TestDailySummary_InitDefaultsAndPersisted(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	d, _ := newTestSummary(t, store, true)

	require.NoError(t, d.Init(ctx, ""))
	assert.Equal(t, DefaultDailySummaryTime, d.Time())

	require.NoError(t, store.SetSetting(ctx, SettingDailySummaryTime, "21:15"))
	require.NoError(t, d.Init(ctx, "08:00"))
	assert.Equal(t, "21:15", d.Time())
}

func TestDailySummary_SetTime(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	d, _ := newTestSummary(t, store, true)
	require.NoError(t, d.Init(ctx, "09:00"))

	require.NoError(t, d.SetTime(ctx, "18:45"))
	assert.Equal(t, "18:45", d.Time())
	stored, ok, err := store.GetSetting(ctx, SettingDailySummaryTime)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "18:45", stored)

	next, err := d.NextRun(base)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2026, 5, 10, 18, 45, 0, 0, time.UTC)), next)

	// Exactly one cron entry after replacing the time.
	assert.Len(t, d.cron.Entries(), 1)

	assert.Error(t, d.SetTime(ctx, "25:00"))
	assert.Equal(t, "18:45", d.Time())
}

type failingSettings struct{}

func (failingSettings) GetSetting(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (failingSettings) SetSetting(context.Context, string, string) error {
	return repository.Wrap("set_setting", errors.New("disk full"))
}

func TestDailySummary_SetTimeStorageErrorKeepsSchedule(t *testing.T) {
	ctx := context.Background()
	d := NewDailySummary(memory.New(), failingSettings{}, newFakeAlarms(), &notify.Recorder{}, time.UTC)
	t.Cleanup(d.Stop)
	require.NoError(t, d.Init(ctx, "09:00"))

	err := d.SetTime(ctx, "10:00")
	var se *repository.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "09:00", d.Time())
}

func TestDailySummary_Run(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	due, soon, later, archived, optedOut := summaryEvents()
	for _, ev := range []model.Event{due, soon, later, archived, optedOut} {
		require.NoError(t, store.Save(ctx, ev))
	}
	d, rec := newTestSummary(t, store, true)

	sent, err := d.Run(ctx)
	require.NoError(t, err)
	require.True(t, sent)

	got := rec.All()
	require.Len(t, got, 1)
	assert.Equal(t, DailySummaryKey, got[0].Key)
	assert.Contains(t, got[0].Body, "Due today: 📅 Exam")
	assert.Contains(t, got[0].Body, "Hackathon")
	assert.NotContains(t, got[0].Body, "Old")
	assert.NotContains(t, got[0].Body, "Quiet")
}

func TestDailySummary_RunNothingToReport(t *testing.T) {
	d, rec := newTestSummary(t, memory.New(), true)

	sent, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, rec.All())
}

func TestDailySummary_RunWithoutPermission(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	due, _, _, _, _ := summaryEvents()
	require.NoError(t, store.Save(ctx, due))
	d, rec := newTestSummary(t, store, false)

	sent, err := d.Run(ctx)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, rec.All())
}

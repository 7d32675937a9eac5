package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycounter/internal/model"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func fullEvent() model.Event {
	start := now.Add(-24 * time.Hour)
	until := now.Add(60 * 24 * time.Hour)
	due := now.Add(12 * time.Hour)

	ev := model.NewEvent("Hackathon", now.Add(72*time.Hour), now.Add(-48*time.Hour))
	ev.Description = "Build something, ship it"
	ev.StartAt = &start
	ev.Timezone = "Asia/Seoul"
	ev.Recurring = &model.Recurring{Frequency: model.FrequencyWeekly, Until: &until}
	ev.Tasks = []model.Task{{ID: "t1", Text: "team up", Done: true, Date: &due}, {ID: "t2", Text: "demo"}}
	ev.Reminders = []model.Reminder{{ID: "r1", OffsetMinutesFromTarget: -1440}, {ID: "r2", OffsetMinutesFromTarget: -60, TimeOfDay: "08:00"}}
	ev.Color = "#8B5CF6"
	ev.Icon = "💻"
	ev.Category = "hackathon"
	ev.NotifyDailySummary = false
	return ev
}

func TestJSON_RoundTrip(t *testing.T) {
	minimal := model.NewEvent("Minimal", now.Add(time.Hour), now)
	archived := model.NewEvent("Archived", now.Add(-time.Hour), now.Add(-2*time.Hour))
	archived.IsArchived = true
	events := []model.Event{fullEvent(), minimal, archived}

	data, err := ExportJSON(events)
	require.NoError(t, err)

	got, err := ImportJSON(data)
	require.NoError(t, err)
	assert.Equal(t, events, got)
}

func TestExportJSON_Format(t *testing.T) {
	data, err := ExportJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	ev := model.NewEvent("x", now, now)
	ev.ID = "id-1"
	data, err = ExportJSON([]model.Event{ev})
	require.NoError(t, err)
	assert.Contains(t, string(data), "[\n  {\n    \"id\": \"id-1\",")
	assert.Contains(t, string(data), `"targetAt": "2026-05-10T12:00:00Z"`)
	assert.Contains(t, string(data), `"notifyDailySummary": true`)
	assert.NotContains(t, string(data), `"startAt"`)
}

func TestImportJSON_Empty(t *testing.T) {
	got, err := ImportJSON([]byte(" [ ] "))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestImportJSON_RejectsNonArray(t *testing.T) {
	for _, in := range []string{``, `   `, `{"id":"x"}`, `null`, `"events"`, `42`, `[`, `{`, `[1, 2]`, `not json`} {
		t.Run(in, func(t *testing.T) {
			_, err := ImportJSON([]byte(in))
			require.Error(t, err)
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "%T", err)
			assert.Equal(t, KindJSON, fe.Format)
		})
	}
}

func TestImportJSON_DoesNotValidateFields(t *testing.T) {
	got, err := ImportJSON([]byte(`[{"title": ""}, {"id": "a", "color": "not-a-color"}]`))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Empty(t, got[0].ID)
	assert.Equal(t, "not-a-color", got[1].Color)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "daycounter-events-2026-05-10.json", Filename(KindJSON, now))
	assert.Equal(t, "daycounter-events-2026-05-10.ics", Filename(KindICS, now.In(time.FixedZone("-05:00", -5*3600))))
}

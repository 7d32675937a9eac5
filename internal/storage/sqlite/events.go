package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"daycounter/internal/model"
	"daycounter/internal/repository"
)

// Fixed-width UTC layout so stored timestamps sort lexically and round-trip
// to the nanosecond.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type eventRow struct {
	ID                 string         `db:"id"`
	Title              string         `db:"title"`
	Description        sql.NullString `db:"description"`
	CreatedAt          string         `db:"created_at"`
	StartAt            sql.NullString `db:"start_at"`
	TargetAt           string         `db:"target_at"`
	Timezone           sql.NullString `db:"timezone"`
	Recurring          sql.NullString `db:"recurring"`
	Tasks              string         `db:"tasks"`
	Reminders          string         `db:"reminders"`
	Color              string         `db:"color"`
	Icon               sql.NullString `db:"icon"`
	Category           sql.NullString `db:"category"`
	IsArchived         bool           `db:"is_archived"`
	NotifyDailySummary bool           `db:"notify_daily_summary"`
}

const upsertEvent = `
	INSERT INTO events (
		id, title, description, created_at, start_at, target_at, timezone,
		recurring, tasks, reminders, color, icon, category, is_archived, notify_daily_summary
	) VALUES (
		:id, :title, :description, :created_at, :start_at, :target_at, :timezone,
		:recurring, :tasks, :reminders, :color, :icon, :category, :is_archived, :notify_daily_summary
	)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		created_at = excluded.created_at,
		start_at = excluded.start_at,
		target_at = excluded.target_at,
		timezone = excluded.timezone,
		recurring = excluded.recurring,
		tasks = excluded.tasks,
		reminders = excluded.reminders,
		color = excluded.color,
		icon = excluded.icon,
		category = excluded.category,
		is_archived = excluded.is_archived,
		notify_daily_summary = excluded.notify_daily_summary`

func (s *Store) Save(ctx context.Context, ev model.Event) error {
	row, err := toRow(ev)
	if err != nil {
		return repository.Wrap("save", err)
	}
	if _, err := s.db.NamedExecContext(ctx, upsertEvent, row); err != nil {
		return repository.Wrap("save", fmt.Errorf("upsert event %s: %w", ev.ID, err))
	}
	return nil
}

func (s *Store) Fetch(ctx context.Context) ([]model.Event, error) {
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM events ORDER BY target_at ASC, id ASC`); err != nil {
		return nil, repository.Wrap("fetch", fmt.Errorf("list events: %w", err))
	}
	events := make([]model.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := fromRow(r)
		if err != nil {
			return nil, repository.Wrap("fetch", fmt.Errorf("decode event %s: %w", r.ID, err))
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return repository.Wrap("delete", fmt.Errorf("delete event %s: %w", id, err))
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return repository.Wrap("clear", err)
	}
	return nil
}

func toRow(ev model.Event) (eventRow, error) {
	tasks := ev.Tasks
	if tasks == nil {
		tasks = []model.Task{}
	}
	tasksJSON, err := json.Marshal(tasks)
	if err != nil {
		return eventRow{}, fmt.Errorf("encode tasks: %w", err)
	}
	reminders := ev.Reminders
	if reminders == nil {
		reminders = []model.Reminder{}
	}
	remindersJSON, err := json.Marshal(reminders)
	if err != nil {
		return eventRow{}, fmt.Errorf("encode reminders: %w", err)
	}

	row := eventRow{
		ID:                 ev.ID,
		Title:              ev.Title,
		Description:        nullString(ev.Description),
		CreatedAt:          formatTime(ev.CreatedAt),
		TargetAt:           formatTime(ev.TargetAt),
		Timezone:           nullString(ev.Timezone),
		Tasks:              string(tasksJSON),
		Reminders:          string(remindersJSON),
		Color:              ev.Color,
		Icon:               nullString(ev.Icon),
		Category:           nullString(ev.Category),
		IsArchived:         ev.IsArchived,
		NotifyDailySummary: ev.NotifyDailySummary,
	}
	if ev.StartAt != nil {
		row.StartAt = nullString(formatTime(*ev.StartAt))
	}
	if ev.Recurring != nil {
		b, err := json.Marshal(ev.Recurring)
		if err != nil {
			return eventRow{}, fmt.Errorf("encode recurring: %w", err)
		}
		row.Recurring = nullString(string(b))
	}
	return row, nil
}

func fromRow(r eventRow) (model.Event, error) {
	ev := model.Event{
		ID:                 r.ID,
		Title:              r.Title,
		Description:        r.Description.String,
		Timezone:           r.Timezone.String,
		Color:              r.Color,
		Icon:               r.Icon.String,
		Category:           r.Category.String,
		IsArchived:         r.IsArchived,
		NotifyDailySummary: r.NotifyDailySummary,
	}

	var err error
	if ev.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return model.Event{}, fmt.Errorf("created_at: %w", err)
	}
	if ev.TargetAt, err = parseTime(r.TargetAt); err != nil {
		return model.Event{}, fmt.Errorf("target_at: %w", err)
	}
	if r.StartAt.Valid {
		t, err := parseTime(r.StartAt.String)
		if err != nil {
			return model.Event{}, fmt.Errorf("start_at: %w", err)
		}
		ev.StartAt = &t
	}
	if r.Recurring.Valid {
		var rec model.Recurring
		if err := json.Unmarshal([]byte(r.Recurring.String), &rec); err != nil {
			return model.Event{}, fmt.Errorf("recurring: %w", err)
		}
		ev.Recurring = &rec
	}
	if err := json.Unmarshal([]byte(r.Tasks), &ev.Tasks); err != nil {
		return model.Event{}, fmt.Errorf("tasks: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Reminders), &ev.Reminders); err != nil {
		return model.Event{}, fmt.Errorf("reminders: %w", err)
	}
	if ev.Tasks == nil {
		ev.Tasks = []model.Task{}
	}
	if ev.Reminders == nil {
		ev.Reminders = []model.Reminder{}
	}
	return ev, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

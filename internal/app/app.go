// Package app holds the in-memory event collection and routes every
// mutation through the repository and the reminder scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"daycounter/internal/codec"
	"daycounter/internal/countdown"
	"daycounter/internal/fetch"
	appLog "daycounter/internal/log"
	"daycounter/internal/model"
	"daycounter/internal/reminder"
	"daycounter/internal/repository"
)

var (
	ErrNotFound = errors.New("event not found")
	ErrExists   = errors.New("event already exists")
)

// App is the single owner of the loaded events. A failed repository call
// leaves the collection as it was.
type App struct {
	repo      repository.EventRepository
	scheduler *reminder.Scheduler
	summary   *reminder.DailySummary
	now       func() time.Time

	mu     sync.Mutex
	events []model.Event
}

// New wires an App. scheduler and summary may be nil when reminders are
// not wanted (one-shot CLI commands).
func New(repo repository.EventRepository, scheduler *reminder.Scheduler, summary *reminder.DailySummary) *App {
	return &App{
		repo:      repo,
		scheduler: scheduler,
		summary:   summary,
		now:       time.Now,
		events:    []model.Event{},
	}
}

// Load replaces the collection with the repository contents and schedules
// their reminders.
func (a *App) Load(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.refreshLocked(ctx); err != nil {
		return err
	}
	if a.scheduler != nil {
		if err := a.scheduler.SyncAll(ctx, a.events); err != nil {
			appLog.Error("reminder sync on load failed", err)
		}
	}
	appLog.Info("events loaded", "count", len(a.events))
	return nil
}

// Events returns a copy of the collection.
func (a *App) Events() []model.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.Event, len(a.events))
	for i, ev := range a.events {
		out[i] = ev.Clone()
	}
	return out
}

func (a *App) Get(id string) (model.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.indexLocked(id)
	if i < 0 {
		return model.Event{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a.events[i].Clone(), nil
}

// Add fills defaults, validates and stores a new event. An id that is
// already taken is rejected with ErrExists.
func (a *App) Add(ctx context.Context, ev model.Event) (model.Event, error) {
	ev.FillDefaults(a.now())
	if err := ev.Validate(); err != nil {
		return model.Event{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.indexLocked(ev.ID) >= 0 {
		return model.Event{}, fmt.Errorf("%w: %s", ErrExists, ev.ID)
	}
	if err := a.saveLocked(ctx, ev); err != nil {
		return model.Event{}, err
	}
	a.syncLocked(ctx, ev)
	return ev.Clone(), nil
}

// Update replaces a stored event wholesale and reschedules its reminders.
// CreatedAt always keeps its stored value.
func (a *App) Update(ctx context.Context, ev model.Event) (model.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.indexLocked(ev.ID)
	if i < 0 {
		return model.Event{}, fmt.Errorf("%w: %s", ErrNotFound, ev.ID)
	}
	ev.CreatedAt = a.events[i].CreatedAt
	ev.FillDefaults(a.now())
	if err := ev.Validate(); err != nil {
		return model.Event{}, err
	}

	if err := a.saveLocked(ctx, ev); err != nil {
		return model.Event{}, err
	}
	a.syncLocked(ctx, ev)
	return ev.Clone(), nil
}

// Delete removes the event and cancels its reminders.
func (a *App) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.indexLocked(id) < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := a.repo.Delete(ctx, id); err != nil {
		return err
	}
	if a.scheduler != nil {
		if err := a.scheduler.Cancel(ctx, id); err != nil {
			appLog.Error("cancel reminders failed", err, "event_id", id)
		}
	}
	return a.refreshLocked(ctx)
}

// ClearAll removes every event and every pending alarm.
func (a *App) ClearAll(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.repo.Clear(ctx); err != nil {
		return err
	}
	if a.scheduler != nil {
		if err := a.scheduler.CancelAll(ctx); err != nil {
			appLog.Error("cancel all reminders failed", err)
		}
	}
	return a.refreshLocked(ctx)
}

// AddTask appends an unchecked task to the event and stores it.
func (a *App) AddTask(ctx context.Context, eventID, text string) (model.Task, error) {
	if strings.TrimSpace(text) == "" {
		return model.Task{}, fmt.Errorf("%w: task text is empty", model.ErrInvalidEvent)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.indexLocked(eventID)
	if i < 0 {
		return model.Task{}, fmt.Errorf("%w: %s", ErrNotFound, eventID)
	}
	ev := a.events[i].Clone()
	task := ev.AddTask(text)
	if err := a.saveLocked(ctx, ev); err != nil {
		return model.Task{}, err
	}
	a.syncLocked(ctx, ev)
	return task, nil
}

// ToggleTask flips the done flag of one task and stores the event.
func (a *App) ToggleTask(ctx context.Context, eventID, taskID string) (model.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.indexLocked(eventID)
	if i < 0 {
		return model.Event{}, fmt.Errorf("%w: %s", ErrNotFound, eventID)
	}
	ev := a.events[i].Clone()
	if !ev.ToggleTask(taskID) {
		return model.Event{}, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	if err := a.saveLocked(ctx, ev); err != nil {
		return model.Event{}, err
	}
	a.syncLocked(ctx, ev)
	return ev.Clone(), nil
}

// Upcoming lists active future events, soonest first.
func (a *App) Upcoming(limit int) []model.Event {
	return countdown.Upcoming(a.Events(), a.now(), limit)
}

func (a *App) Countdown(id string) (countdown.Countdown, error) {
	ev, err := a.Get(id)
	if err != nil {
		return countdown.Countdown{}, err
	}
	return countdown.ForEvent(ev, a.now()), nil
}

// ImportJSON upserts every event of a JSON backup. It returns the number of
// events imported.
func (a *App) ImportJSON(ctx context.Context, data []byte) (int, error) {
	events, err := codec.ImportJSON(data)
	if err != nil {
		return 0, err
	}
	return a.importEvents(ctx, "json", events)
}

// ImportICS upserts every complete VEVENT of an iCalendar document.
func (a *App) ImportICS(ctx context.Context, data []byte) (int, error) {
	events, err := codec.ParseICS(data, a.now())
	if err != nil {
		return 0, err
	}
	return a.importEvents(ctx, "ics", events)
}

// ImportFetched imports a downloaded backup, choosing the codec from the
// response content type or the URL extension.
func (a *App) ImportFetched(ctx context.Context, res fetch.Result) (int, error) {
	if res.IsICS() {
		return a.ImportICS(ctx, res.Body)
	}
	return a.ImportJSON(ctx, res.Body)
}

func (a *App) importEvents(ctx context.Context, format string, events []model.Event) (int, error) {
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range events {
		events[i].FillDefaults(now)
		if err := a.repo.Save(ctx, events[i]); err != nil {
			return 0, err
		}
	}
	if err := a.refreshLocked(ctx); err != nil {
		return 0, err
	}
	for _, ev := range events {
		a.syncLocked(ctx, ev)
	}
	appLog.Info("events imported", "format", format, "count", len(events))
	return len(events), nil
}

func (a *App) ExportJSON() ([]byte, error) {
	return codec.ExportJSON(a.Events())
}

func (a *App) ExportICS() string {
	return codec.ExportICS(a.Events(), a.now())
}

// DailySummaryTime returns the scheduled "HH:MM", or the default when no
// summary job is wired.
func (a *App) DailySummaryTime() string {
	if a.summary == nil {
		return reminder.DefaultDailySummaryTime
	}
	return a.summary.Time()
}

func (a *App) SetDailySummaryTime(ctx context.Context, clock string) error {
	if a.summary == nil {
		return errors.New("daily summary not configured")
	}
	return a.summary.SetTime(ctx, clock)
}

// NextDailySummary reports when the summary fires next.
func (a *App) NextDailySummary() (time.Time, error) {
	if a.summary == nil {
		return time.Time{}, errors.New("daily summary not configured")
	}
	return a.summary.NextRun(a.now())
}

func (a *App) saveLocked(ctx context.Context, ev model.Event) error {
	if err := a.repo.Save(ctx, ev); err != nil {
		return err
	}
	return a.refreshLocked(ctx)
}

func (a *App) refreshLocked(ctx context.Context) error {
	events, err := a.repo.Fetch(ctx)
	if err != nil {
		return err
	}
	if events == nil {
		events = []model.Event{}
	}
	a.events = events
	return nil
}

func (a *App) syncLocked(ctx context.Context, ev model.Event) {
	if a.scheduler == nil {
		return
	}
	if err := a.scheduler.Sync(ctx, ev); err != nil {
		appLog.Error("reminder sync failed", err, "event_id", ev.ID)
	}
}

func (a *App) indexLocked(id string) int {
	for i := range a.events {
		if a.events[i].ID == id {
			return i
		}
	}
	return -1
}

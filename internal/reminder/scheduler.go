package reminder

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"daycounter/internal/countdown"
	appLog "daycounter/internal/log"
	"daycounter/internal/model"
	"daycounter/internal/notify"
)

var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// Key identifies the alarm of one reminder of one event. Colons and percent
// signs inside the ids are escaped so distinct pairs never share a key.
func Key(eventID, reminderID string) string {
	return keyEscaper.Replace(eventID) + ":" + keyEscaper.Replace(reminderID)
}

// FireTime is the target time shifted by the reminder offset. When the
// reminder carries a time of day, the clock time on that day (in loc) is
// replaced by it.
func FireTime(ev model.Event, r model.Reminder, loc *time.Location) (time.Time, error) {
	at := ev.TargetAt.Add(time.Duration(r.OffsetMinutesFromTarget) * time.Minute)
	if r.TimeOfDay == "" {
		return at, nil
	}
	h, m, err := model.ParseClock(r.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	local := at.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), h, m, 0, 0, loc), nil
}

// Scheduler keeps the alarms of each event in step with its reminder list.
type Scheduler struct {
	alarms AlarmService
	loc    *time.Location
	now    func() time.Time

	mu   sync.Mutex
	keys map[string][]string // event id -> registered alarm keys
}

func NewScheduler(alarms AlarmService, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		alarms: alarms,
		loc:    loc,
		now:    time.Now,
		keys:   make(map[string][]string),
	}
}

// Sync cancels every alarm previously registered for ev and registers one
// per reminder whose fire time is still ahead. Past fire times are skipped.
// Archived events end up with no alarms. Without notification permission
// Sync only cancels.
func (s *Scheduler) Sync(ctx context.Context, ev model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cancelLocked(ctx, ev.ID); err != nil {
		return err
	}
	if ev.IsArchived || len(ev.Reminders) == 0 {
		return nil
	}

	granted, err := s.alarms.PermissionStatus(ctx)
	if err != nil {
		return fmt.Errorf("permission status: %w", err)
	}
	if !granted {
		appLog.Debug("reminders not scheduled; permission not granted", "event_id", ev.ID)
		return nil
	}

	now := s.now()
	for _, r := range ev.Reminders {
		fireAt, err := FireTime(ev, r, s.loc)
		if err != nil {
			appLog.Error("skipping reminder with bad time of day", err, "event_id", ev.ID, "reminder_id", r.ID)
			continue
		}
		if !fireAt.After(now) {
			continue
		}

		key := Key(ev.ID, r.ID)
		if err := s.alarms.ScheduleOneShot(ctx, key, fireAt, reminderNotification(ev, fireAt)); err != nil {
			if errors.Is(err, ErrPermissionDenied) {
				appLog.Debug("reminder not scheduled; permission denied", "key", key)
				return nil
			}
			return fmt.Errorf("schedule %s: %w", key, err)
		}
		if !slices.Contains(s.keys[ev.ID], key) {
			s.keys[ev.ID] = append(s.keys[ev.ID], key)
		}
		appLog.Debug("reminder scheduled", "key", key, "fire_at", fireAt.Format(time.RFC3339))
	}
	return nil
}

// SyncAll syncs every event, continuing past failures.
func (s *Scheduler) SyncAll(ctx context.Context, events []model.Event) error {
	var errs []error
	for _, ev := range events {
		if err := s.Sync(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Cancel drops every alarm registered for the event.
func (s *Scheduler) Cancel(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(ctx, eventID)
}

// CancelAll drops every alarm the service holds.
func (s *Scheduler) CancelAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = make(map[string][]string)
	return s.alarms.CancelAll(ctx)
}

// Active returns the keys registered for the event by the last Sync. Keys
// of alarms that already fired stay listed until the next Sync or Cancel.
func (s *Scheduler) Active(eventID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys[eventID]...)
}

func (s *Scheduler) cancelLocked(ctx context.Context, eventID string) error {
	var errs []error
	for _, key := range s.keys[eventID] {
		if err := s.alarms.Cancel(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("cancel %s: %w", key, err))
		}
	}
	delete(s.keys, eventID)
	return errors.Join(errs...)
}

func reminderNotification(ev model.Event, fireAt time.Time) notify.Notification {
	c := countdown.Calculate(ev.TargetAt, ev.EffectiveStart(), fireAt)
	return notify.Notification{
		EventID: ev.ID,
		Title:   ev.DisplayIcon() + " " + ev.Title,
		Body:    countdown.Format(c),
	}
}

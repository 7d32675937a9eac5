package reminder

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	appLog "daycounter/internal/log"
	"daycounter/internal/notify"
)

// ErrPermissionDenied is returned by an AlarmService that may not deliver
// notifications. The scheduler treats it as "nothing to do".
var ErrPermissionDenied = errors.New("notification permission denied")

// AlarmService registers one-shot alarms that deliver a payload at an
// absolute time. Cancel and CancelAll must be idempotent.
type AlarmService interface {
	ScheduleOneShot(ctx context.Context, key string, when time.Time, payload notify.Notification) error
	Cancel(ctx context.Context, key string) error
	CancelAll(ctx context.Context) error
	RequestPermission(ctx context.Context) (bool, error)
	PermissionStatus(ctx context.Context) (bool, error)
}

type timerEntry struct {
	timer *time.Timer
	when  time.Time
}

// TimerAlarms is an in-process AlarmService backed by time.AfterFunc. Fired
// payloads go to the notifier. Permission is a plain flag, usually taken
// from config.
type TimerAlarms struct {
	notifier notify.Notifier
	now      func() time.Time

	mu      sync.Mutex
	granted bool
	timers  map[string]*timerEntry
}

func NewTimerAlarms(notifier notify.Notifier, granted bool) *TimerAlarms {
	return &TimerAlarms{
		notifier: notifier,
		now:      time.Now,
		granted:  granted,
		timers:   make(map[string]*timerEntry),
	}
}

// ScheduleOneShot registers (or replaces) the alarm for key. A when in the
// past fires immediately.
func (a *TimerAlarms) ScheduleOneShot(_ context.Context, key string, when time.Time, payload notify.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.granted {
		return ErrPermissionDenied
	}
	if old, ok := a.timers[key]; ok {
		old.timer.Stop()
	}

	e := &timerEntry{when: when}
	a.timers[key] = e
	// fire takes a.mu, so it cannot observe e before e.timer is set.
	e.timer = time.AfterFunc(when.Sub(a.now()), func() { a.fire(key, e, payload) })
	return nil
}

func (a *TimerAlarms) fire(key string, e *timerEntry, payload notify.Notification) {
	a.mu.Lock()
	if a.timers[key] != e {
		// Replaced or cancelled after the timer had already started.
		a.mu.Unlock()
		return
	}
	delete(a.timers, key)
	a.mu.Unlock()

	payload.Key = key
	payload.FiredAt = a.now()
	if err := a.notifier.Notify(context.Background(), payload); err != nil {
		appLog.Error("alarm delivery failed", err, "key", key)
	}
}

func (a *TimerAlarms) Cancel(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.timers[key]; ok {
		e.timer.Stop()
		delete(a.timers, key)
	}
	return nil
}

func (a *TimerAlarms) CancelAll(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.timers {
		e.timer.Stop()
	}
	a.timers = make(map[string]*timerEntry)
	return nil
}

// RequestPermission reports the configured permission; there is no prompt
// to show in-process.
func (a *TimerAlarms) RequestPermission(ctx context.Context) (bool, error) {
	return a.PermissionStatus(ctx)
}

func (a *TimerAlarms) PermissionStatus(_ context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.granted, nil
}

// SetPermission toggles delivery. Revoking cancels every pending alarm.
func (a *TimerAlarms) SetPermission(granted bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.granted = granted
	if granted {
		return
	}
	for _, e := range a.timers {
		e.timer.Stop()
	}
	a.timers = make(map[string]*timerEntry)
}

// Pending lists the keys of alarms that have not fired, sorted.
func (a *TimerAlarms) Pending() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]string, 0, len(a.timers))
	for k := range a.timers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

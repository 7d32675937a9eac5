package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultColor is the color assigned to events created without one.
const DefaultColor = "#3B82F6"

// ErrInvalidEvent is returned by Validate for events that violate the model
// invariants.
var ErrInvalidEvent = errors.New("invalid event")

// Frequency is the repetition unit of a Recurring rule.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Recurring is stored with the event but never expanded into occurrences
// by the core.
type Recurring struct {
	Frequency Frequency  `json:"frequency"`
	Until     *time.Time `json:"until,omitempty"`
}

// Task is a checklist item attached to an event.
type Task struct {
	ID   string     `json:"id"`
	Text string     `json:"text"`
	Done bool       `json:"done"`
	Date *time.Time `json:"date,omitempty"`
}

// Reminder fires OffsetMinutesFromTarget minutes relative to the event's
// target time (negative = before). TimeOfDay, when set ("HH:MM"), pins the
// fire time to that wall-clock time on the resulting day.
type Reminder struct {
	ID                      string `json:"id"`
	OffsetMinutesFromTarget int    `json:"offsetMinutesFromTarget"`
	TimeOfDay               string `json:"timeOfDay,omitempty"`
}

// Event is the central entity: something with a target date to count down to.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	StartAt   *time.Time `json:"startAt,omitempty"`
	TargetAt  time.Time  `json:"targetAt"`

	// Timezone is a display annotation only; all arithmetic is on instants.
	Timezone string `json:"timezone,omitempty"`

	Recurring *Recurring `json:"recurring,omitempty"`
	Tasks     []Task     `json:"tasks"`
	Reminders []Reminder `json:"reminders"`

	Color    string `json:"color"`
	Icon     string `json:"icon,omitempty"`
	Category string `json:"category,omitempty"`

	IsArchived         bool `json:"isArchived"`
	NotifyDailySummary bool `json:"notifyDailySummary"`
}

// NewEvent builds an event with the factory defaults filled in.
func NewEvent(title string, targetAt, now time.Time) Event {
	return Event{
		ID:                 uuid.NewString(),
		Title:              strings.TrimSpace(title),
		CreatedAt:          now.UTC(),
		TargetAt:           targetAt.UTC(),
		Tasks:              []Task{},
		Reminders:          []Reminder{},
		Color:              DefaultColor,
		IsArchived:         false,
		NotifyDailySummary: true,
	}
}

// FillDefaults sets defaults on fields a caller (or an import) left empty.
// It never touches fields that already hold a value.
func (e *Event) FillDefaults(now time.Time) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now.UTC()
	}
	if e.Color == "" {
		e.Color = DefaultColor
	}
	if e.Tasks == nil {
		e.Tasks = []Task{}
	}
	if e.Reminders == nil {
		e.Reminders = []Reminder{}
	}
}

// Validate checks the invariants every stored event must satisfy.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalidEvent)
	}
	if e.TargetAt.IsZero() {
		return fmt.Errorf("%w: missing targetAt", ErrInvalidEvent)
	}
	if e.Recurring != nil && !e.Recurring.Frequency.Valid() {
		return fmt.Errorf("%w: unknown recurring frequency %q", ErrInvalidEvent, e.Recurring.Frequency)
	}
	for _, r := range e.Reminders {
		if r.TimeOfDay == "" {
			continue
		}
		if _, _, err := ParseClock(r.TimeOfDay); err != nil {
			return fmt.Errorf("%w: reminder %s: %v", ErrInvalidEvent, r.ID, err)
		}
	}
	return nil
}

// EffectiveStart is the instant progress is measured from: StartAt when set,
// otherwise CreatedAt.
func (e Event) EffectiveStart() time.Time {
	if e.StartAt != nil && !e.StartAt.IsZero() {
		return *e.StartAt
	}
	return e.CreatedAt
}

// DisplayIcon returns the explicit icon, else the category icon, else the
// default icon.
func (e Event) DisplayIcon() string {
	if e.Icon != "" {
		return e.Icon
	}
	return IconFor(e.Category)
}

// AddTask appends a new unchecked task and returns it.
func (e *Event) AddTask(text string) Task {
	t := Task{ID: uuid.NewString(), Text: strings.TrimSpace(text)}
	e.Tasks = append(e.Tasks, t)
	return t
}

// ToggleTask flips the done flag of the task with the given id. It reports
// whether a task was found.
func (e *Event) ToggleTask(id string) bool {
	for i := range e.Tasks {
		if e.Tasks[i].ID == id {
			e.Tasks[i].Done = !e.Tasks[i].Done
			return true
		}
	}
	return false
}

// CompletedTasks counts tasks marked done.
func (e Event) CompletedTasks() int {
	n := 0
	for _, t := range e.Tasks {
		if t.Done {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so callers can mutate without aliasing slices
// held by a store.
func (e Event) Clone() Event {
	out := e
	if e.StartAt != nil {
		t := *e.StartAt
		out.StartAt = &t
	}
	if e.Recurring != nil {
		r := *e.Recurring
		if r.Until != nil {
			u := *r.Until
			r.Until = &u
		}
		out.Recurring = &r
	}
	if e.Tasks != nil {
		out.Tasks = make([]Task, len(e.Tasks))
		for i, t := range e.Tasks {
			if t.Date != nil {
				d := *t.Date
				t.Date = &d
			}
			out.Tasks[i] = t
		}
	}
	if e.Reminders != nil {
		out.Reminders = make([]Reminder, len(e.Reminders))
		copy(out.Reminders, e.Reminders)
	}
	return out
}

// NewReminder builds a reminder with a fresh id.
func NewReminder(offsetMinutes int) Reminder {
	return Reminder{ID: uuid.NewString(), OffsetMinutesFromTarget: offsetMinutes}
}

// Package countdown computes time-remaining breakdowns and progress for
// events. Everything here is a pure function of its inputs; callers pass the
// evaluation instant and recompute on every tick.
package countdown

import (
	"fmt"
	"slices"
	"time"

	"daycounter/internal/model"
)

// Countdown is derived from (targetAt, start, now) and never persisted.
//
// Days/Hours/Minutes/Seconds decompose the magnitude of the remaining time,
// so an overdue countdown carries positive fields and IsOverdue=true.
type Countdown struct {
	Days         int64   `json:"days"`
	Hours        int64   `json:"hours"`
	Minutes      int64   `json:"minutes"`
	Seconds      int64   `json:"seconds"`
	TotalSeconds int64   `json:"totalSeconds"`
	IsOverdue    bool    `json:"isOverdue"`
	Progress     float64 `json:"progress"`
}

// Calculate evaluates the countdown to targetAt at instant now, measuring
// progress from start.
func Calculate(targetAt, start, now time.Time) Countdown {
	remaining := targetAt.Sub(now)

	abs := remaining
	if abs < 0 {
		abs = -abs
	}
	total := int64(abs / time.Second)

	c := Countdown{
		Days:         total / 86400,
		Hours:        total % 86400 / 3600,
		Minutes:      total % 3600 / 60,
		Seconds:      total % 60,
		TotalSeconds: total,
		IsOverdue:    remaining < 0,
	}

	totalDuration := targetAt.Sub(start)
	if totalDuration > 0 {
		p := float64(totalDuration-remaining) / float64(totalDuration)
		c.Progress = min(max(p, 0), 1)
	}
	return c
}

// ForEvent evaluates ev at now, with progress starting at StartAt or, when
// absent, CreatedAt.
func ForEvent(ev model.Event, now time.Time) Countdown {
	return Calculate(ev.TargetAt, ev.EffectiveStart(), now)
}

// Format renders a countdown as a short human string.
func Format(c Countdown) string {
	switch {
	case c.IsOverdue:
		return fmt.Sprintf("Overdue by %dd %dh %dm", c.Days, c.Hours, c.Minutes)
	case c.Days > 0:
		return fmt.Sprintf("%dd %dh remaining", c.Days, c.Hours)
	case c.Hours > 0:
		return fmt.Sprintf("%dh %dm remaining", c.Hours, c.Minutes)
	default:
		return fmt.Sprintf("%dm %ds remaining", c.Minutes, c.Seconds)
	}
}

// Upcoming returns the non-archived events whose target is strictly after
// now, soonest first, truncated to limit. Events with equal targets keep
// their input order. A limit <= 0 disables truncation.
func Upcoming(events []model.Event, now time.Time, limit int) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.IsArchived || !ev.TargetAt.After(now) {
			continue
		}
		out = append(out, ev)
	}
	slices.SortStableFunc(out, func(a, b model.Event) int {
		return a.TargetAt.Compare(b.TargetAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DueOn returns the non-archived events whose target falls on the calendar
// day of day, as seen in loc. Input order is preserved.
func DueOn(events []model.Event, day time.Time, loc *time.Location) []model.Event {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := day.In(loc).Date()
	out := make([]model.Event, 0)
	for _, ev := range events {
		if ev.IsArchived {
			continue
		}
		ty, tm, td := ev.TargetAt.In(loc).Date()
		if ty == y && tm == m && td == d {
			out = append(out, ev)
		}
	}
	return out
}

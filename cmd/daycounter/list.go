package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"daycounter/internal/countdown"
	"daycounter/internal/model"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

// renderList prints active events: upcoming ones soonest first, then
// overdue ones.
func renderList(events []model.Event, now time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("DayCounter") + "\n")

	upcoming := countdown.Upcoming(events, now, 0)
	var overdue []model.Event
	for _, ev := range events {
		if !ev.IsArchived && !ev.TargetAt.After(now) {
			overdue = append(overdue, ev)
		}
	}

	if len(upcoming) == 0 && len(overdue) == 0 {
		b.WriteString(mutedStyle.Render("no active events") + "\n")
		return b.String()
	}

	for _, ev := range upcoming {
		b.WriteString(renderLine(ev, now, loc) + "\n")
	}
	for _, ev := range overdue {
		b.WriteString(renderLine(ev, now, loc) + "\n")
	}
	return b.String()
}

func renderLine(ev model.Event, now time.Time, loc *time.Location) string {
	c := countdown.ForEvent(ev, now)
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ev.Color)).Render(ev.DisplayIcon() + " " + ev.Title)
	remaining := countdown.Format(c)
	if c.IsOverdue {
		remaining = overdueStyle.Render(remaining)
	}
	due := mutedStyle.Render(ev.TargetAt.In(loc).Format("2006-01-02 15:04"))

	line := fmt.Sprintf("%s  %s  %s", title, remaining, due)
	if len(ev.Tasks) > 0 {
		line += mutedStyle.Render(fmt.Sprintf("  [%d/%d tasks]", ev.CompletedTasks(), len(ev.Tasks)))
	}
	return line
}

package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Category is a fixed event kind with its presentation defaults.
type Category struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// DefaultCategory is used for empty or unknown category names.
var DefaultCategory = Category{Name: "default", Icon: "📅", Color: DefaultColor}

// Categories lists the known categories in display order.
var Categories = []Category{
	{Name: "exam", Icon: "📝", Color: "#EF4444"},
	{Name: "hackathon", Icon: "💻", Color: "#8B5CF6"},
	{Name: "assignment", Icon: "📋", Color: "#F59E0B"},
	{Name: "deadline", Icon: "⏰", Color: "#10B981"},
	{Name: "personal", Icon: "👤", Color: "#06B6D4"},
	{Name: "work", Icon: "💼", Color: "#6366F1"},
}

// LookupCategory returns the category with that name, or DefaultCategory.
func LookupCategory(name string) Category {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range Categories {
		if c.Name == name {
			return c
		}
	}
	return DefaultCategory
}

func IconFor(category string) string  { return LookupCategory(category).Icon }
func ColorFor(category string) string { return LookupCategory(category).Color }

// ReminderPreset is a named offset offered when adding reminders.
type ReminderPreset struct {
	Label         string `json:"label"`
	OffsetMinutes int    `json:"offsetMinutes"`
}

// ReminderPresets are the offsets offered by the reminder picker.
var ReminderPresets = []ReminderPreset{
	{Label: "1 hour before", OffsetMinutes: -60},
	{Label: "1 day before", OffsetMinutes: -1440},
	{Label: "3 days before", OffsetMinutes: -4320},
	{Label: "1 week before", OffsetMinutes: -10080},
}

// ParseClock parses a 24-hour "HH:MM" string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("time of day %q: want HH:MM", s)
	}
	if !isDigits(parts[0]) || !isDigits(parts[1]) {
		return 0, 0, fmt.Errorf("time of day %q: want HH:MM", s)
	}
	hour, _ = strconv.Atoi(parts[0])
	if hour > 23 {
		return 0, 0, fmt.Errorf("time of day %q: hour out of range", s)
	}
	minute, _ = strconv.Atoi(parts[1])
	if minute > 59 {
		return 0, 0, fmt.Errorf("time of day %q: minute out of range", s)
	}
	return hour, minute, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

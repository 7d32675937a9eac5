package codec

import (
	"bytes"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	appLog "daycounter/internal/log"
	"daycounter/internal/model"
)

const (
	ProductID = "-//DayCounter//EN"
	UIDSuffix = "@daycounter.app"

	icsUTCLayout = "20060102T150405Z"
)

// ExportICS renders events as a VCALENDAR with one VEVENT each. DTSTART is
// the event's effective start and DTEND its target time, both in UTC.
func ExportICS(events []model.Event, now time.Time) string {
	cal := ical.NewCalendarFor("DayCounter")
	cal.SetProductId(ProductID)

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID + UIDSuffix)
		ve.SetDtStampTime(now)
		if !ev.CreatedAt.IsZero() {
			ve.SetCreatedTime(ev.CreatedAt)
		}
		ve.SetStartAt(ev.EffectiveStart())
		ve.SetEndAt(ev.TargetAt)
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Category != "" {
			ve.AddCategory(ev.Category)
		}
		if ev.Recurring != nil {
			if rule, ok := recurrenceRule(*ev.Recurring); ok {
				ve.AddRrule(rule)
			}
		}
	}

	return cal.Serialize(ical.WithNewLineWindows)
}

// ParseICS reads the VEVENTs of an iCalendar document. Blocks without both
// SUMMARY and DTEND are skipped. Date values other than the 16-character
// UTC form fall back to now.
func ParseICS(data []byte, now time.Time) ([]model.Event, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &FormatError{Format: KindICS, Msg: "empty document"}
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		appLog.Error("ics import parse failed", err, "bytes", len(data))
		return nil, &FormatError{Format: KindICS, Msg: "malformed calendar", Err: err}
	}

	events := make([]model.Event, 0)
	skipped := 0
	for _, ve := range cal.Events() {
		ev, ok := parseVEvent(ve, now)
		if !ok {
			skipped++
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics import parsed", "event_count", len(events), "skipped", skipped)
	return events, nil
}

func parseVEvent(ve *ical.VEvent, now time.Time) (model.Event, bool) {
	summary := propValue(ve, ical.ComponentPropertySummary)
	dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd)
	if strings.TrimSpace(summary) == "" || dtEnd == nil {
		return model.Event{}, false
	}

	ev := model.NewEvent(summary, parseICSDate(dtEnd.Value, now), now)

	if uid := strings.TrimSuffix(propValue(ve, ical.ComponentPropertyUniqueId), UIDSuffix); uid != "" {
		ev.ID = uid
	} else {
		ev.ID = uuid.NewString()
	}
	if p := ve.GetProperty(ical.ComponentPropertyCreated); p != nil {
		ev.CreatedAt = parseICSDate(p.Value, now)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		start := parseICSDate(p.Value, now)
		ev.StartAt = &start
	}
	ev.Description = propValue(ve, ical.ComponentPropertyDescription)

	if cat := propValue(ve, ical.ComponentPropertyCategories); cat != "" {
		// Only the first category is kept.
		ev.Category, _, _ = strings.Cut(cat, ",")
		ev.Color = model.ColorFor(ev.Category)
	}
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		if r, ok := parseRecurrence(p.Value); ok {
			ev.Recurring = r
		}
	}
	return ev, true
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

// parseICSDate accepts YYYYMMDDTHHMMSSZ only; anything else yields now.
func parseICSDate(v string, now time.Time) time.Time {
	v = strings.TrimSpace(v)
	if len(v) != len(icsUTCLayout) {
		return now.UTC()
	}
	t, err := time.Parse(icsUTCLayout, v)
	if err != nil {
		return now.UTC()
	}
	return t
}

var frequencies = map[model.Frequency]rrule.Frequency{
	model.FrequencyDaily:   rrule.DAILY,
	model.FrequencyWeekly:  rrule.WEEKLY,
	model.FrequencyMonthly: rrule.MONTHLY,
}

func recurrenceRule(r model.Recurring) (string, bool) {
	freq, ok := frequencies[r.Frequency]
	if !ok {
		return "", false
	}
	opt := rrule.ROption{Freq: freq}
	if r.Until != nil {
		opt.Until = r.Until.UTC()
	}
	return opt.RRuleString(), true
}

func parseRecurrence(v string) (*model.Recurring, bool) {
	opt, err := rrule.StrToROption(v)
	if err != nil {
		appLog.Debug("ignoring unparseable RRULE", "value", v, "err", err)
		return nil, false
	}
	for f, rf := range frequencies {
		if rf != opt.Freq {
			continue
		}
		out := &model.Recurring{Frequency: f}
		if !opt.Until.IsZero() {
			until := opt.Until.UTC()
			out.Until = &until
		}
		return out, true
	}
	return nil, false
}

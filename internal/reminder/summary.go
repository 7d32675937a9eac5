package reminder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"daycounter/internal/countdown"
	appLog "daycounter/internal/log"
	"daycounter/internal/model"
	"daycounter/internal/notify"
	"daycounter/internal/repository"
)

const (
	// SettingDailySummaryTime is the settings key holding "HH:MM".
	SettingDailySummaryTime = "daily_summary_time"
	DefaultDailySummaryTime = "09:00"

	// DailySummaryKey is the notification key of the daily summary.
	DailySummaryKey = "daily-summary"

	summaryUpcomingLimit = 3
)

// Summary is the content of one daily summary notification.
type Summary struct {
	Now      time.Time
	DueToday []model.Event
	Upcoming []model.Event
}

func (s Summary) Empty() bool {
	return len(s.DueToday) == 0 && len(s.Upcoming) == 0
}

// BuildSummary keeps non-archived events that opted into the summary and
// splits them into those due today (in loc) and the next few future ones.
func BuildSummary(events []model.Event, now time.Time, loc *time.Location) Summary {
	if loc == nil {
		loc = time.Local
	}
	eligible := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if !ev.IsArchived && ev.NotifyDailySummary {
			eligible = append(eligible, ev)
		}
	}

	due := countdown.DueOn(eligible, now, loc)
	dueIDs := make(map[string]struct{}, len(due))
	for _, ev := range due {
		dueIDs[ev.ID] = struct{}{}
	}
	rest := make([]model.Event, 0, len(eligible))
	for _, ev := range eligible {
		if _, ok := dueIDs[ev.ID]; !ok {
			rest = append(rest, ev)
		}
	}

	return Summary{
		Now:      now,
		DueToday: due,
		Upcoming: countdown.Upcoming(rest, now, summaryUpcomingLimit),
	}
}

// ComposeSummary renders the notification body, one section per line.
func ComposeSummary(s Summary) string {
	var lines []string
	if len(s.DueToday) > 0 {
		titles := make([]string, len(s.DueToday))
		for i, ev := range s.DueToday {
			titles[i] = ev.DisplayIcon() + " " + ev.Title
		}
		lines = append(lines, "Due today: "+strings.Join(titles, ", "))
	}
	if len(s.Upcoming) > 0 {
		parts := make([]string, len(s.Upcoming))
		for i, ev := range s.Upcoming {
			parts[i] = fmt.Sprintf("%s %s (%s)", ev.DisplayIcon(), ev.Title, countdown.Format(countdown.ForEvent(ev, s.Now)))
		}
		lines = append(lines, "Upcoming: "+strings.Join(parts, ", "))
	}
	return strings.Join(lines, "\n")
}

// NextRun returns the first occurrence of clock ("HH:MM") in loc strictly
// after now.
func NextRun(clock string, now time.Time, loc *time.Location) (time.Time, error) {
	spec, err := cronSpec(clock)
	if err != nil {
		return time.Time{}, err
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	return sched.Next(now.In(loc)), nil
}

func cronSpec(clock string) (string, error) {
	h, m, err := model.ParseClock(clock)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}

// DailySummary owns the single repeating summary job.
type DailySummary struct {
	events   repository.EventRepository
	settings repository.SettingsRepository
	alarms   AlarmService
	notifier notify.Notifier
	loc      *time.Location
	now      func() time.Time

	cron *cron.Cron

	mu    sync.Mutex
	entry cron.EntryID
	clock string
}

func NewDailySummary(events repository.EventRepository, settings repository.SettingsRepository, alarms AlarmService, notifier notify.Notifier, loc *time.Location) *DailySummary {
	if loc == nil {
		loc = time.Local
	}
	return &DailySummary{
		events:   events,
		settings: settings,
		alarms:   alarms,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
		cron:     cron.New(cron.WithLocation(loc)),
	}
}

// Init picks the persisted time, falling back to fallback and then to the
// default, and schedules it. It does not start the cron loop.
func (d *DailySummary) Init(ctx context.Context, fallback string) error {
	clock := fallback
	if d.settings != nil {
		stored, ok, err := d.settings.GetSetting(ctx, SettingDailySummaryTime)
		if err != nil {
			return err
		}
		if ok {
			clock = stored
		}
	}
	if _, _, err := model.ParseClock(clock); err != nil {
		appLog.Error("invalid daily summary time; using default", err, "value", clock)
		clock = DefaultDailySummaryTime
	}
	return d.schedule(clock)
}

// SetTime validates clock, persists it and replaces the scheduled entry.
// A storage failure leaves the previous schedule in place.
func (d *DailySummary) SetTime(ctx context.Context, clock string) error {
	if _, err := cronSpec(clock); err != nil {
		return err
	}
	if d.settings != nil {
		if err := d.settings.SetSetting(ctx, SettingDailySummaryTime, clock); err != nil {
			return err
		}
	}
	return d.schedule(clock)
}

func (d *DailySummary) schedule(clock string) error {
	spec, err := cronSpec(clock)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.entry != 0 {
		d.cron.Remove(d.entry)
		d.entry = 0
	}
	id, err := d.cron.AddFunc(spec, func() {
		if _, err := d.Run(context.Background()); err != nil {
			appLog.Error("daily summary failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule daily summary: %w", err)
	}
	d.entry = id
	d.clock = clock
	appLog.Info("daily summary scheduled", "time", clock, "location", d.loc.String())
	return nil
}

// Time returns the scheduled "HH:MM", empty before Init or SetTime.
func (d *DailySummary) Time() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clock
}

// NextRun reports the next time the summary fires after now.
func (d *DailySummary) NextRun(now time.Time) (time.Time, error) {
	clock := d.Time()
	if clock == "" {
		return time.Time{}, fmt.Errorf("daily summary not scheduled")
	}
	return NextRun(clock, now, d.loc)
}

// Start runs the cron loop in its own goroutine.
func (d *DailySummary) Start() {
	d.cron.Start()
}

// Stop halts the cron loop and waits for a running summary to finish.
func (d *DailySummary) Stop() {
	<-d.cron.Stop().Done()
}

// Run builds and sends the summary right now. It reports whether a
// notification went out.
func (d *DailySummary) Run(ctx context.Context) (bool, error) {
	if d.alarms != nil {
		granted, err := d.alarms.PermissionStatus(ctx)
		if err != nil {
			return false, err
		}
		if !granted {
			appLog.Debug("daily summary skipped; permission not granted")
			return false, nil
		}
	}

	events, err := d.events.Fetch(ctx)
	if err != nil {
		return false, err
	}
	now := d.now()
	s := BuildSummary(events, now, d.loc)
	if s.Empty() {
		appLog.Debug("daily summary skipped; nothing to report")
		return false, nil
	}

	n := notify.Notification{
		Key:     DailySummaryKey,
		Title:   "Daily Summary",
		Body:    ComposeSummary(s),
		FiredAt: now,
	}
	if err := d.notifier.Notify(ctx, n); err != nil {
		return false, fmt.Errorf("deliver daily summary: %w", err)
	}
	return true, nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"daycounter/internal/app"
	"daycounter/internal/codec"
	"daycounter/internal/config"
	"daycounter/internal/fetch"
	appLog "daycounter/internal/log"
	"daycounter/internal/notify"
	"daycounter/internal/reminder"
	"daycounter/internal/repository"
	"daycounter/internal/storage/memory"
	"daycounter/internal/storage/sqlite"
	"daycounter/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	list       bool
	exportJSON string
	exportICS  string
	importPath string
}

func (f flagConfig) oneShot() bool {
	return f.list || f.exportJSON != "" || f.exportICS != "" || f.importPath != ""
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	defer appLog.Sync()

	appLog.Info("daycounter starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Location().String(),
		"storage", conf.Storage.Driver,
		"daily_summary_time", conf.DailySummaryTime,
		"notifications", conf.Notifications.Enabled,
		"mail", conf.MailEnabled(),
	)

	store, err := openStore(conf)
	if err != nil {
		appLog.Error("failed to open storage", err, "driver", conf.Storage.Driver)
		os.Exit(1)
	}
	defer store.Close()

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.oneShot() {
		err = runOnce(ctx, flags, conf, store)
	} else {
		err = runDaemon(ctx, conf, store)
	}
	if err != nil {
		appLog.Error("daycounter failed", err)
		appLog.Sync()
		os.Exit(1)
	}
	appLog.Info("daycounter exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", defaultConfigPath(), "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.list, "list", false, "Print upcoming countdowns and exit")
	flag.StringVar(&cfg.exportJSON, "export-json", "", "Write a JSON backup to this file and exit")
	flag.StringVar(&cfg.exportICS, "export-ics", "", "Write an iCalendar export to this file and exit")
	flag.StringVar(&cfg.importPath, "import", "", "Import a .json or .ics file (or http(s) URL) and exit")

	flag.Parse()

	return cfg
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "daycounter.yaml"
	}
	return filepath.Join(dir, "daycounter", "config.yaml")
}

func openStore(conf *config.Config) (repository.Store, error) {
	if conf.Storage.Driver == config.DriverMemory {
		appLog.Info("using in-memory storage; events are lost on exit")
		return memory.New(), nil
	}

	path := conf.Storage.Path
	if path == "" {
		p, err := sqlite.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	appLog.Info("opening sqlite storage", "path", path)
	return sqlite.New(path)
}

// runOnce handles -list, -export-* and -import without starting timers.
func runOnce(ctx context.Context, flags flagConfig, conf *config.Config, store repository.Store) error {
	a := app.New(store, nil, nil)
	if err := a.Load(ctx); err != nil {
		return err
	}

	if flags.importPath != "" {
		n, err := importFrom(ctx, a, flags.importPath)
		if err != nil {
			return fmt.Errorf("import %s: %w", flags.importPath, err)
		}
		fmt.Printf("imported %d events from %s\n", n, flags.importPath)
	}

	if flags.exportJSON != "" {
		data, err := a.ExportJSON()
		if err != nil {
			return err
		}
		if err := os.WriteFile(flags.exportJSON, data, 0o600); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", flags.exportJSON)
	}

	if flags.exportICS != "" {
		if err := os.WriteFile(flags.exportICS, []byte(a.ExportICS()), 0o600); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", flags.exportICS)
	}

	if flags.list {
		fmt.Print(renderList(a.Events(), time.Now(), conf.Location()))
	}
	return nil
}

// importFrom reads a local backup, or downloads it when src is a URL.
func importFrom(ctx context.Context, a *app.App, src string) (int, error) {
	if fetch.IsURL(src) {
		res, err := fetch.NewFetcher(fetch.DefaultCacheDir()).Fetch(ctx, src)
		if err != nil {
			return 0, err
		}
		return a.ImportFetched(ctx, res)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return 0, err
	}
	if strings.EqualFold(filepath.Ext(src), "."+codec.KindICS) {
		return a.ImportICS(ctx, data)
	}
	return a.ImportJSON(ctx, data)
}

// runDaemon schedules reminders and the daily summary, then serves the API
// until ctx is cancelled.
func runDaemon(ctx context.Context, conf *config.Config, store repository.Store) error {
	loc := conf.Location()

	recorder := &notify.Recorder{Max: 100}
	notifiers := notify.Multi{notify.LogNotifier{}, recorder}
	if conf.MailEnabled() {
		m := conf.Notifications.Mail
		mail, err := notify.NewMailNotifier(notify.MailConfig{
			Host:     m.Host,
			Port:     m.Port,
			Username: m.Username,
			Password: m.Password,
			From:     m.From,
			To:       m.To,
		})
		if err != nil {
			return err
		}
		notifiers = append(notifiers, mail)
		appLog.Info("mail notifications enabled", "host", m.Host, "recipients", len(m.To))
	}

	alarms := reminder.NewTimerAlarms(notifiers, conf.Notifications.Enabled)
	defer func() { _ = alarms.CancelAll(context.Background()) }()
	if granted, _ := alarms.RequestPermission(ctx); !granted {
		appLog.Info("notifications disabled; reminders will not be scheduled")
	}

	summary := reminder.NewDailySummary(store, store, alarms, notifiers, loc)
	if err := summary.Init(ctx, conf.DailySummaryTime); err != nil {
		return err
	}
	summary.Start()
	defer summary.Stop()
	if next, err := summary.NextRun(time.Now()); err == nil {
		appLog.Info("next daily summary", "at", next.Format(time.RFC3339))
	}

	a := app.New(store, reminder.NewScheduler(alarms, loc), summary)
	if err := a.Load(ctx); err != nil {
		return err
	}

	srv := web.NewServer(conf, a, recorder)
	srv.SetFetcher(fetch.NewFetcher(fetch.DefaultCacheDir()))
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

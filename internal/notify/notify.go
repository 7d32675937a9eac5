package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gopkg.in/gomail.v2"

	appLog "daycounter/internal/log"
)

// Notification is what a fired alarm or the daily summary delivers.
type Notification struct {
	Key     string    `json:"key"`                // "<eventID>:<reminderID>" or "daily-summary"
	EventID string    `json:"event_id,omitempty"` // empty for the daily summary
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	FiredAt time.Time `json:"fired_at"`
}

// Notifier delivers notifications. The core never renders them itself.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the application log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	appLog.Info("notification",
		"key", n.Key,
		"event_id", n.EventID,
		"title", n.Title,
		"body", n.Body,
		"fired_at", n.FiredAt.Format(time.RFC3339),
	)
	return nil
}

// MailConfig holds SMTP settings for MailNotifier.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// MailNotifier sends each notification as a plain-text email.
type MailNotifier struct {
	dialer *gomail.Dialer
	from   string
	to     []string
}

func NewMailNotifier(cfg MailConfig) (*MailNotifier, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail notifier: host is empty")
	}
	if len(cfg.To) == 0 {
		return nil, errors.New("mail notifier: no recipients")
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &MailNotifier{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
		to:     cfg.To,
	}, nil
}

func (m *MailNotifier) Notify(_ context.Context, n Notification) error {
	if err := m.dialer.DialAndSend(m.message(n)); err != nil {
		return fmt.Errorf("send mail %q: %w", n.Key, err)
	}
	return nil
}

func (m *MailNotifier) message(n Notification) *gomail.Message {
	message := gomail.NewMessage()
	message.SetHeader("From", m.from)
	message.SetHeader("To", m.to...)
	message.SetHeader("Subject", "DayCounter: "+n.Title)
	message.SetBody("text/plain", n.Body)
	return message
}

// Multi fans a notification out to every notifier. All notifiers are tried;
// the returned error joins the failures.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps the most recent notifications in memory. Max <= 0 keeps
// everything.
type Recorder struct {
	Max int

	mu  sync.Mutex
	got []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	if r.Max > 0 && len(r.got) > r.Max {
		r.got = append([]Notification(nil), r.got[len(r.got)-r.Max:]...)
	}
	return nil
}

// All returns a copy of everything recorded so far.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.got...)
}

package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(context.Context, Notification) error { return f.err }

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	rec := &Recorder{}
	boom := errors.New("boom")
	m := Multi{failingNotifier{err: boom}, LogNotifier{}, rec}

	err := m.Notify(context.Background(), Notification{Key: "k", Title: "t", FiredAt: time.Now()})

	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	require.Len(t, rec.All(), 1)
	assert.Equal(t, "k", rec.All()[0].Key)
}

func TestMulti_NoErrors(t *testing.T) {
	assert.NoError(t, Multi{LogNotifier{}}.Notify(context.Background(), Notification{}))
	assert.NoError(t, Multi{}.Notify(context.Background(), Notification{}))
}

func TestRecorder_KeepsMostRecent(t *testing.T) {
	rec := &Recorder{Max: 2}
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, rec.Notify(ctx, Notification{Key: k}))
	}

	got := rec.All()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Key)
	assert.Equal(t, "c", got[1].Key)

	// All returns a copy.
	got[0].Key = "mutated"
	assert.Equal(t, "b", rec.All()[0].Key)
}

func TestNewMailNotifier_Validates(t *testing.T) {
	_, err := NewMailNotifier(MailConfig{To: []string{"a@example.com"}})
	assert.Error(t, err)

	_, err = NewMailNotifier(MailConfig{Host: "smtp.example.com"})
	assert.Error(t, err)
}

func TestMailNotifier_Message(t *testing.T) {
	m, err := NewMailNotifier(MailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "bot@example.com",
		To:       []string{"me@example.com", "you@example.com"},
	})
	require.NoError(t, err)

	msg := m.message(Notification{Title: "Exam", Body: "1h 0m remaining"})

	assert.Equal(t, []string{"bot@example.com"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"me@example.com", "you@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"DayCounter: Exam"}, msg.GetHeader("Subject"))
}

package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medication-reminders/internal/platform/logger"
)

type stubSender struct {
	err   error
	panic bool
	got   []Notification
	ctxOK bool
}

func (s *stubSender) Name() string { return "stub" }

func (s *stubSender) Deliver(ctx context.Context, n Notification) error {
	if s.panic {
		panic("transport exploded")
	}
	_, s.ctxOK = ctx.Deadline()
	s.got = append(s.got, n)
	return s.err
}

func TestBestEffort_SwallowsErrorsAndReports(t *testing.T) {
	sender := &stubSender{err: errors.New("gateway down")}

	var failures []string
	b := NewBestEffort(sender, logger.Nop(), WithFailureObserver(func(ch string, err error) {
		failures = append(failures, ch+":"+err.Error())
	}))

	b.Send(context.Background(), Notification{Recipients: []string{"p1"}, Title: "t"})

	require.Len(t, sender.got, 1)
	assert.Equal(t, []string{"stub:gateway down"}, failures)
}

func TestBestEffort_RecoversFromPanic(t *testing.T) {
	b := NewBestEffort(&stubSender{panic: true}, logger.Nop())
	assert.NotPanics(t, func() {
		b.Send(context.Background(), Notification{Recipients: []string{"p1"}})
	})
}

func TestBestEffort_SkipsEmptyRecipients(t *testing.T) {
	sender := &stubSender{}
	NewBestEffort(sender, logger.Nop()).Send(context.Background(), Notification{})
	assert.Empty(t, sender.got)
}

func TestBestEffort_AppliesTimeout(t *testing.T) {
	sender := &stubSender{}
	NewBestEffort(sender, logger.Nop(), WithTimeout(time.Second)).
		Send(context.Background(), Notification{Recipients: []string{"p1"}})
	assert.True(t, sender.ctxOK)
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &stubSender{}, &stubSender{}
	m := Multi{NewBestEffort(a, nil), nil, NewBestEffort(b, nil)}
	m.Send(context.Background(), Notification{Recipients: []string{"p1"}})
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

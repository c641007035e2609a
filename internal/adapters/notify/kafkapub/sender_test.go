package kafkapub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medication-reminders/internal/ports/notify"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestSender_KeysByReminder(t *testing.T) {
	w := &fakeWriter{}
	s := NewSenderWithWriter(w, "reminder-notifications")

	n := notify.Notification{
		Recipients: []string{"p1"},
		Title:      "Metformina",
		Metadata:   map[string]string{notify.MetaReminderID: "r1"},
	}
	require.NoError(t, s.Deliver(context.Background(), n))
	require.Len(t, w.msgs, 1)

	assert.Equal(t, "r1", string(w.msgs[0].Key))
	var decoded notify.Notification
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, n, decoded)

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}

func TestSender_WrapsWriteError(t *testing.T) {
	boom := errors.New("leader not available")
	s := NewSenderWithWriter(&fakeWriter{err: boom}, "t")

	err := s.Deliver(context.Background(), notify.Notification{Recipients: []string{"p1"}})
	assert.ErrorIs(t, err, boom)
}

func TestNewSender_Validates(t *testing.T) {
	_, err := NewSender(Config{Topic: "t"})
	assert.Error(t, err)
	_, err = NewSender(Config{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	s, err := NewSender(Config{Brokers: []string{"localhost:9092"}, Topic: "t"})
	require.NoError(t, err)
	assert.Equal(t, "kafka", s.Name())
	require.NoError(t, s.Close())
}

package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medication-reminders/internal/platform/httpclient"
	"medication-reminders/internal/ports/notify"
)

func TestSender_PostsNotification(t *testing.T) {
	var got notify.Notification
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-Reminder-ID")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := NewSender(httpclient.New(time.Second), srv.URL)
	require.NoError(t, err)

	n := notify.Notification{
		Recipients: []string{"p1", "d1"},
		Title:      "Ibuprofeno",
		Body:       "Tienes un recordatorio pendiente.",
		Metadata:   map[string]string{notify.MetaReminderID: "r1"},
	}
	require.NoError(t, s.Deliver(context.Background(), n))

	assert.Equal(t, n, got)
	assert.Equal(t, "r1", header)
}

func TestSender_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := httpclient.New(time.Second)
	c.Retries = 2
	c.Backoff = time.Millisecond
	s, err := NewSender(c, srv.URL)
	require.NoError(t, err)

	require.NoError(t, s.Deliver(context.Background(), notify.Notification{Recipients: []string{"p1"}}))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestSender_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad payload", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := httpclient.New(time.Second)
	c.Retries = 3
	s, err := NewSender(c, srv.URL)
	require.NoError(t, err)

	err = s.Deliver(context.Background(), notify.Notification{Recipients: []string{"p1"}})
	var he *httpclient.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnprocessableEntity, he.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestNewSender_RejectsBadURL(t *testing.T) {
	_, err := NewSender(nil, "ftp://example.com/hook")
	assert.Error(t, err)
	_, err = NewSender(nil, "not a url")
	assert.Error(t, err)
}

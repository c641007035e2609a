package webhook

import (
	"context"
	"fmt"

	"medication-reminders/internal/platform/httpclient"
	"medication-reminders/internal/ports/notify"
)

// Sender publica cada notificación como POST JSON a una URL fija.
type Sender struct {
	client *httpclient.Client
	url    string
}

func NewSender(client *httpclient.Client, url string) (*Sender, error) {
	if err := httpclient.ValidateURL(url); err != nil {
		return nil, fmt.Errorf("webhook: %w", err)
	}
	if client == nil {
		client = httpclient.New(0)
	}
	return &Sender{client: client, url: url}, nil
}

func (s *Sender) Name() string { return "webhook" }

func (s *Sender) Deliver(ctx context.Context, n notify.Notification) error {
	headers := map[string]string{}
	if id := n.Metadata[notify.MetaReminderID]; id != "" {
		headers["X-Reminder-ID"] = id
	}
	return s.client.PostJSON(ctx, s.url, headers, n)
}

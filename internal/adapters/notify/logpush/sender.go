package logpush

import (
	"context"
	"strings"

	"medication-reminders/internal/platform/logger"
	"medication-reminders/internal/ports/notify"
)

// Sender solo registra la notificación. Es el driver por defecto en dev.
type Sender struct {
	log logger.Logger
}

func NewSender(log logger.Logger) *Sender {
	if log == nil {
		log = logger.Nop()
	}
	return &Sender{log: log}
}

func (s *Sender) Name() string { return "log" }

func (s *Sender) Deliver(_ context.Context, n notify.Notification) error {
	fields := map[string]any{
		"recipients": strings.Join(n.Recipients, ","),
		"title":      n.Title,
		"body":       n.Body,
	}
	for k, v := range n.Metadata {
		fields[k] = v
	}
	s.log.Info("reminder notification", fields)
	return nil
}

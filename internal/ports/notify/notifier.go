package notify

import (
	"context"
	"time"

	"medication-reminders/internal/platform/logger"
)

// Notification es el payload de un recordatorio: destinatarios, título, cuerpo y metadata.
type Notification struct {
	Recipients []string          `json:"recipients"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Metadata keys que el scheduler siempre llena.
const (
	MetaReminderID   = "reminder_id"
	MetaMedicationID = "medication_id"
	MetaPatientID    = "patient_user_id"
)

// Notifier es best-effort: nunca devuelve error al llamador.
type Notifier interface {
	Send(ctx context.Context, n Notification)
}

// Sender es el transporte concreto (webhook, kafka, sqs...). Sí reporta errores;
// BestEffort los registra y los descarta.
type Sender interface {
	Deliver(ctx context.Context, n Notification) error
	Name() string
}

// FailureObserver recibe cada entrega fallida (p.ej. métricas).
type FailureObserver func(channel string, err error)

type BestEffort struct {
	sender    Sender
	log       logger.Logger
	timeout   time.Duration
	onFailure FailureObserver
}

type Option func(*BestEffort)

// WithTimeout acota cada entrega; 0 = sin límite propio.
func WithTimeout(d time.Duration) Option {
	return func(b *BestEffort) { b.timeout = d }
}

func WithFailureObserver(fn FailureObserver) Option {
	return func(b *BestEffort) { b.onFailure = fn }
}

func NewBestEffort(sender Sender, log logger.Logger, opts ...Option) *BestEffort {
	if log == nil {
		log = logger.Nop()
	}
	b := &BestEffort{sender: sender, log: log}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BestEffort) Send(ctx context.Context, n Notification) {
	if b == nil || b.sender == nil || len(n.Recipients) == 0 {
		return
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	// un transporte que entra en pánico tampoco debe tumbar el ciclo
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("notifier panic", map[string]any{
				"channel": b.sender.Name(),
				"panic":   r,
			})
		}
	}()

	if err := b.sender.Deliver(ctx, n); err != nil {
		b.log.Warn("notification delivery failed", map[string]any{
			"channel":    b.sender.Name(),
			"recipients": len(n.Recipients),
			"error":      err,
		})
		if b.onFailure != nil {
			b.onFailure(b.sender.Name(), err)
		}
		return
	}

	b.log.Debug("notification delivered", map[string]any{
		"channel":    b.sender.Name(),
		"recipients": len(n.Recipients),
	})
}

// Multi reparte la misma notificación a varios Notifier.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, n Notification) {
	for _, x := range m {
		if x != nil {
			x.Send(ctx, n)
		}
	}
}

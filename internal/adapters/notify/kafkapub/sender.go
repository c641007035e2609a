package kafkapub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"medication-reminders/internal/ports/notify"
)

// Writer abstrae kafka.Writer para tests.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Sender publica en un topic; la key es el reminder_id para que los
// disparos de un mismo recordatorio caigan en la misma partición.
type Sender struct {
	writer Writer
	topic  string
}

func NewSender(cfg Config) (*Sender, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafkapub: brokers required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("kafkapub: topic required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: false,
	}
	return NewSenderWithWriter(w, cfg.Topic), nil
}

func NewSenderWithWriter(w Writer, topic string) *Sender {
	return &Sender{writer: w, topic: topic}
}

func (s *Sender) Name() string { return "kafka" }

func (s *Sender) Deliver(ctx context.Context, n notify.Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("kafkapub: marshal: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(n.Metadata[notify.MetaReminderID]),
		Value: value,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: time.Now().UTC(),
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafkapub: write to %s: %w", s.topic, err)
	}
	return nil
}

func (s *Sender) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

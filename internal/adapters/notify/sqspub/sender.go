package sqspub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"medication-reminders/internal/ports/notify"
)

// API es el subconjunto de *sqs.Client que usamos.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type Sender struct {
	api      API
	queueURL string
}

// NewSender carga credenciales/region del entorno (AWS_REGION, AWS_ENDPOINT_URL...).
func NewSender(ctx context.Context, queueURL string) (*Sender, error) {
	if strings.TrimSpace(queueURL) == "" {
		return nil, errors.New("sqspub: queue url required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqspub: load aws config: %w", err)
	}
	client := sqs.New(sqs.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
	})
	return NewSenderWithAPI(client, queueURL), nil
}

func NewSenderWithAPI(api API, queueURL string) *Sender {
	return &Sender{api: api, queueURL: queueURL}
}

func (s *Sender) Name() string { return "sqs" }

func (s *Sender) Deliver(ctx context.Context, n notify.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("sqspub: marshal: %w", err)
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
	}
	if id := n.Metadata[notify.MetaReminderID]; id != "" {
		in.MessageAttributes = map[string]types.MessageAttributeValue{
			"reminder_id": {DataType: aws.String("String"), StringValue: aws.String(id)},
		}
	}

	if _, err := s.api.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("sqspub: send: %w", err)
	}
	return nil
}

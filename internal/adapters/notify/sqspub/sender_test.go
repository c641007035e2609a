package sqspub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medication-reminders/internal/ports/notify"
)

type fakeAPI struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeAPI) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSender_SendsJSONBody(t *testing.T) {
	api := &fakeAPI{}
	s := NewSenderWithAPI(api, "https://sqs.local/000000000000/reminders")

	n := notify.Notification{
		Recipients: []string{"p1", "d1"},
		Title:      "Losartán",
		Metadata:   map[string]string{notify.MetaReminderID: "r7"},
	}
	require.NoError(t, s.Deliver(context.Background(), n))
	require.Len(t, api.inputs, 1)

	in := api.inputs[0]
	assert.Equal(t, "https://sqs.local/000000000000/reminders", aws.ToString(in.QueueUrl))
	assert.Equal(t, "r7", aws.ToString(in.MessageAttributes["reminder_id"].StringValue))

	var decoded notify.Notification
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &decoded))
	assert.Equal(t, n, decoded)
}

func TestSender_WrapsError(t *testing.T) {
	boom := errors.New("throttled")
	s := NewSenderWithAPI(&fakeAPI{err: boom}, "q")
	assert.ErrorIs(t, s.Deliver(context.Background(), notify.Notification{Recipients: []string{"p"}}), boom)
}

func TestNewSender_RequiresQueue(t *testing.T) {
	_, err := NewSender(context.Background(), " ")
	assert.Error(t, err)
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestNotifier_DisabledWithoutQueue(t *testing.T) {
	client := &fakeSQS{}
	n := NewNotifier("", client, zerolog.New(io.Discard))

	assert.Equal(t, ModeDisabled, n.Mode())
	require.NoError(t, n.PublishArtifactUploaded(context.Background(), ArtifactUploaded{StorageKey: "uploads/a"}))
	assert.Empty(t, client.inputs)
}

func TestNotifier_NilIsDisabled(t *testing.T) {
	var n *Notifier
	assert.Equal(t, ModeDisabled, n.Mode())
	assert.NoError(t, n.PublishArtifactUploaded(context.Background(), ArtifactUploaded{}))
}

func TestNotifier_PublishesEnvelope(t *testing.T) {
	client := &fakeSQS{}
	n := NewNotifier("https://sqs.us-east-2.amazonaws.com/1/uploads", client, zerolog.New(io.Discard))
	n.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 30, 0, 0, time.FixedZone("x", 3600))
	}
	assert.Equal(t, ModeEnabled, n.Mode())

	err := n.PublishArtifactUploaded(context.Background(), ArtifactUploaded{
		StorageKey:       "uploads/p/abc-report.pdf",
		Bucket:           "bucket",
		ProjectID:        "p",
		OriginalFilename: "report.pdf",
		ContentType:      "application/pdf",
		PublicURL:        "https://cdn.example.com/uploads/p/abc-report.pdf",
	})
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)

	in := client.inputs[0]
	assert.Equal(t, "https://sqs.us-east-2.amazonaws.com/1/uploads", aws.ToString(in.QueueUrl))
	assert.Equal(t, TypeArtifactUploaded, aws.ToString(in.MessageAttributes["event"].StringValue))
	assert.Equal(t, "String", aws.ToString(in.MessageAttributes["event"].DataType))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &body))
	assert.Equal(t, "ArtifactUploaded", body["type"])
	assert.Equal(t, "1", body["version"])
	assert.Equal(t, "2026-03-01T11:30:00Z", body["occurred_at"])
	assert.Equal(t, "uploads/p/abc-report.pdf", body["correlation_id"])

	artifact := body["artifact"].(map[string]interface{})
	assert.Equal(t, "uploads/p/abc-report.pdf", artifact["s3_key"])
	assert.Equal(t, "p", artifact["project_id"])
	assert.Nil(t, artifact["user_id"])
	assert.Equal(t, "application/pdf", artifact["content_type"])
}

func TestNotifier_SendError(t *testing.T) {
	client := &fakeSQS{err: errors.New("throttled")}
	n := NewNotifier("q", client, zerolog.New(io.Discard))

	err := n.PublishArtifactUploaded(context.Background(), ArtifactUploaded{StorageKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

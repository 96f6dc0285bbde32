// Package events publishes artifact lifecycle events to an SQS queue.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"
)

const (
	TypeArtifactUploaded = "ArtifactUploaded"
	envelopeVersion      = "1"
)

// SQSAPI is the subset of *sqs.Client the notifier needs.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type Mode int

const (
	ModeDisabled Mode = iota
	ModeEnabled
)

func (m Mode) String() string {
	switch m {
	case ModeEnabled:
		return "enabled"
	default:
		return "disabled"
	}
}

// ArtifactUploaded describes an artifact whose bytes are confirmed in the store.
type ArtifactUploaded struct {
	StorageKey       string
	Bucket           string
	ProjectID        string
	UserID           string
	OriginalFilename string
	ContentType      string
	PublicURL        string
}

type envelope struct {
	Type          string          `json:"type"`
	Version       string          `json:"version"`
	OccurredAt    string          `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id"`
	Artifact      artifactPayload `json:"artifact"`
}

type artifactPayload struct {
	S3Key            string  `json:"s3_key"`
	Bucket           string  `json:"bucket"`
	ProjectID        *string `json:"project_id"`
	UserID           *string `json:"user_id"`
	OriginalFilename string  `json:"original_filename"`
	ContentType      string  `json:"content_type"`
	PublicURL        string  `json:"public_url"`
}

type Notifier struct {
	queueURL string
	client   SQSAPI
	logger   zerolog.Logger
	now      func() time.Time
}

// NewNotifier returns a disabled notifier when queueURL is empty or client is nil.
func NewNotifier(queueURL string, client SQSAPI, logger zerolog.Logger) *Notifier {
	n := &Notifier{
		queueURL: queueURL,
		client:   client,
		logger:   logger.With().Str("component", "events").Logger(),
		now:      time.Now,
	}
	if n.Mode() == ModeDisabled {
		n.logger.Info().Msg("artifact event notifier disabled")
	}
	return n
}

func (n *Notifier) Mode() Mode {
	if n == nil || n.queueURL == "" || n.client == nil {
		return ModeDisabled
	}
	return ModeEnabled
}

func (n *Notifier) PublishArtifactUploaded(ctx context.Context, evt ArtifactUploaded) error {
	if n.Mode() == ModeDisabled {
		return nil
	}

	body, err := json.Marshal(n.envelope(evt))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	out, err := n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event": {
				DataType:    aws.String("String"),
				StringValue: aws.String(TypeArtifactUploaded),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send %s event: %w", TypeArtifactUploaded, err)
	}

	n.logger.Debug().
		Str("key", evt.StorageKey).
		Str("message_id", aws.ToString(out.MessageId)).
		Msg("artifact event published")
	return nil
}

func (n *Notifier) envelope(evt ArtifactUploaded) envelope {
	return envelope{
		Type:          TypeArtifactUploaded,
		Version:       envelopeVersion,
		OccurredAt:    n.now().UTC().Format(time.RFC3339),
		CorrelationID: evt.StorageKey,
		Artifact: artifactPayload{
			S3Key:            evt.StorageKey,
			Bucket:           evt.Bucket,
			ProjectID:        optional(evt.ProjectID),
			UserID:           optional(evt.UserID),
			OriginalFilename: evt.OriginalFilename,
			ContentType:      evt.ContentType,
			PublicURL:        evt.PublicURL,
		},
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

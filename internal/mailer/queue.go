package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/service/outbound"
)

// SQSAPI is the subset of the SQS client the queue uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Queue carries email jobs between the API and the worker.
type Queue struct {
	client   SQSAPI
	queueURL string
	backoff  time.Duration
}

// NewQueue creates a queue over an existing SQS queue URL.
func NewQueue(client SQSAPI, queueURL string) *Queue {
	return &Queue{client: client, queueURL: queueURL, backoff: 5 * time.Second}
}

// Push enqueues one email job.
func (q *Queue) Push(ctx context.Context, e outbound.Email) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode email job: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}

// Consume long-polls the queue and delivers each job with m until ctx is
// done. Jobs that fail to send stay on the queue and are retried after the
// visibility timeout; malformed jobs are dropped.
func (q *Queue) Consume(ctx context.Context, m *Mailer) error {
	logger.Info("mailer: queue consumer started", "queue", q.queueURL)
	for {
		if ctx.Err() != nil {
			return nil
		}
		out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(q.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("mailer: receive failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(q.backoff):
			}
			continue
		}

		for _, msg := range out.Messages {
			var e outbound.Email
			if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &e); err != nil {
				logger.Warn("mailer: dropping malformed job", "error", err)
				q.delete(ctx, msg.ReceiptHandle)
				continue
			}
			if err := m.Deliver(ctx, e); err != nil {
				if errors.Is(err, ErrUnknownTemplate) {
					logger.Warn("mailer: dropping job", "template", e.Template, "error", err)
					q.delete(ctx, msg.ReceiptHandle)
					continue
				}
				logger.Warn("mailer: delivery failed, will retry", "to", e.To, "template", e.Template, "error", err)
				continue
			}
			q.delete(ctx, msg.ReceiptHandle)
		}
	}
}

func (q *Queue) delete(ctx context.Context, handle *string) {
	if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: handle,
	}); err != nil {
		logger.Warn("mailer: delete message failed", "error", err)
	}
}

package mailer

import (
	"context"
	"fmt"
	"mime"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/google/uuid"

	"github.com/lapublica/platform/internal/pkg/logger"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTML     string
	Template string
}

// Sender delivers one rendered message and returns the provider id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// SESAPI is the subset of the SES v2 client the sender uses.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends emails via AWS SES using the SDK v2.
type SESSender struct {
	client    SESAPI
	fromEmail string
	fromName  string
}

// NewSESSender creates an SES sender for a verified from address.
func NewSESSender(client SESAPI, fromEmail, fromName string) *SESSender {
	return &SESSender{client: client, fromEmail: fromEmail, fromName: fromName}
}

func (s *SESSender) Send(ctx context.Context, msg Message) (string, error) {
	to := msg.To
	if msg.ToName != "" {
		to = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", msg.ToName), msg.To)
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.fromName), s.fromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("template"), Value: aws.String(msg.Template)},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("ses send: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// LogSender logs messages instead of sending them. Used when SES is not
// configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) (string, error) {
	id := "log-" + uuid.NewString()
	logger.Info("mailer: email not sent (no SES sender configured)",
		"to", msg.To, "template", msg.Template, "subject", msg.Subject, "message_id", id)
	return id, nil
}

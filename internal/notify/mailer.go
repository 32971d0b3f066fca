// Package notify sends study reminder emails.
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// sesAPI is the part of the SES client the mailer calls.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer delivers mail through Amazon SES.
type SESMailer struct {
	client sesAPI
	from   string
}

// NewMailer returns an SES mailer, or a LogMailer when fromEmail is empty.
func NewMailer(ctx context.Context, region, fromEmail string) (Mailer, error) {
	if fromEmail == "" {
		log.Println("[notify] SES_FROM_EMAIL not set, reminders will only be logged")
		return LogMailer{}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	log.Printf("[notify] sending mail via SES: from=%s, region=%s", fromEmail, region)
	return &SESMailer{client: sesv2.NewFromConfig(cfg), from: fromEmail}, nil
}

func (m *SESMailer) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	utf8 := func(s string) *types.Content {
		return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
	}

	out, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: utf8(subject),
				Body: &types.Body{
					Html: utf8(htmlBody),
					Text: utf8(textBody),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	if out.MessageId != nil {
		log.Printf("[notify] sent %q to %s (message %s)", subject, to, *out.MessageId)
	}
	return nil
}

// LogMailer only logs what it would send.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, textBody, _ string) error {
	log.Printf("[notify] (log only) to=%s subject=%q\n%s", to, subject, textBody)
	return nil
}

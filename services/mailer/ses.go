package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer sends raw MIME messages through Amazon SES v2.
type SESMailer struct {
	client sesAPI
	from   Sender
	logger *zap.Logger
	now    func() time.Time
}

func NewSESMailer(ctx context.Context, region string, from Sender, logger *zap.Logger) (*SESMailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SESMailer{client: sesv2.NewFromConfig(cfg), from: from, logger: logger, now: time.Now}, nil
}

func (m *SESMailer) Send(ctx context.Context, msg *Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	raw, err := buildMIME(m.from, msg, m.now())
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	out, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from.Address),
		Destination:      &types.Destination{ToAddresses: msg.To},
		Content:          &types.EmailContent{Raw: &types.RawMessage{Data: raw}},
	})
	if err != nil {
		m.logger.Error("SES send failed", zap.Error(err), zap.Strings("to", msg.To))
		return fmt.Errorf("ses: %w", err)
	}

	m.logger.Info("Email sent successfully",
		zap.Strings("to", msg.To),
		zap.String("provider", "ses"),
		zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}

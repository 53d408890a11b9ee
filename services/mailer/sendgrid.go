package mailer

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer delivers through the SendGrid v3 mail API.
type SendGridMailer struct {
	client sendGridClient
	from   Sender
	logger *zap.Logger
}

func NewSendGridMailer(apiKey string, from Sender, logger *zap.Logger) *SendGridMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendGridMailer{client: sendgrid.NewSendClient(apiKey), from: from, logger: logger}
}

func (m *SendGridMailer) Send(ctx context.Context, msg *Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	email := buildSendGridMail(m.from, msg)
	resp, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		m.logger.Error("SendGrid request failed", zap.Error(err), zap.Strings("to", msg.To))
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		m.logger.Error("SendGrid rejected message",
			zap.Int("status", resp.StatusCode),
			zap.String("body", resp.Body),
			zap.Strings("to", msg.To))
		return fmt.Errorf("sendgrid: unexpected status %d", resp.StatusCode)
	}

	m.logger.Info("Email sent successfully", zap.Strings("to", msg.To), zap.String("provider", "sendgrid"))
	return nil
}

func buildSendGridMail(from Sender, msg *Message) *mail.SGMailV3 {
	email := mail.NewV3Mail()
	email.SetFrom(mail.NewEmail(from.Name, from.Address))
	email.Subject = msg.Subject

	p := mail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(mail.NewEmail("", to))
	}
	email.AddPersonalizations(p)

	if msg.Text != "" {
		email.AddContent(mail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		email.AddContent(mail.NewContent("text/html", msg.HTML))
	}

	for _, a := range msg.Attachments {
		att := mail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(a.Data))
		att.SetType(a.ContentType)
		att.SetFilename(a.Filename)
		att.SetDisposition("attachment")
		email.AddAttachment(att)
	}
	return email
}

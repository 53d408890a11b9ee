// Package mailer delivers certificate emails through SMTP, SendGrid or Amazon SES.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"certhub/config"

	"go.uber.org/zap"
)

// Attachment is a file sent along with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a single outgoing email.
type Message struct {
	To          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Mailer sends one message; a returned error means the message was not accepted.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// Sender identifies the From header.
type Sender struct {
	Name    string
	Address string
}

var ErrNoRecipients = errors.New("no recipients specified")

func validate(msg *Message) error {
	if msg == nil || len(msg.To) == 0 {
		return ErrNoRecipients
	}
	for _, to := range msg.To {
		if to == "" {
			return ErrNoRecipients
		}
	}
	return nil
}

// New builds the mailer for the configured provider.
func New(ctx context.Context, cfg config.MailConfig, logger *zap.Logger) (Mailer, error) {
	sender := Sender{Name: cfg.FromName, Address: cfg.From}
	switch cfg.Provider {
	case config.MailSMTP, "":
		return NewSMTPMailer(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.Username,
			Password: cfg.Password,
		}, sender, logger), nil
	case config.MailSendGrid:
		return NewSendGridMailer(cfg.SendGridAPIKey, sender, logger), nil
	case config.MailSES:
		return NewSESMailer(ctx, cfg.AWSRegion, sender, logger)
	default:
		return nil, fmt.Errorf("unsupported mail provider %q", cfg.Provider)
	}
}

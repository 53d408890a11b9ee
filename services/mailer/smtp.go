package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"go.uber.org/zap"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPMailer relays through an authenticated SMTP server (STARTTLS on 587).
type SMTPMailer struct {
	cfg    SMTPConfig
	from   Sender
	logger *zap.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now    func() time.Time
}

func NewSMTPMailer(cfg SMTPConfig, from Sender, logger *zap.Logger) *SMTPMailer {
	if from.Address == "" {
		from.Address = cfg.Username
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPMailer{cfg: cfg, from: from, logger: logger, send: smtp.SendMail, now: time.Now}
}

func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := buildMIME(m.from, msg, m.now())
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	m.logger.Info("Sending email",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)))

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, auth, m.from.Address, msg.To, raw); err != nil {
		m.logger.Error("Failed to send email", zap.Error(err), zap.Strings("to", msg.To))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("Email sent successfully", zap.Strings("to", msg.To))
	return nil
}

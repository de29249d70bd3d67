package email

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/mail.v2"
)

type Message struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"body" validate:"required"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers plain text mail through one SMTP connection per message.
type SMTPSender struct {
	dialer *mail.Dialer
	from   string
	send   func(msgs ...*mail.Message) error
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	d := mail.NewDialer(host, port, username, password)
	return &SMTPSender{
		dialer: d,
		from:   from,
		send:   d.DialAndSend,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := s.send(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// LogSender only logs messages. It stands in when no SMTP host is set.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email not delivered, no smtp host configured", "to", msg.To, "subject", msg.Subject)
	return nil
}

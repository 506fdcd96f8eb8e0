package mailer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gopkg.in/mail.v2"
)

// Message is a plain-text email
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mailer delivers messages. Callers log failures; nothing is retried.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Timeout  time.Duration
}

// New returns an SMTP mailer, or a mailer that only logs when no host is configured
func New(cfg Config, logger *slog.Logger) Mailer {
	if cfg.Host == "" {
		logger.Info("SMTP_HOST not set, outbound mail will be logged only")
		return &LogMailer{logger: logger}
	}
	return NewSMTPMailer(cfg)
}

type SMTPMailer struct {
	dialer *mail.Dialer
	from   string
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.Timeout > 0 {
		d.Timeout = cfg.Timeout
	}
	return &SMTPMailer{dialer: d, from: cfg.From}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("mailer: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	em := mail.NewMessage()
	em.SetHeader("From", m.from)
	em.SetHeader("To", msg.To...)
	em.SetHeader("Subject", msg.Subject)
	em.SetBody("text/plain", msg.Body)

	return m.dialer.DialAndSend(em)
}

// LogMailer writes messages to the log instead of sending them
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("mailer: no recipients")
	}
	m.logger.Info("mail", "to", msg.To, "subject", msg.Subject, "bytes", len(msg.Body))
	return nil
}

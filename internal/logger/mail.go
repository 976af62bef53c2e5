package logger

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"os"
)

type MailSender interface {
	Send(subject, body string) error
}

// SMTPMailer sends plain-text mail through a single SMTP relay,
// authenticating when a user is configured.
type SMTPMailer struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       string
}

func (m *SMTPMailer) Send(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)

	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Password, m.Host)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.From, m.To, subject, body)

	if err := smtp.SendMail(addr, auth, m.From, []string{m.To}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", addr, err)
	}
	return nil
}

// mailOnCritical forwards CRITICAL records to the mailer before handing
// them to the wrapped handler. Mail failures must not take down logging,
// so they go to stderr.
type mailOnCritical struct {
	inner  slog.Handler
	mailer MailSender
}

func (h *mailOnCritical) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

func (h *mailOnCritical) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= LevelCritical {
		body := r.Time.Format("2006-01-02 15:04:05") + " - " + levelName(r.Level) + " - " + r.Message
		if err := h.mailer.Send("Critical log entry", body); err != nil {
			fmt.Fprintf(os.Stderr, "mail alert failed: %v\n", err)
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *mailOnCritical) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &mailOnCritical{inner: h.inner.WithAttrs(attrs), mailer: h.mailer}
}

func (h *mailOnCritical) WithGroup(name string) slog.Handler {
	return &mailOnCritical{inner: h.inner.WithGroup(name), mailer: h.mailer}
}

package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/traillog/traillog/backend/go-services/internal/config"
	"github.com/traillog/traillog/backend/go-services/pkg/logger"
)

// Message is a plain-text mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers mails.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// NewSender returns an SMTP sender when a host is configured, otherwise a
// sender that only logs.
func NewSender(cfg config.EmailConfig) Sender {
	if cfg.SMTPHost == "" {
		logger.Infof("SMTP_HOST not set; mails are logged instead of sent")
		return LogSender{}
	}
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

// SMTPSender delivers through an SMTP relay with PLAIN auth when credentials are set.
type SMTPSender struct {
	cfg  config.EmailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !strings.Contains(m.To, "@") {
		return fmt.Errorf("invalid recipient %q", m.To)
	}
	addr := net.JoinHostPort(s.cfg.SMTPHost, strconv.Itoa(s.cfg.SMTPPort))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	}
	if err := s.send(addr, auth, s.cfg.From, []string{m.To}, compose(s.cfg.From, m)); err != nil {
		return fmt.Errorf("send mail to %s: %w", m.To, err)
	}
	return nil
}

func compose(from string, m Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogSender writes mails to the log. Used when no SMTP relay is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, m Message) error {
	logger.With(logger.Fields{"to": m.To, "subject": m.Subject}).Info("mail not sent (no SMTP relay configured)")
	return nil
}

// Welcome is the mail sent after registration.
func Welcome(to, username string) Message {
	return Message{
		To:      to,
		Subject: "Welcome to traillog",
		Body:    fmt.Sprintf("Hi %s,\n\nyour traillog account is ready. Happy travels!\n", username),
	}
}

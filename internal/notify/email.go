package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/xxxsen/bioweaver/internal/config"
)

type EmailSender interface {
	Configured() bool
	Send(ctx context.Context, to, subject, body string) error
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type smtpSender struct {
	cfg      config.MailConfig
	sendMail sendMailFunc
}

func NewEmailSender(cfg config.MailConfig) EmailSender {
	return &smtpSender{cfg: cfg, sendMail: smtp.SendMail}
}

func (s *smtpSender) Configured() bool {
	return s.cfg.Configured()
}

// Send delivers a plain text mail. smtp.SendMail upgrades with STARTTLS when the
// server offers it.
func (s *smtpSender) Send(ctx context.Context, to, subject, body string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	from := strings.TrimSpace(s.cfg.From)
	if from == "" {
		from = s.cfg.Username
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("mail recipient is required")
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	msg := buildMessage(from, to, subject, body)

	done := make(chan error, 1)
	go func() {
		done <- s.sendMail(addr, auth, from, []string{to}, msg)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte("From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Date: " + time.Now().Format(time.RFC1123Z) + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" + body)
}

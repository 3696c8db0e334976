package mailer

import (
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/mgrankin/accountd/internal/config"
)

// Sender delivers a message to an address. A failed send is fatal to the
// operation that triggered it; retries are the relay's concern.
type Sender interface {
	Send(to, subject, body string) error
}

type smtpSender struct {
	config *config.MailConfig
	log    *zap.Logger
}

func NewSMTPSender(config *config.MailConfig, log *zap.Logger) Sender {
	return &smtpSender{
		config: config,
		log:    log,
	}
}

func (s *smtpSender) Send(to, subject, body string) error {
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("invalid recipient address %q: %w", to, err)
	}

	msg := buildMessage(s.config.Sender, to, subject, body)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	auth := smtp.PlainAuth("", s.config.Sender, s.config.Password, s.config.Host)

	if err := smtp.SendMail(addr, auth, s.config.Sender, []string{to}, msg); err != nil {
		s.log.Error("failed to send email",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.log.Info("email sent",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

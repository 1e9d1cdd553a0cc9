// internal/provider/smtp.go
//
// SMTP email driver (wneessen/go-mail).
package provider

import (
	"context"
	"fmt"
	"strconv"

	mail "github.com/wneessen/go-mail"
)

const defaultSMTPPort = 587

type smtpSender struct {
	host     string
	port     int
	username string
	password string
}

func newSMTPSender(set EmailSettings) *smtpSender {
	port := defaultSMTPPort
	if set.SMTPPort != "" {
		if p, err := strconv.Atoi(set.SMTPPort); err == nil && p > 0 {
			port = p
		}
	}
	return &smtpSender{
		host:     set.SMTPHost,
		port:     port,
		username: set.SMTPUsername,
		password: set.SMTPPassword,
	}
}

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return fmt.Errorf("smtp from %q: %w", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("smtp to %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	client, err := mail.NewClient(s.host,
		mail.WithPort(s.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.username),
		mail.WithPassword(s.password),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

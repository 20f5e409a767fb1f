package mail

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"

	"github.com/mentorconnect/mentorconnect-api/pkg/config"
)

// Mailer sends transactional email over SMTP with mandatory STARTTLS.
type Mailer struct {
	cfg config.SMTPConfig
}

// NewMailer constructs a Mailer from SMTP configuration.
func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Configured reports whether enough settings exist to attempt delivery.
func (m *Mailer) Configured() bool {
	return m != nil && m.cfg.Host != "" && m.cfg.From != ""
}

// Send delivers a plain-text message to the given recipient.
func (m *Mailer) Send(to, subject, body string) error {
	if to == "" {
		return nil
	}
	if !m.Configured() {
		return fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	d := mail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.User, m.cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         m.cfg.Host,
		InsecureSkipVerify: m.cfg.SkipTLSVerify,
	}

	return d.DialAndSend(msg)
}

package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"gear-rental/shared/config"
)

type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Message is one HTML email, possibly to several recipients.
type Message struct {
	To      []Recipient `json:"to"`
	Subject string      `json:"subject"`
	HTML    string      `json:"html"`
}

func (m Message) Validate() error {
	if len(m.To) == 0 || m.Subject == "" || m.HTML == "" {
		return errors.New("missing required email data")
	}
	for _, r := range m.To {
		if strings.TrimSpace(r.Email) == "" {
			return errors.New("recipient without email address")
		}
	}
	return nil
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer returns an SMTP mailer, or a mailer that only logs when email is
// disabled or no SMTP host is configured.
func NewMailer(cfg *config.Config) Mailer {
	if !cfg.Email.Enabled || cfg.Email.Host == "" {
		zap.S().Warn("Email delivery disabled, messages will only be logged")
		return LogMailer{}
	}
	return &SMTPMailer{
		dialer:   gomail.NewDialer(cfg.Email.Host, cfg.Email.Port, cfg.Email.User, cfg.Email.Password),
		from:     cfg.Email.From,
		fromName: cfg.Email.FromName,
	}
}

type SMTPMailer struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.from, m.fromName)
	to := make([]string, 0, len(msg.To))
	for _, r := range msg.To {
		to = append(to, gm.FormatAddress(r.Email, r.Name))
	}
	gm.SetHeader("To", to...)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTML)

	if err := m.dialer.DialAndSend(gm); err != nil {
		return err
	}
	zap.S().Infof("Email sent to %d recipient(s): %s", len(msg.To), msg.Subject)
	return nil
}

// LogMailer logs messages instead of sending them.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	addrs := make([]string, 0, len(msg.To))
	for _, r := range msg.To {
		addrs = append(addrs, r.Email)
	}
	zap.S().Infof("Email (not sent) to %s: %s", strings.Join(addrs, ", "), msg.Subject)
	return nil
}

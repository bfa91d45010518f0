package mailer

import (
	"context"
	"errors"
	"fmt"

	"furniture-catalog/internal/config"
	"furniture-catalog/internal/domain"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var ErrNotConfigured = errors.New("mailer is not configured")

// dialer is satisfied by *gomail.Dialer
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends messages through an SMTP relay
type SMTPMailer struct {
	dialer dialer
	from   string
	logger *zap.Logger
}

// New creates an SMTPMailer from the mail configuration
func New(cfg config.MailConfig, logger *zap.Logger) *SMTPMailer {
	var d dialer
	if cfg.Host != "" {
		d = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return &SMTPMailer{dialer: d, from: cfg.From, logger: logger}
}

// Send delivers msg as a multipart text and HTML email
func (m *SMTPMailer) Send(ctx context.Context, msg domain.Message) error {
	if m.dialer == nil || m.from == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.dialer.DialAndSend(build(m.from, msg)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	m.logger.Debug("Mail sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

func build(from string, msg domain.Message) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetHeader("From", from)
	gm.SetHeader("To", msg.To)
	if msg.ReplyTo != "" {
		gm.SetHeader("Reply-To", msg.ReplyTo)
	}
	gm.SetHeader("Subject", msg.Subject)

	switch {
	case msg.Text != "" && msg.HTML != "":
		gm.SetBody("text/plain", msg.Text)
		gm.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		gm.SetBody("text/html", msg.HTML)
	default:
		gm.SetBody("text/plain", msg.Text)
	}
	return gm
}

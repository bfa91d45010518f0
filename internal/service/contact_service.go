package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"furniture-catalog/internal/domain"

	"go.uber.org/zap"
)

// Notifier delivers outgoing email
type Notifier interface {
	Send(ctx context.Context, msg domain.Message) error
}

// ContactForm is a visitor enquiry from the storefront
type ContactForm struct {
	Name    string
	Email   string
	Message string
}

// ContactService forwards contact form submissions to the shop inbox
type ContactService interface {
	Submit(ctx context.Context, form ContactForm) error
}

type contactService struct {
	notifier Notifier
	inbox    string
	logger   *zap.Logger
}

// NewContactService creates a ContactService delivering to inbox
func NewContactService(notifier Notifier, inbox string, logger *zap.Logger) ContactService {
	return &contactService{notifier: notifier, inbox: inbox, logger: logger}
}

var contactHTML = template.Must(template.New("contact").Parse(`<h2>New enquiry from the storefront</h2>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Message:</strong></p>
<p>{{.Message}}</p>
`))

// Submit renders the enquiry and sends it with reply-to set to the visitor
func (s *contactService) Submit(ctx context.Context, form ContactForm) error {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	form.Message = strings.TrimSpace(form.Message)

	switch {
	case form.Name == "":
		return domain.Invalid("name is required")
	case form.Email == "":
		return domain.Invalid("email is required")
	case form.Message == "":
		return domain.Invalid("message is required")
	}
	if err := validate.Var(form.Email, "email"); err != nil {
		return domain.Invalid("email is not a valid address")
	}

	var html bytes.Buffer
	if err := contactHTML.Execute(&html, form); err != nil {
		return fmt.Errorf("failed to render contact message: %w", err)
	}

	msg := domain.Message{
		To:      s.inbox,
		ReplyTo: form.Email,
		Subject: fmt.Sprintf("New message from %s", form.Name),
		HTML:    html.String(),
		Text:    fmt.Sprintf("Name: %s\nEmail: %s\n\n%s\n", form.Name, form.Email, form.Message),
	}

	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Error("Failed to send contact message", zap.String("reply_to", form.Email), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrSend, err)
	}

	s.logger.Info("Contact message sent", zap.String("reply_to", form.Email))
	return nil
}

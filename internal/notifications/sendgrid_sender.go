package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

var ErrMissingAPIKey = errors.New("sendgrid api key is not configured")

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender delivers through the SendGrid v3 mail API.
type SendGridSender struct {
	client sendgridClient
	from   *mail.Email
}

func NewSendGridSender(cfg SendGridConfig) (*SendGridSender, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
	}, nil
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	email := s.build(msg)

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}

	// SendGrid answers 202 Accepted; anything outside 2xx is a failure.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	return nil
}

// build sets only the non-empty content parts; the API rejects empty values.
func (s *SendGridSender) build(msg Message) *mail.SGMailV3 {
	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", msg.To))

	email := mail.NewV3Mail()
	email.SetFrom(s.from)
	email.Subject = msg.Subject
	email.AddPersonalizations(p)

	if msg.Text != "" {
		email.AddContent(mail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		email.AddContent(mail.NewContent("text/html", msg.HTML))
	}
	return email
}

// Package notifications delivers outbound email for the account flows.
package notifications

import "context"

const (
	KindPasswordReset   = "password_reset"
	KindPasswordChanged = "password_changed"
)

// Message is a rendered email. At least one of HTML or Text is set.
type Message struct {
	Kind    string
	To      string
	Subject string
	HTML    string
	Text    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

package notifications

import (
	"fmt"
	"log/slog"
)

// NewProvider returns the sender for the configured provider, "log" or
// "sendgrid", wrapped in a ProtectedSender.
func NewProvider(name string, sg SendGridConfig, log *slog.Logger, showBody bool) (*ProtectedSender, error) {
	var inner Sender

	switch name {
	case "", "log":
		inner = NewLogSender(log, showBody)
	case "sendgrid":
		s, err := NewSendGridSender(sg)
		if err != nil {
			return nil, err
		}
		inner = s
	default:
		return nil, fmt.Errorf("unknown notifier %q", name)
	}

	return NewProtectedSender(inner, ProtectedSenderConfig{}), nil
}

package jobs

import (
	"net/mail"
	"strings"
)

// ValidatePayload performs minimal validation on decoded payloads.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	trim := func(s string) string { return strings.TrimSpace(s) }

	switch t {
	case JobSendEmail:
		var p SendEmailPayload
		switch v := payload.(type) {
		case SendEmailPayload:
			p = v
		case *SendEmailPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}

		if trim(p.To) == "" || trim(p.Subject) == "" {
			return ErrInvalidJobPayload
		}
		if trim(p.HTML) == "" && trim(p.Text) == "" {
			return ErrInvalidJobPayload
		}
		if _, err := mail.ParseAddress(p.To); err != nil {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}

package jobs

import (
	"errors"
	"testing"

	"github.com/geocoder89/memberhub/internal/domain/job"
)

func TestEncodeDecode_SendEmail(t *testing.T) {
	payload := SendEmailPayload{
		Kind:    "password_reset",
		To:      "alice@example.com",
		Subject: "Password Reset",
		HTML:    "<a href=\"http://x/reset/abc\">Reset Your Password</a>",
	}

	b, err := EncodePayload(JobSendEmail, payload)
	if err != nil {
		t.Fatalf("EncodePayload error: %v", err)
	}

	j := job.New(job.CreateRequest{Type: string(JobSendEmail), Payload: b})

	decoded, err := DecodePayload(j)
	if err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}

	p, ok := decoded.(SendEmailPayload)
	if !ok {
		t.Fatalf("expected SendEmailPayload, got %T", decoded)
	}

	if p.To != payload.To || p.HTML != payload.HTML {
		t.Fatalf("round trip mismatch: %+v", p)
	}
}

func TestEncodePayload_TypeMismatch(t *testing.T) {
	_, err := EncodePayload(JobSendEmail, struct{ To string }{To: "a@b.c"})
	if !errors.Is(err, ErrPayloadTypeMismatch) {
		t.Fatalf("expected ErrPayloadTypeMismatch, got %v", err)
	}
}

func TestEncodePayload_UnknownType(t *testing.T) {
	_, err := EncodePayload(JobType("sync_contacts"), SendEmailPayload{})
	if !errors.Is(err, ErrInvalidJobType) {
		t.Fatalf("expected ErrInvalidJobType, got %v", err)
	}
}

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload SendEmailPayload
		wantErr bool
	}{
		{"ok html", SendEmailPayload{To: "a@example.com", Subject: "s", HTML: "h"}, false},
		{"ok text", SendEmailPayload{To: "a@example.com", Subject: "s", Text: "t"}, false},
		{"missing to", SendEmailPayload{Subject: "s", Text: "t"}, true},
		{"missing body", SendEmailPayload{To: "a@example.com", Subject: "s"}, true},
		{"bad address", SendEmailPayload{To: "not-an-address", Subject: "s", Text: "t"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(JobSendEmail, &tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePayload err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodePayload_Empty(t *testing.T) {
	_, err := DecodePayload(job.Job{Type: string(JobSendEmail)})
	if !errors.Is(err, ErrInvalidJobPayload) {
		t.Fatalf("expected ErrInvalidJobPayload, got %v", err)
	}
}

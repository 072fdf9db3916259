package auth

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

const (
	MsgEnterAllFields   = "Please enter all fields"
	MsgPasswordMismatch = "Passwords do not match"
	MsgPasswordTooShort = "Password must be at least 6 characters"
	MsgEmailExists      = "Email already exists"
	MsgInvalidLogin     = "Email or password is incorrect."
)

const minPasswordLen = 6

var validate = validator.New(validator.WithRequiredStructEnabled())

// RegisterRequest is a signup form submission.
type RegisterRequest struct {
	Name      string `validate:"required"`
	Email     string `validate:"required"`
	Password  string `validate:"required,min=6"`
	Password2 string `validate:"required,eqfield=Password"`
}

// DetailsRequest is a contact-details form submission.
type DetailsRequest struct {
	Name               string `validate:"required"`
	Email              string `validate:"required"`
	RegistrationNumber string `validate:"required"`
	Address            string `validate:"required"`
	PhoneNumber        string `validate:"required"`
}

// NewPasswordRequest is the second step of a password reset.
type NewPasswordRequest struct {
	Password  string `validate:"required,min=6"`
	Password2 string `validate:"required,eqfield=Password"`
}

// reasons translates validator failures into user-facing messages.
// Each message appears at most once and in a stable order.
func reasons(err error) []string {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{MsgEnterAllFields}
	}

	var missing, mismatch, short bool
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			missing = true
		case "eqfield":
			mismatch = true
		case "min":
			short = true
		}
	}

	var out []string
	if missing {
		out = append(out, MsgEnterAllFields)
	}
	if mismatch {
		out = append(out, MsgPasswordMismatch)
	}
	if short {
		out = append(out, MsgPasswordTooShort)
	}
	return out
}

// validateRegister mirrors the signup form rules. A missing confirmation still
// counts as a mismatch when the password itself was given.
func validateRegister(req RegisterRequest) []string {
	out := reasons(validate.Struct(req))

	if req.Password != req.Password2 && !contains(out, MsgPasswordMismatch) {
		out = insertAfter(out, MsgEnterAllFields, MsgPasswordMismatch)
	}
	return out
}

func validateDetails(req DetailsRequest) []string {
	return reasons(validate.Struct(req))
}

func validateNewPassword(req NewPasswordRequest) []string {
	out := reasons(validate.Struct(req))
	if req.Password != req.Password2 && !contains(out, MsgPasswordMismatch) {
		out = insertAfter(out, MsgEnterAllFields, MsgPasswordMismatch)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func insertAfter(list []string, after, s string) []string {
	for i, v := range list {
		if v == after {
			out := append([]string{}, list[:i+1]...)
			out = append(out, s)
			return append(out, list[i+1:]...)
		}
	}
	return append([]string{s}, list...)
}

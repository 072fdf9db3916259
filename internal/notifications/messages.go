package notifications

import (
	"fmt"
	"html"
)

// PasswordResetMessage is the HTML email carrying the one-time reset link.
func PasswordResetMessage(to, link string) Message {
	body := fmt.Sprintf(`You are receiving this because you (or someone else) have requested the reset of the password for your account.<br><br>
Please click on the following link, or paste this into your browser to complete the process:<br><br>
<a href="%s">Reset Your Password</a><br><br>
If you did not request this, please ignore this email and your password will remain unchanged.<br>`, html.EscapeString(link))

	return Message{
		Kind:    KindPasswordReset,
		To:      to,
		Subject: "Password Reset",
		HTML:    body,
	}
}

// PasswordChangedMessage is the plaintext confirmation sent after a reset.
func PasswordChangedMessage(to string) Message {
	return Message{
		Kind:    KindPasswordChanged,
		To:      to,
		Subject: "Your password has been changed",
		Text:    fmt.Sprintf("Hello,\n\nThis is a confirmation that the password for your account %s has just been changed.\n", to),
	}
}

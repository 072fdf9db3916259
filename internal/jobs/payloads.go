package jobs

// SendEmailPayload carries a fully rendered message. Kind labels metrics
// (password_reset, password_changed).
type SendEmailPayload struct {
	Kind    string `json:"kind"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
}

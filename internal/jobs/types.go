package jobs

type JobType string

const (
	// JobSendEmail delivers one outbound email through the configured sender.
	JobSendEmail JobType = "send_email"
)

// IsValid reports whether t is a known job type.
func (t JobType) IsValid() bool {
	switch t {
	case JobSendEmail:
		return true
	default:
		return false
	}
}

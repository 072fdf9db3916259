package notifications

import (
	"context"
	"fmt"

	"github.com/geocoder89/memberhub/internal/domain/job"
	"github.com/geocoder89/memberhub/internal/jobs"
)

// JobCreator is the slice of the jobs repository QueueSender needs.
type JobCreator interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

// QueueSender hands messages to the delivery worker through the jobs table.
// Send returns once the job is stored, not once the email is delivered.
type QueueSender struct {
	jobs        JobCreator
	maxAttempts int
}

func NewQueueSender(jobs JobCreator, maxAttempts int) *QueueSender {
	return &QueueSender{jobs: jobs, maxAttempts: maxAttempts}
}

func (s *QueueSender) Send(ctx context.Context, msg Message) error {
	payload, err := jobs.EncodePayload(jobs.JobSendEmail, jobs.SendEmailPayload{
		Kind:    msg.Kind,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("encode email job: %w", err)
	}

	if _, err := s.jobs.Create(ctx, job.CreateRequest{
		Type:        string(jobs.JobSendEmail),
		Payload:     payload,
		MaxAttempts: s.maxAttempts,
	}); err != nil {
		return fmt.Errorf("enqueue email job: %w", err)
	}
	return nil
}

// MessageFromPayload rebuilds the message a worker should deliver.
func MessageFromPayload(p jobs.SendEmailPayload) Message {
	return Message{
		Kind:    p.Kind,
		To:      p.To,
		Subject: p.Subject,
		HTML:    p.HTML,
		Text:    p.Text,
	}
}

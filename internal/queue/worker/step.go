package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/memberhub/internal/domain/job"
	"github.com/geocoder89/memberhub/internal/jobs"
	"github.com/geocoder89/memberhub/internal/notifications"
)

// errPermanent marks failures that retrying cannot fix.
var errPermanent = errors.New("permanent job failure")

// ProcessOne claims and runs a single job. It reports whether a job was claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	w.metrics.IncClaimed()
	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := time.Now()
	err = w.execute(ctx, j)
	elapsed := time.Since(start)
	w.metrics.ObserveDuration(elapsed)

	if err != nil {
		result := w.handleFailure(ctx, j, err)
		w.prom.ObserveJob(j.Type, result, elapsed)
		return true, nil
	}

	if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		w.prom.ObserveJob(j.Type, "failed", elapsed)
		return true, err
	}

	w.metrics.IncDone()
	w.prom.ObserveJob(j.Type, "done", elapsed)
	w.log.Info("job done", "job_id", j.ID, "job_type", j.Type, "attempt", j.Attempts+1)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	decoded, err := jobs.DecodePayload(j)
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}

	switch p := decoded.(type) {
	case jobs.SendEmailPayload:
		msg := notifications.MessageFromPayload(p)
		if err := w.sender.Send(ctx, msg); err != nil {
			w.prom.Notification(msg.Kind, "failed")
			return err
		}
		w.prom.Notification(msg.Kind, "sent")
		return nil
	default:
		return fmt.Errorf("%w: no handler for %s", errPermanent, j.Type)
	}
}

// handleFailure reschedules with backoff or dead-letters the job, and returns
// the result label for metrics.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, cause error) string {
	msg := cause.Error()

	if errors.Is(cause, errPermanent) || j.Exhausted() {
		if err := w.repo.MarkFailed(ctx, j.ID, msg); err != nil {
			w.log.Error("mark job failed", "job_id", j.ID, "err", err)
		}
		w.metrics.IncDeadLettered()
		w.log.Error("job dead-lettered", "job_id", j.ID, "job_type", j.Type, "attempts", j.Attempts+1, "err", msg)
		return "failed"
	}

	runAt := time.Now().Add(w.backoff(j.Attempts))
	if err := w.repo.Reschedule(ctx, j.ID, runAt, msg); err != nil {
		w.log.Error("reschedule job", "job_id", j.ID, "err", err)
	}
	w.metrics.IncRetried()
	w.log.Warn("job retry scheduled", "job_id", j.ID, "job_type", j.Type, "attempt", j.Attempts+1, "run_at", runAt, "err", msg)
	return "retry"
}

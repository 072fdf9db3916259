package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/memberhub/internal/domain/job"
	"github.com/geocoder89/memberhub/internal/notifications"
	"github.com/geocoder89/memberhub/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	ShutdownGrace time.Duration
	// StaleLockTTL is how long a job may stay processing before it is requeued.
	StaleLockTTL time.Duration
}

type Worker struct {
	cfg     Config
	repo    JobsRepository
	sender  notifications.Sender
	log     *slog.Logger
	prom    *observability.Prom
	metrics *observability.JobMetrics
	backoff func(attempt int) time.Duration

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, sender notifications.Sender, log *slog.Logger, prom *observability.Prom) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.StaleLockTTL <= 0 {
		cfg.StaleLockTTL = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		cfg:     cfg,
		repo:    repo,
		sender:  sender,
		log:     log,
		prom:    prom,
		metrics: observability.NewJobMetrics(),
		backoff: ExponentialBackoff,
	}
}

func (w *Worker) Metrics() *observability.JobMetrics {
	return w.metrics
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

// Run polls for jobs with cfg.Concurrency goroutines until ctx is cancelled.
// In-flight jobs get ShutdownGrace to finish.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	// jobs keep running on their own context so a shutdown signal does not
	// abort a send halfway through
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, jobCtx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.janitor(ctx)
	}()

	<-ctx.Done()
	w.setReady(false)
	w.log.Info("worker received shutdown signal", "worker_id", w.cfg.WorkerID)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(w.cfg.ShutdownGrace):
		cancelJobs()
		<-done
		return errors.New("worker shutdown grace exceeded")
	}
}

func (w *Worker) loop(ctx, jobCtx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := w.ProcessOne(jobCtx)
		if err != nil {
			w.log.Error("process job", "err", err)
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

func (w *Worker) janitor(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.StaleLockTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.StaleLockTTL)
			if err != nil {
				w.log.Error("requeue stale jobs", "err", err)
				continue
			}
			if n > 0 {
				w.log.Warn("requeued stale jobs", "count", n)
			}
		}
	}
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/memberhub/internal/domain/job"
	"github.com/geocoder89/memberhub/internal/jobs"
	"github.com/geocoder89/memberhub/internal/notifications"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRepo struct {
	mu          sync.Mutex
	queue       []job.Job
	done        []string
	failed      map[string]string
	rescheduled map[string]time.Time
}

func newFakeRepo(js ...job.Job) *fakeRepo {
	return &fakeRepo{
		queue:       js,
		failed:      map[string]string{},
		rescheduled: map[string]time.Time{},
	}
}

func (r *fakeRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return job.Job{}, job.ErrJobNotFound
	}
	j := r.queue[0]
	r.queue = r.queue[1:]
	j.Status = job.StatusProcessing
	j.LockedBy = &workerID
	return j, nil
}

func (r *fakeRepo) MarkDone(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, id)
	return nil
}

func (r *fakeRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[id] = errMsg
	return nil
}

func (r *fakeRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rescheduled[id] = runAt
	return nil
}

func (r *fakeRepo) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	return 0, nil
}

func (r *fakeRepo) doneCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.done)
}

func emailJob(t *testing.T, attempts, maxAttempts int) job.Job {
	t.Helper()
	b, err := jobs.EncodePayload(jobs.JobSendEmail, jobs.SendEmailPayload{
		Kind: notifications.KindPasswordChanged, To: "a@example.com", Subject: "s", Text: "t",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	j := job.New(job.CreateRequest{Type: string(jobs.JobSendEmail), Payload: b, MaxAttempts: maxAttempts})
	j.Attempts = attempts
	return j
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcessOne_Delivers(t *testing.T) {
	j := emailJob(t, 0, 3)
	repo := newFakeRepo(j)

	var got notifications.Message
	sender := notifications.SenderFunc(func(ctx context.Context, msg notifications.Message) error {
		got = msg
		return nil
	})

	w := New(Config{WorkerID: "w1"}, repo, sender, quietLogger(), nil)

	processed, err := w.ProcessOne(context.Background())
	if err != nil || !processed {
		t.Fatalf("ProcessOne = %v, %v", processed, err)
	}
	if got.To != "a@example.com" {
		t.Fatalf("message not delivered: %+v", got)
	}
	if repo.doneCount() != 1 {
		t.Fatalf("job not marked done")
	}
	if s := w.Metrics().Snapshot(); s.Claimed != 1 || s.Done != 1 {
		t.Fatalf("metrics = %+v", s)
	}
}

func TestProcessOne_EmptyQueue(t *testing.T) {
	w := New(Config{WorkerID: "w1"}, newFakeRepo(), nil, quietLogger(), nil)

	processed, err := w.ProcessOne(context.Background())
	if err != nil || processed {
		t.Fatalf("ProcessOne = %v, %v; want false, nil", processed, err)
	}
}

func TestProcessOne_RetriesThenDeadLetters(t *testing.T) {
	failing := notifications.SenderFunc(func(ctx context.Context, msg notifications.Message) error {
		return errors.New("provider down")
	})

	first := emailJob(t, 0, 3)
	last := emailJob(t, 2, 3)
	repo := newFakeRepo(first, last)

	w := New(Config{WorkerID: "w1"}, repo, failing, quietLogger(), nil)
	w.backoff = func(int) time.Duration { return time.Minute }

	before := time.Now()
	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	runAt, ok := repo.rescheduled[first.ID]
	if !ok {
		t.Fatalf("first job should be rescheduled")
	}
	if runAt.Before(before.Add(time.Minute)) {
		t.Fatalf("backoff not applied: %v", runAt)
	}

	if _, ok := repo.failed[last.ID]; !ok {
		t.Fatalf("job on its final attempt should be dead-lettered")
	}

	if s := w.Metrics().Snapshot(); s.Retried != 1 || s.DeadLettered != 1 {
		t.Fatalf("metrics = %+v", s)
	}
}

func TestProcessOne_BadPayloadIsPermanent(t *testing.T) {
	j := job.New(job.CreateRequest{Type: string(jobs.JobSendEmail), Payload: json.RawMessage(`{"to":""}`), MaxAttempts: 5})
	repo := newFakeRepo(j)

	w := New(Config{WorkerID: "w1"}, repo, notifications.SenderFunc(func(context.Context, notifications.Message) error {
		t.Fatalf("sender must not be called")
		return nil
	}), quietLogger(), nil)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if _, ok := repo.failed[j.ID]; !ok {
		t.Fatalf("invalid payload should dead-letter on first attempt")
	}
}

func TestRun_DrainsAndStops(t *testing.T) {
	repo := newFakeRepo(emailJob(t, 0, 3), emailJob(t, 0, 3), emailJob(t, 0, 3))
	sender := notifications.SenderFunc(func(context.Context, notifications.Message) error { return nil })

	w := New(Config{WorkerID: "w1", Concurrency: 2, PollInterval: 5 * time.Millisecond}, repo, sender, quietLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for repo.doneCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if repo.doneCount() != 3 {
		t.Fatalf("done = %d, want 3", repo.doneCount())
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if w.Ready() {
		t.Fatalf("worker must report not ready after shutdown")
	}
}

func TestHealthHandler(t *testing.T) {
	w := New(Config{WorkerID: "w1"}, newFakeRepo(), nil, quietLogger(), nil)
	h := w.HealthHandler(nil, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before Run = %d, want 503", rec.Code)
	}

	w.setReady(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
}

func TestExponentialBackoff(t *testing.T) {
	if d := ExponentialBackoff(0); d < 2*time.Second || d >= 2*time.Second+250*time.Millisecond {
		t.Fatalf("attempt 0 = %v", d)
	}
	if d := ExponentialBackoff(2); d < 8*time.Second {
		t.Fatalf("attempt 2 = %v", d)
	}
	if d := ExponentialBackoff(30); d > 5*time.Minute+250*time.Millisecond {
		t.Fatalf("attempt 30 = %v, want capped", d)
	}
}

package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/geocoder89/memberhub/internal/domain/job"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jobCols = []string{
	"id", "type", "payload", "status", "attempts", "max_attempts",
	"run_at", "locked_at", "locked_by", "last_error", "idempotency_key", "created_at", "updated_at",
}

func TestJobsRepo_ClaimNext(t *testing.T) {
	ts := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("claimed", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
			WithArgs("worker-1").
			WillReturnRows(pgxmock.NewRows(jobCols).AddRow(
				"j1", "send_email", json.RawMessage(`{"to":"a@example.com"}`), "processing", 0, 8,
				ts, &ts, ptr("worker-1"), (*string)(nil), (*string)(nil), ts, ts,
			))

		j, err := NewJobsRepo(mock, nil).ClaimNext(context.Background(), "worker-1")
		require.NoError(t, err)
		assert.Equal(t, "j1", j.ID)
		assert.Equal(t, job.StatusProcessing, j.Status)
		assert.Equal(t, "worker-1", *j.LockedBy)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing runnable", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
			WithArgs("worker-1").
			WillReturnError(pgx.ErrNoRows)

		_, err := NewJobsRepo(mock, nil).ClaimNext(context.Background(), "worker-1")
		require.ErrorIs(t, err, job.ErrJobNotFound)
	})
}

func TestJobsRepo_RescheduleAndMark(t *testing.T) {
	runAt := time.Date(2026, 2, 1, 0, 0, 30, 0, time.UTC)

	mock := newMock(t)
	mock.ExpectExec(`SET status = 'pending',\s+attempts = attempts \+ 1`).
		WithArgs("j1", runAt, "boom").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`SET status = 'failed'`).
		WithArgs("j1", "boom").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`SET status = 'done'`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewJobsRepo(mock, nil)
	require.NoError(t, repo.Reschedule(context.Background(), "j1", runAt, "boom"))
	require.NoError(t, repo.MarkFailed(context.Background(), "j1", "boom"))
	require.ErrorIs(t, repo.MarkDone(context.Background(), "missing"), job.ErrJobNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobsRepo_RequeueStaleProcessing(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`WHERE status = 'processing'`).
		WithArgs(int64(60)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := NewJobsRepo(mock, nil).RequeueStaleProcessing(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobsRepo_Create(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO jobs`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	j, err := NewJobsRepo(mock, nil).Create(context.Background(), job.CreateRequest{
		Type:    "send_email",
		Payload: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, j.Status)
	assert.Equal(t, job.DefaultMaxAttempts, j.MaxAttempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobsRepo_CreateDuplicateIdempotencyKey(t *testing.T) {
	ts := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	key := "reset:u1:abc"

	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO jobs`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
	mock.ExpectQuery(`WHERE idempotency_key = \$1`).
		WithArgs(key).
		WillReturnRows(pgxmock.NewRows(jobCols).AddRow(
			"existing", "send_email", json.RawMessage(`{}`), "pending", 0, 8,
			ts, (*time.Time)(nil), (*string)(nil), (*string)(nil), &key, ts, ts,
		))

	j, err := NewJobsRepo(mock, nil).Create(context.Background(), job.CreateRequest{
		Type:           "send_email",
		Payload:        json.RawMessage(`{}`),
		IdempotencyKey: &key,
	})
	require.NoError(t, err)
	assert.Equal(t, "existing", j.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobsRepo_FinishedJobsDropPayload(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`(?s)SET status = 'done',\s+payload = '\{\}'::jsonb`).
		WithArgs("j1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`(?s)SET status = 'failed',\s+payload = '\{\}'::jsonb`).
		WithArgs("j2", "bounced").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewJobsRepo(mock, nil)
	require.NoError(t, repo.MarkDone(context.Background(), "j1"))
	require.NoError(t, repo.MarkFailed(context.Background(), "j2", "bounced"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

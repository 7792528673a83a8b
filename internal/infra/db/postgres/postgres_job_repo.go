package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/EXON826/iglive-tgms-worker/internal/domain"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{
		pool: pool,
		tm:   tm,
	}
}

func (r *jobRepo) Enqueue(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	const q = `
INSERT INTO jobs (status, bot_token, job_type, payload, retries)
VALUES ($1, $2, $3, $4, $5)
RETURNING job_id, created_at, updated_at;`

	payload := job.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	row, err := pickRow(ctx, r.pool, tx, q, job.Status, job.BotToken, job.Type, payload, job.Retries)
	if err != nil {
		return err
	}
	return scanErr(row.Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt))
}

func (r *jobRepo) ClaimNext(ctx context.Context, botToken string) (*model.Job, error) {
	var job *model.Job

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const fetchQuery = `
SELECT job_id, bot_token, job_type, payload, retries, created_at, updated_at
FROM jobs
WHERE status = 'pending' AND bot_token = $1
ORDER BY created_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, fetchQuery, botToken)
		if err != nil {
			return err
		}

		var fetched model.Job
		if err := row.Scan(
			&fetched.ID, &fetched.BotToken, &fetched.Type, &fetched.Payload,
			&fetched.Retries, &fetched.CreatedAt, &fetched.UpdatedAt,
		); err != nil {
			return scanErr(err)
		}

		// Flip to processing inside the same transaction so the row lock is
		// released only once the claim is visible to everyone else.
		const markQuery = `
UPDATE jobs SET status = 'processing', updated_at = NOW()
WHERE job_id = $1
RETURNING updated_at;`
		row, err = pickRow(ctx, r.pool, tx, markQuery, fetched.ID)
		if err != nil {
			return err
		}
		if err := row.Scan(&fetched.UpdatedAt); err != nil {
			return scanErr(err)
		}
		fetched.Status = model.JobStatusProcessing

		job = &fetched
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

func (r *jobRepo) Finalize(ctx context.Context, tx repository.Tx, jobID int64, status model.JobStatus, retries int) error {
	const q = `
UPDATE jobs SET status = $2, retries = $3, updated_at = NOW()
WHERE job_id = $1 AND status = 'processing';`

	tag, err := execSQL(ctx, r.pool, tx, q, jobID, status, retries)
	if err != nil {
		return fmt.Errorf("finalize job %d: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		// The lease was lost (requeued by the sweeper) or the job never existed.
		return fmt.Errorf("finalize job %d: %w", jobID, domain.ErrNotFound)
	}
	return nil
}

func (r *jobRepo) Heartbeat(ctx context.Context, tx repository.Tx, jobID int64) error {
	tag, err := execSQL(ctx, r.pool, tx,
		`UPDATE jobs SET updated_at = NOW() WHERE job_id = $1 AND status = 'processing';`, jobID)
	if err != nil {
		return fmt.Errorf("heartbeat job %d: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("heartbeat job %d: %w", jobID, domain.ErrNotFound)
	}
	return nil
}

func (r *jobRepo) RequeueStale(ctx context.Context, tx repository.Tx, botToken string, olderThan time.Duration, maxRetries int) (int, error) {
	if olderThan <= 0 || maxRetries < 0 {
		return 0, domain.ErrInvalidArgument
	}
	// Same transition as Job.NextStatus on a failed attempt.
	const q = `
UPDATE jobs
SET status = CASE WHEN retries < $3 THEN 'pending' ELSE 'failed' END,
    retries = retries + 1,
    updated_at = NOW()
WHERE status = 'processing'
  AND bot_token = $1
  AND updated_at < NOW() - make_interval(secs => $2);`

	tag, err := execSQL(ctx, r.pool, tx, q, botToken, olderThan.Seconds(), maxRetries)
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

package repository

import (
	"context"
	"time"

	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
)

type JobRepository interface {
	// Enqueue inserts a pending job and fills in its id and timestamps.
	Enqueue(ctx context.Context, tx Tx, job *model.Job) error
	// ClaimNext atomically selects the oldest pending job of the partition,
	// skipping rows locked by other transactions, and marks it processing in
	// the same transaction. Returns domain.ErrNotFound when nothing is claimable.
	ClaimNext(ctx context.Context, botToken string) (*model.Job, error)
	// Finalize writes the outcome of an attempt. It only touches jobs that are
	// still processing.
	Finalize(ctx context.Context, tx Tx, jobID int64, status model.JobStatus, retries int) error
	// Heartbeat refreshes the lease (updated_at) of a processing job.
	Heartbeat(ctx context.Context, tx Tx, jobID int64) error
	// RequeueStale counts a failed attempt against every processing job whose
	// lease is older than olderThan: it goes back to pending, or to failed once
	// maxRetries is used up. Returns how many jobs were moved.
	RequeueStale(ctx context.Context, tx Tx, botToken string, olderThan time.Duration, maxRetries int) (int, error)
}

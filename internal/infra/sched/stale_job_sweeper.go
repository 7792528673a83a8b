package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/metrics"
)

// StaleJobSweeper returns jobs whose worker died mid-attempt to the queue.
// A job counts as stale once its lease has not been refreshed for staleAfter.
// The lost attempt is charged like any other failure, so a job that keeps
// killing its worker ends up failed after maxRetries.
type StaleJobSweeper struct {
	jobs       repository.JobRepository
	botToken   string
	staleAfter time.Duration
	maxRetries int
	log        *zerolog.Logger
}

func NewStaleJobSweeper(jobs repository.JobRepository, botToken string, staleAfter time.Duration, maxRetries int, logger *zerolog.Logger) *StaleJobSweeper {
	l := logger.With().Str("component", "StaleJobSweeper").Logger()
	return &StaleJobSweeper{jobs: jobs, botToken: botToken, staleAfter: staleAfter, maxRetries: maxRetries, log: &l}
}

func (w *StaleJobSweeper) Sweep(ctx context.Context) error {
	n, err := w.jobs.RequeueStale(ctx, repository.NoTX, w.botToken, w.staleAfter, w.maxRetries)
	if err != nil {
		return err
	}
	if n > 0 {
		metrics.AddStaleJobsRequeued(n)
		w.log.Warn().Int("count", n).Dur("stale_after", w.staleAfter).Msg("stale jobs requeued")
	}
	return nil
}

// JobEnqueuer produces a data-less job of a fixed type, for periodic
// maintenance such as member count refreshes.
type JobEnqueuer struct {
	jobs     repository.JobRepository
	botToken string
	jobType  model.JobType
}

func NewJobEnqueuer(jobs repository.JobRepository, botToken string, jobType model.JobType) *JobEnqueuer {
	return &JobEnqueuer{jobs: jobs, botToken: botToken, jobType: jobType}
}

func (e *JobEnqueuer) Enqueue(ctx context.Context) error {
	return e.jobs.Enqueue(ctx, repository.NoTX, &model.Job{
		BotToken: e.botToken,
		Type:     string(e.jobType),
		Payload:  []byte(`{}`),
	})
}

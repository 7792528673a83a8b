package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/EXON826/iglive-tgms-worker/internal/domain"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/usecase"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/logging"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/metrics"
)

type ConsumerConfig struct {
	// BotToken selects this worker's partition of the shared queue.
	BotToken string

	PollInterval      time.Duration
	MaxRetries        int
	HeartbeatInterval time.Duration

	// RunOnce stops after one processed job or RunOnceEmptyPolls empty polls.
	RunOnce           bool
	RunOnceEmptyPolls int
}

// Consumer claims jobs one at a time, dispatches them and writes back the
// outcome according to the retry policy.
type Consumer struct {
	jobs       repository.JobRepository
	dispatcher usecase.JobDispatcher
	cfg        ConsumerConfig
	log        *zerolog.Logger
}

func NewConsumer(jobs repository.JobRepository, dispatcher usecase.JobDispatcher, cfg ConsumerConfig, logger *zerolog.Logger) *Consumer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = model.DefaultMaxRetries
	}
	if cfg.RunOnceEmptyPolls <= 0 {
		cfg.RunOnceEmptyPolls = 3
	}
	return &Consumer{jobs: jobs, dispatcher: dispatcher, cfg: cfg, log: logger}
}

// Run polls until ctx is cancelled. A job in flight when ctx is cancelled is
// finished and finalized before Run returns.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info().Dur("poll_interval", c.cfg.PollInterval).Bool("run_once", c.cfg.RunOnce).Msg("consumer started")
	defer c.log.Info().Msg("consumer stopped")

	emptyPolls := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		found, err := c.ProcessNext(ctx)
		wait := c.cfg.PollInterval
		switch {
		case err != nil:
			metrics.IncJobClaimError()
			c.log.Error().Err(err).Msg("job store error, backing off")
			wait = 2 * c.cfg.PollInterval
		case found:
			if c.cfg.RunOnce {
				return nil
			}
			emptyPolls = 0
			continue
		default:
			if c.cfg.RunOnce {
				emptyPolls++
				if emptyPolls >= c.cfg.RunOnceEmptyPolls {
					c.log.Info().Int("empty_polls", emptyPolls).Msg("no jobs, leaving run-once mode")
					return nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// ProcessNext claims and processes at most one job and reports whether one was
// claimed. Errors are store errors; handler failures only affect the job's status.
func (c *Consumer) ProcessNext(ctx context.Context) (bool, error) {
	job, err := c.jobs.ClaimNext(ctx, c.cfg.BotToken)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}

	jobType := string(job.JobType())
	// The attempt runs to completion even when the worker is told to stop.
	jctx := logging.WithJob(logging.WithTraceID(context.WithoutCancel(ctx), logging.NewTraceID()), job.ID, jobType)
	log := logging.With(jctx, c.log)
	log.Info().Int("retries", job.Retries).Msg("processing job")

	start := time.Now()
	herr := c.handle(jctx, job)
	elapsed := time.Since(start)

	status, retries := job.NextStatus(herr == nil, c.cfg.MaxRetries)
	if herr != nil && permanent(herr) {
		status = model.JobStatusFailed
	}

	if err := c.jobs.Finalize(jctx, repository.NoTX, job.ID, status, retries); err != nil {
		return true, fmt.Errorf("finalize job %d: %w", job.ID, err)
	}

	metrics.IncJobProcessed(jobType, string(status))
	metrics.ObserveJobDuration(jobType, elapsed)

	ev := log.Info()
	if herr != nil {
		ev = log.Warn().Err(herr)
	}
	ev.Str("status", string(status)).Int("retries", retries).Dur("duration", elapsed).Msg("job finished")
	return true, nil
}

// handle parses and dispatches the job while keeping its lease fresh.
func (c *Consumer) handle(ctx context.Context, job *model.Job) (err error) {
	payload, err := model.ParsePayload(job.JobType(), job.Payload)
	if err != nil {
		return err
	}

	stop := c.heartbeat(ctx, job.ID)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panic: %v", domain.ErrOperationFailed, r)
		}
	}()
	return c.dispatcher.Dispatch(ctx, job, payload)
}

// heartbeat refreshes the job's lease until the returned func is called.
func (c *Consumer) heartbeat(ctx context.Context, jobID int64) func() {
	if c.cfg.HeartbeatInterval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		t := time.NewTicker(c.cfg.HeartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := c.jobs.Heartbeat(ctx, repository.NoTX, jobID); err != nil {
					logging.With(ctx, c.log).Warn().Err(err).Msg("job heartbeat failed")
				}
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// permanent reports failures that retrying cannot fix.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrMalformedPayload) ||
		errors.Is(err, domain.ErrUnknownJobType) ||
		errors.Is(err, domain.ErrNonRetryable)
}

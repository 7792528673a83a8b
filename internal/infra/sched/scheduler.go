package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/EXON826/iglive-tgms-worker/internal/domain"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/logging"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/redis"
)

const lockKeyPrefix = "tgms:lock:sched:"

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context) error

type entry struct {
	name     string
	schedule cron.Schedule
	fn       JobFunc
}

// Scheduler runs named jobs on cron specs. Each run takes a distributed lock
// so that only one worker instance executes a given job at a time.
type Scheduler struct {
	parser  cron.Parser
	locker  redis.Locker
	lockTTL time.Duration
	entries []entry
	log     *zerolog.Logger
}

func NewScheduler(locker redis.Locker, lockTTL time.Duration, logger *zerolog.Logger) *Scheduler {
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	l := logger.With().Str("component", "scheduler").Logger()
	return &Scheduler{
		parser:  cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		locker:  locker,
		lockTTL: lockTTL,
		log:     &l,
	}
}

// Add registers fn under name. An empty spec disables the job.
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	if spec == "" {
		s.log.Info().Str("job", name).Msg("scheduled job disabled")
		return nil
	}
	schedule, err := s.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("parse schedule %q for %s: %w", spec, name, err)
	}
	s.entries = append(s.entries, entry{name: name, schedule: schedule, fn: fn})
	return nil
}

// Run blocks until ctx is cancelled, then waits for running jobs to return.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithParser(s.parser), cron.WithChain(cron.Recover(cronLogger{s.log})))
	for _, e := range s.entries {
		e := e
		c.Schedule(e.schedule, cron.SkipIfStillRunning(cronLogger{s.log})(cron.FuncJob(func() {
			s.RunNow(ctx, e.name, e.fn)
		})))
	}

	s.log.Info().Int("jobs", len(s.entries)).Msg("scheduler started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
	return nil
}

// RunNow executes fn once under the job's lock. A held lock skips the run.
func (s *Scheduler) RunNow(ctx context.Context, name string, fn JobFunc) {
	ctx = logging.WithTraceID(ctx, logging.NewTraceID())
	log := logging.With(ctx, s.log).With().Str("job", name).Logger()

	key := lockKeyPrefix + name
	token, err := s.locker.TryLock(ctx, key, s.lockTTL)
	if errors.Is(err, domain.ErrLockHeld) {
		log.Debug().Msg("scheduled job running elsewhere, skipping")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("acquire scheduler lock")
		return
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn().Err(err).Msg("release scheduler lock")
		}
	}()

	start := time.Now()
	if err := fn(ctx); err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("scheduled job failed")
		return
	}
	log.Debug().Dur("duration", time.Since(start)).Msg("scheduled job done")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ log *zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

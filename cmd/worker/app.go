package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/EXON826/iglive-tgms-worker/internal/application"
	"github.com/EXON826/iglive-tgms-worker/internal/config"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/adapter"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
	ucport "github.com/EXON826/iglive-tgms-worker/internal/domain/ports/usecase"
	pg "github.com/EXON826/iglive-tgms-worker/internal/infra/db/postgres"
	httpapi "github.com/EXON826/iglive-tgms-worker/internal/infra/http"
	red "github.com/EXON826/iglive-tgms-worker/internal/infra/redis"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/sched"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/telegram"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/worker"
	"github.com/EXON826/iglive-tgms-worker/internal/usecase"
)

type app struct {
	cfg *config.Config
	log *zerolog.Logger

	pool   *pgxpool.Pool
	redis  *red.Client
	locker red.Locker
	jobs   repository.JobRepository

	consumers []*worker.Consumer
	scheduler *sched.Scheduler
}

// newStoreApp connects only to the job store, for the one-shot commands.
func newStoreApp(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*app, error) {
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	tm := pg.NewTxManager(pool)
	return &app{cfg: cfg, log: logger, pool: pool, jobs: pg.NewJobRepo(pool, tm)}, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *zerolog.Logger, dryRun bool) (*app, error) {
	a, err := newStoreApp(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// ---- Redis (optional) ----
	var groups repository.ManagedGroupRepository = pg.NewManagedGroupRepo(a.pool)
	if cfg.Redis.URL != "" {
		a.redis, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.locker = red.NewLocker(a.redis)
		groups = pg.NewManagedGroupRepoCacheDecorator(groups, a.redis, cfg.Redis.TTL, logger)
	} else {
		logger.Warn().Msg("redis not configured: no group cache, scheduler lock is process-local")
		a.locker = red.NewLocalLocker()
	}

	// ---- Platform ----
	var platform adapter.PlatformClient
	if dryRun {
		platform = telegram.NewNoopClient(logger)
	} else {
		platform, err = telegram.NewClient(&cfg.Bot, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("telegram: %w", err)
		}
	}

	// ---- Repositories ----
	slots := pg.NewNotificationSlotRepo(a.pool)
	requests := pg.NewJoinRequestRepo(a.pool)
	users := pg.NewTeleUserRepo(a.pool)
	links := pg.NewRecipientLinkRepo(a.pool)

	// ---- Use cases ----
	bc := cfg.Broadcast
	slotManager := usecase.NewSlotManager(slots, bc.DebounceWindow, logger)
	// One limiter per bot token: the platform's rate limit is per bot, however
	// many consumers share it.
	limiter := rate.NewLimiter(rate.Every(bc.MinSendInterval), 1)
	groupUC := usecase.NewGroupUseCase(groups, users, platform, usecase.GroupOptions{MemberCountDelay: bc.MemberCountDelay}, logger)
	joinUC := usecase.NewJoinRequestUseCase(groups, requests, users, platform, logger)

	// ---- Consumers ----
	wc := cfg.Worker
	a.consumers = newConsumers(consumerCount(wc), a.jobs, func() ucport.JobDispatcher {
		broadcastUC := usecase.NewBroadcastUseCase(
			groups,
			slotManager,
			platform,
			limiter,
			usecase.BroadcastOptions{InterGroupDelay: bc.InterGroupDelay, FailureThreshold: bc.FailureThreshold},
			logger,
		)
		noticeUC := usecase.NewLiveNoticeUseCase(links, broadcastUC, bc.JoinButtonCaption, logger)
		return application.NewJobDispatcher(joinUC, groupUC, noticeUC, logger)
	}, worker.ConsumerConfig{
		BotToken:          cfg.Bot.Token,
		PollInterval:      wc.PollInterval,
		MaxRetries:        wc.MaxRetries,
		HeartbeatInterval: wc.HeartbeatInterval,
		RunOnce:           wc.RunOnce,
		RunOnceEmptyPolls: wc.RunOnceEmptyPolls,
	}, logger)

	// ---- Scheduler ----
	a.scheduler = sched.NewScheduler(a.locker, wc.StaleAfter, logger)
	sweeper := sched.NewStaleJobSweeper(a.jobs, cfg.Bot.Token, wc.StaleAfter, wc.MaxRetries, logger)
	if err := a.scheduler.Add("stale_job_sweep", cfg.Scheduler.StaleSweepCron, sweeper.Sweep); err != nil {
		a.Close()
		return nil, err
	}
	counts := sched.NewJobEnqueuer(a.jobs, cfg.Bot.Token, model.JobTypeUpdateMemberCounts)
	if err := a.scheduler.Add("member_count_refresh", cfg.Scheduler.MemberCountCron, counts.Enqueue); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// consumerCount is the number of consumer loops to start. Run-once mode
// handles a single job, so it never needs more than one.
func consumerCount(wc config.WorkerConfig) int {
	if wc.RunOnce || wc.Concurrency <= 0 {
		return 1
	}
	return wc.Concurrency
}

// newConsumers builds n consumers, each with a dispatcher of its own. A
// broadcast engine handles one broadcast at a time, so engines are never
// shared between consumers.
func newConsumers(n int, jobs repository.JobRepository, newDispatcher func() ucport.JobDispatcher, cfg worker.ConsumerConfig, logger *zerolog.Logger) []*worker.Consumer {
	consumers := make([]*worker.Consumer, 0, n)
	for i := 0; i < n; i++ {
		consumers = append(consumers, worker.NewConsumer(jobs, newDispatcher(), cfg, logger))
	}
	return consumers
}

// Run blocks until ctx is cancelled or, in run-once mode, until the consumer
// is done.
func (a *app) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	pool := worker.NewPool(len(a.consumers), a.log)
	g.Go(func() error {
		defer cancel()
		return pool.Run(gctx, func(ctx context.Context, id int) error { return a.consumers[id].Run(ctx) })
	})

	if !a.cfg.Worker.RunOnce {
		g.Go(func() error { return a.scheduler.Run(gctx) })
		stats := sched.NewPoolStatsReporter(a.cfg.Scheduler.PoolStatsEvery, sched.PgxPoolStats(a.pool), a.log)
		g.Go(func() error { return stats.Run(gctx) })

		if a.cfg.Admin.Port > 0 {
			checks := map[string]httpapi.Pinger{"postgres": a.pool}
			if a.redis != nil {
				checks["redis"] = a.redis
			}
			srv := httpapi.NewServer(a.cfg.Admin.Port, checks, a.log)
			g.Go(func() error { return srv.Run(gctx) })
		}
	}

	err := g.Wait()
	a.log.Info().Err(err).Msg("worker stopped")
	return err
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"github.com/EXON826/iglive-tgms-worker/internal/infra/metrics"
)

// PoolStatsFunc returns total, idle, in-use and max connection counts.
type PoolStatsFunc func() (total, idle, inUse, maxConns int32)

// PgxPoolStats reads the counts from a pgx pool.
func PgxPoolStats(pool *pgxpool.Pool) PoolStatsFunc {
	return func() (int32, int32, int32, int32) {
		s := pool.Stat()
		return s.TotalConns(), s.IdleConns(), s.AcquiredConns(), s.MaxConns()
	}
}

// PoolStatsReporter periodically publishes connection pool gauges.
type PoolStatsReporter struct {
	interval time.Duration
	stats    PoolStatsFunc
	log      *zerolog.Logger
}

func NewPoolStatsReporter(interval time.Duration, stats PoolStatsFunc, logger *zerolog.Logger) *PoolStatsReporter {
	l := logger.With().Str("component", "PoolStatsReporter").Logger()
	return &PoolStatsReporter{interval: interval, stats: stats, log: &l}
}

func (r *PoolStatsReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.report()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *PoolStatsReporter) report() {
	total, idle, inUse, maxConns := r.stats()
	metrics.SetDBPoolStats(total, idle, inUse, maxConns)
	r.log.Trace().Int32("total", total).Int32("idle", idle).Int32("in_use", inUse).Msg("pool stats")
}

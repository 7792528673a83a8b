package worker

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Task is one long-running worker loop. id is the worker's index in the pool.
type Task func(ctx context.Context, id int) error

// Pool runs a fixed number of copies of a task. The first failing copy cancels
// the others.
type Pool struct {
	n   int
	log *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{n: workers, log: logger}
}

// Run blocks until every copy of task has returned.
func (p *Pool) Run(ctx context.Context, task Task) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.n; i++ {
		id := i
		g.Go(func() error {
			p.log.Debug().Int("worker", id).Msg("worker started")
			err := task(ctx, id)
			if err != nil {
				p.log.Error().Err(err).Int("worker", id).Msg("worker stopped with error")
			} else {
				p.log.Debug().Int("worker", id).Msg("worker stopped")
			}
			return err
		})
	}
	return g.Wait()
}

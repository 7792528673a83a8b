package usecase

import (
	"context"

	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
)

// JobDispatcher routes a claimed job's parsed payload to its handler. A nil
// error means the job completed.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job *model.Job, payload model.JobPayload) error
}

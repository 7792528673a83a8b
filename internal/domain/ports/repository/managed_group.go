package repository

import (
	"context"

	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
)

type ManagedGroupRepository interface {
	FindByID(ctx context.Context, tx Tx, groupID int64) (*model.ManagedGroup, error)
	// ListActive returns active groups ordered by group id.
	ListActive(ctx context.Context, tx Tx) ([]*model.ManagedGroup, error)
	// Upsert inserts the group or updates it, always flipping it back to active.
	Upsert(ctx context.Context, tx Tx, g *model.ManagedGroup) error
	UpdateMemberCount(ctx context.Context, tx Tx, groupID int64, count int) error
	ResetFailures(ctx context.Context, tx Tx, groupID int64) error
	// IncrementFailures bumps the consecutive-failure counter and returns the new value.
	IncrementFailures(ctx context.Context, tx Tx, groupID int64) (int, error)
	Deactivate(ctx context.Context, tx Tx, groupID int64, reason string) error
}

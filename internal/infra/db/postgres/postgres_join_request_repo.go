package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/EXON826/iglive-tgms-worker/internal/domain"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
)

var _ repository.JoinRequestRepository = (*joinRequestRepo)(nil)

type joinRequestRepo struct {
	pool *pgxpool.Pool
}

func NewJoinRequestRepo(pool *pgxpool.Pool) *joinRequestRepo {
	return &joinRequestRepo{pool: pool}
}

func (r *joinRequestRepo) Insert(ctx context.Context, tx repository.Tx, userID, chatID int64) error {
	const q = `
INSERT INTO join_requests (user_id, chat_id, status, created_at)
VALUES ($1, $2, 'pending', NOW())
ON CONFLICT (user_id, chat_id, status) DO NOTHING;`

	if _, err := execSQL(ctx, r.pool, tx, q, userID, chatID); err != nil {
		return fmt.Errorf("insert join request %d->%d: %w", userID, chatID, err)
	}
	return nil
}

// UpdateStatus moves the pending row. A row already carrying status makes the
// unique constraint fire, reported as domain.ErrAlreadyExists.
func (r *joinRequestRepo) UpdateStatus(ctx context.Context, tx repository.Tx, userID, chatID int64, status model.JoinRequestStatus) error {
	const q = `
UPDATE join_requests SET status = $3
WHERE user_id = $1 AND chat_id = $2 AND status = 'pending';`

	tag, err := execSQL(ctx, r.pool, tx, q, userID, chatID, status)
	if err != nil {
		return fmt.Errorf("update join request %d->%d: %w", userID, chatID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update join request %d->%d: %w", userID, chatID, domain.ErrNotFound)
	}
	return nil
}

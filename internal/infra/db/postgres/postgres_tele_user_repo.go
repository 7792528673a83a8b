package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/EXON826/iglive-tgms-worker/internal/domain"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
)

var _ repository.TeleUserRepository = (*teleUserRepo)(nil)

type teleUserRepo struct {
	pool *pgxpool.Pool
}

func NewTeleUserRepo(pool *pgxpool.Pool) *teleUserRepo {
	return &teleUserRepo{pool: pool}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (r *teleUserRepo) EnsureExists(ctx context.Context, tx repository.Tx, u *model.TeleUser) error {
	if u == nil || u.ID == 0 {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO all_tele_users (id, username, first_name, last_name, updated_at, last_seen)
VALUES ($1, $2, $3, $4, NOW(), NOW())
ON CONFLICT (id) DO UPDATE SET
  username = COALESCE(EXCLUDED.username, all_tele_users.username),
  first_name = COALESCE(EXCLUDED.first_name, all_tele_users.first_name),
  last_name = COALESCE(EXCLUDED.last_name, all_tele_users.last_name),
  updated_at = NOW(),
  last_seen = NOW();`

	if _, err := execSQL(ctx, r.pool, tx, q, u.ID, nullIfEmpty(u.Username), nullIfEmpty(u.FirstName), nullIfEmpty(u.LastName)); err != nil {
		return fmt.Errorf("ensure tele user %d: %w", u.ID, err)
	}
	return nil
}

func (r *teleUserRepo) IsInManagedGroup(ctx context.Context, tx repository.Tx, userID int64) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx,
		`SELECT EXISTS (SELECT 1 FROM all_tele_users WHERE id = $1 AND groups IS NOT NULL);`, userID)
	if err != nil {
		return false, err
	}
	var in bool
	if err := row.Scan(&in); err != nil {
		return false, scanErr(err)
	}
	return in, nil
}

func (r *teleUserRepo) SetGroup(ctx context.Context, tx repository.Tx, u *model.TeleUser, groupID int64) error {
	if u == nil || u.ID == 0 {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO all_tele_users (id, username, first_name, last_name, groups, updated_at, last_seen)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
ON CONFLICT (id) DO UPDATE SET
  username = COALESCE(EXCLUDED.username, all_tele_users.username),
  first_name = COALESCE(EXCLUDED.first_name, all_tele_users.first_name),
  last_name = COALESCE(EXCLUDED.last_name, all_tele_users.last_name),
  groups = EXCLUDED.groups,
  updated_at = NOW(),
  last_seen = NOW();`

	if _, err := execSQL(ctx, r.pool, tx, q, u.ID, nullIfEmpty(u.Username), nullIfEmpty(u.FirstName), nullIfEmpty(u.LastName), groupID); err != nil {
		return fmt.Errorf("set group for tele user %d: %w", u.ID, err)
	}
	gid := groupID
	u.GroupID = &gid
	return nil
}

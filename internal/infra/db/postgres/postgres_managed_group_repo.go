package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/EXON826/iglive-tgms-worker/internal/domain"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
)

var _ repository.ManagedGroupRepository = (*managedGroupRepo)(nil)

type managedGroupRepo struct {
	pool *pgxpool.Pool
}

func NewManagedGroupRepo(pool *pgxpool.Pool) *managedGroupRepo {
	return &managedGroupRepo{pool: pool}
}

const managedGroupColumns = `
group_id, COALESCE(title, ''), admin_user_id, COALESCE(phase, 'growth'), is_active,
COALESCE(failure_count, 0), COALESCE(member_count, 0), COALESCE(final_message_allowed, true),
COALESCE(deactivation_reason, ''), created_at, updated_at`

func scanManagedGroup(row pgx.Row) (*model.ManagedGroup, error) {
	var g model.ManagedGroup
	if err := row.Scan(
		&g.GroupID, &g.Title, &g.AdminUserID, &g.Phase, &g.IsActive,
		&g.FailureCount, &g.MemberCount, &g.FinalMessageAllowed,
		&g.DeactivationReason, &g.CreatedAt, &g.UpdatedAt,
	); err != nil {
		return nil, scanErr(err)
	}
	return &g, nil
}

func (r *managedGroupRepo) FindByID(ctx context.Context, tx repository.Tx, groupID int64) (*model.ManagedGroup, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+managedGroupColumns+` FROM managed_groups WHERE group_id = $1;`, groupID)
	if err != nil {
		return nil, err
	}
	return scanManagedGroup(row)
}

func (r *managedGroupRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.ManagedGroup, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+managedGroupColumns+` FROM managed_groups WHERE is_active = true ORDER BY group_id;`)
	if err != nil {
		return nil, fmt.Errorf("list active groups: %w", err)
	}
	defer rows.Close()

	var out []*model.ManagedGroup
	for rows.Next() {
		g, err := scanManagedGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *managedGroupRepo) Upsert(ctx context.Context, tx repository.Tx, g *model.ManagedGroup) error {
	if g == nil || g.GroupID == 0 {
		return domain.ErrInvalidArgument
	}
	phase := g.Phase
	if phase == "" {
		phase = model.GroupPhaseGrowth
	}
	var title interface{}
	if g.Title != "" {
		title = g.Title
	}
	const q = `
INSERT INTO managed_groups (group_id, admin_user_id, title, phase, is_active, final_message_allowed)
VALUES ($1, $2, $3, $4, true, $5)
ON CONFLICT (group_id) DO UPDATE SET
  title = COALESCE(EXCLUDED.title, managed_groups.title),
  admin_user_id = COALESCE(EXCLUDED.admin_user_id, managed_groups.admin_user_id),
  phase = COALESCE(EXCLUDED.phase, managed_groups.phase),
  final_message_allowed = COALESCE(EXCLUDED.final_message_allowed, managed_groups.final_message_allowed),
  is_active = true,
  failure_count = 0,
  deactivation_reason = NULL,
  updated_at = NOW()
RETURNING created_at, updated_at;`

	row, err := pickRow(ctx, r.pool, tx, q, g.GroupID, g.AdminUserID, title, phase, g.FinalMessageAllowed)
	if err != nil {
		return err
	}
	if err := row.Scan(&g.CreatedAt, &g.UpdatedAt); err != nil {
		return fmt.Errorf("upsert group %d: %w", g.GroupID, scanErr(err))
	}
	g.IsActive = true
	g.FailureCount = 0
	g.DeactivationReason = ""
	g.Phase = phase
	return nil
}

func (r *managedGroupRepo) UpdateMemberCount(ctx context.Context, tx repository.Tx, groupID int64, count int) error {
	return r.execOne(ctx, tx, "update member count", groupID,
		`UPDATE managed_groups SET member_count = $2, updated_at = NOW() WHERE group_id = $1;`, groupID, count)
}

func (r *managedGroupRepo) ResetFailures(ctx context.Context, tx repository.Tx, groupID int64) error {
	return r.execOne(ctx, tx, "reset failures", groupID,
		`UPDATE managed_groups SET failure_count = 0 WHERE group_id = $1;`, groupID)
}

func (r *managedGroupRepo) IncrementFailures(ctx context.Context, tx repository.Tx, groupID int64) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `
UPDATE managed_groups SET failure_count = COALESCE(failure_count, 0) + 1, updated_at = NOW()
WHERE group_id = $1
RETURNING failure_count;`, groupID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("increment failures for group %d: %w", groupID, scanErr(err))
	}
	return n, nil
}

func (r *managedGroupRepo) Deactivate(ctx context.Context, tx repository.Tx, groupID int64, reason string) error {
	return r.execOne(ctx, tx, "deactivate group", groupID,
		`UPDATE managed_groups SET is_active = false, deactivation_reason = $2, updated_at = NOW() WHERE group_id = $1;`,
		groupID, reason)
}

func (r *managedGroupRepo) execOne(ctx context.Context, tx repository.Tx, op string, groupID int64, q string, args ...interface{}) error {
	tag, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return fmt.Errorf("%s %d: %w", op, groupID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", op, groupID, domain.ErrNotFound)
	}
	return nil
}

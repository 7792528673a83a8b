package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/EXON826/iglive-tgms-worker/internal/domain"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
)

var _ repository.NotificationSlotRepository = (*notificationSlotRepo)(nil)

// notificationSlotRepo stores slots in live_notification_messages, whose
// group_id column is text.
type notificationSlotRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationSlotRepo(pool *pgxpool.Pool) *notificationSlotRepo {
	return &notificationSlotRepo{pool: pool}
}

func slotKey(groupID int64) string { return strconv.FormatInt(groupID, 10) }

// Claim is a single statement: the conflicting row is only touched when its
// claim is at least window old, so two racing callers cannot both win.
func (r *notificationSlotRepo) Claim(ctx context.Context, tx repository.Tx, groupID int64, recipient string, window time.Duration) (model.SlotClaim, error) {
	const q = `
INSERT INTO live_notification_messages (group_id, username, message_id, created_at)
VALUES ($1, $2, 0, NOW())
ON CONFLICT (group_id, username) DO UPDATE SET created_at = NOW()
WHERE live_notification_messages.created_at <= NOW() - make_interval(secs => $3)
RETURNING COALESCE(message_id, 0);`

	row, err := pickRow(ctx, r.pool, tx, q, slotKey(groupID), recipient, window.Seconds())
	if err != nil {
		return model.SlotClaim{}, err
	}
	var prev int64
	if err := row.Scan(&prev); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SlotClaim{Claimed: false}, nil
		}
		return model.SlotClaim{}, fmt.Errorf("claim slot %d/%s: %w", groupID, recipient, scanErr(err))
	}
	return model.SlotClaim{Claimed: true, PreviousMessageID: int(prev)}, nil
}

func (r *notificationSlotRepo) Save(ctx context.Context, tx repository.Tx, groupID int64, recipient string, messageID int) error {
	const q = `
INSERT INTO live_notification_messages (group_id, username, message_id, created_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (group_id, username) DO UPDATE SET
  message_id = EXCLUDED.message_id,
  created_at = NOW();`

	if _, err := execSQL(ctx, r.pool, tx, q, slotKey(groupID), recipient, int64(messageID)); err != nil {
		return fmt.Errorf("save slot %d/%s: %w", groupID, recipient, err)
	}
	return nil
}

func (r *notificationSlotRepo) Find(ctx context.Context, tx repository.Tx, groupID int64, recipient string) (*model.NotificationSlot, error) {
	row, err := pickRow(ctx, r.pool, tx,
		`SELECT COALESCE(message_id, 0), created_at FROM live_notification_messages WHERE group_id = $1 AND username = $2;`,
		slotKey(groupID), recipient)
	if err != nil {
		return nil, err
	}
	s := model.NotificationSlot{GroupID: groupID, Recipient: recipient}
	var msgID int64
	if err := row.Scan(&msgID, &s.ClaimedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, scanErr(err)
	}
	s.MessageID = int(msgID)
	return &s, nil
}

package repository

import (
	"context"
	"time"

	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
)

type NotificationSlotRepository interface {
	// Claim takes the (group, recipient) slot unless it was claimed within
	// window. The stored message id is kept and returned as the previous one.
	Claim(ctx context.Context, tx Tx, groupID int64, recipient string, window time.Duration) (model.SlotClaim, error)
	// Save unconditionally records the message id and refreshes the claim time.
	Save(ctx context.Context, tx Tx, groupID int64, recipient string, messageID int) error
	Find(ctx context.Context, tx Tx, groupID int64, recipient string) (*model.NotificationSlot, error)
}

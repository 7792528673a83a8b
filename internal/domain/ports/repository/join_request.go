package repository

import (
	"context"

	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
)

type JoinRequestRepository interface {
	// Insert records a pending request; a duplicate pending row is ignored.
	Insert(ctx context.Context, tx Tx, userID, chatID int64) error
	// UpdateStatus moves the pending request of (user, chat) to status.
	UpdateStatus(ctx context.Context, tx Tx, userID, chatID int64, status model.JoinRequestStatus) error
}

type TeleUserRepository interface {
	EnsureExists(ctx context.Context, tx Tx, u *model.TeleUser) error
	// IsInManagedGroup reports whether the user is already tracked in any managed group.
	IsInManagedGroup(ctx context.Context, tx Tx, userID int64) (bool, error)
	SetGroup(ctx context.Context, tx Tx, u *model.TeleUser, groupID int64) error
}

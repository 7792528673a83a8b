package repository

import (
	"context"

	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
)

type RecipientLinkRepository interface {
	// FindLatestByUsername returns the newest link record for username.
	FindLatestByUsername(ctx context.Context, tx Tx, username string) (*model.RecipientLink, error)
	// AdvanceLinkIndex moves the link cursor one step around a list of n
	// entries and returns the index to use.
	AdvanceLinkIndex(ctx context.Context, tx Tx, id int64, n int) (int, error)
	AdvanceImageIndex(ctx context.Context, tx Tx, id int64, n int) (int, error)
}

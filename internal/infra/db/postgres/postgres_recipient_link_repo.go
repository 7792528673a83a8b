package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/EXON826/iglive-tgms-worker/internal/domain"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
)

var _ repository.RecipientLinkRepository = (*recipientLinkRepo)(nil)

type recipientLinkRepo struct {
	pool *pgxpool.Pool
}

func NewRecipientLinkRepo(pool *pgxpool.Pool) *recipientLinkRepo {
	return &recipientLinkRepo{pool: pool}
}

func (r *recipientLinkRepo) FindLatestByUsername(ctx context.Context, tx repository.Tx, username string) (*model.RecipientLink, error) {
	const q = `
SELECT id, username, COALESCE(link, ''), COALESCE(general_link, ''), COALESCE(monetized_url, ''),
       COALESCE(imgbb_url, ''), last_used_link_index, last_used_image_index, timestamp
FROM insta_links
WHERE username = $1
ORDER BY timestamp DESC
LIMIT 1;`

	row, err := pickRow(ctx, r.pool, tx, q, username)
	if err != nil {
		return nil, err
	}
	var l model.RecipientLink
	if err := row.Scan(
		&l.ID, &l.Username, &l.Link, &l.GeneralLink, &l.MonetizedURLs,
		&l.ImageURLs, &l.LastUsedLinkIndex, &l.LastUsedImageIndex, &l.Timestamp,
	); err != nil {
		return nil, scanErr(err)
	}
	return &l, nil
}

func (r *recipientLinkRepo) AdvanceLinkIndex(ctx context.Context, tx repository.Tx, id int64, n int) (int, error) {
	return r.advance(ctx, tx, "last_used_link_index", id, n)
}

func (r *recipientLinkRepo) AdvanceImageIndex(ctx context.Context, tx repository.Tx, id int64, n int) (int, error) {
	return r.advance(ctx, tx, "last_used_image_index", id, n)
}

// advance moves a cursor column one step around n entries in one statement so
// concurrent senders still rotate evenly. column is never user input.
func (r *recipientLinkRepo) advance(ctx context.Context, tx repository.Tx, column string, id int64, n int) (int, error) {
	if n <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	q := fmt.Sprintf(`
UPDATE insta_links
SET %[1]s = (COALESCE(%[1]s, -1) %% $2 + $2 + 1) %% $2
WHERE id = $1
RETURNING %[1]s;`, column)

	row, err := pickRow(ctx, r.pool, tx, q, id, n)
	if err != nil {
		return 0, err
	}
	var next int
	if err := row.Scan(&next); err != nil {
		return 0, fmt.Errorf("advance %s for link %d: %w", column, id, scanErr(err))
	}
	return next, nil
}

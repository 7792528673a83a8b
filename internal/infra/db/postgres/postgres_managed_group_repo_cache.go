package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/metrics"
	red "github.com/EXON826/iglive-tgms-worker/internal/infra/redis"
)

var _ repository.ManagedGroupRepository = (*managedGroupRepoCacheDecorator)(nil)

// managedGroupRepoCacheDecorator caches FindByID, which the join handler hits
// once per request. Every write drops the entry before touching the database.
type managedGroupRepoCacheDecorator struct {
	inner repository.ManagedGroupRepository
	cache red.RedisClient
	ttl   time.Duration
	log   zerolog.Logger
}

func NewManagedGroupRepoCacheDecorator(inner repository.ManagedGroupRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.ManagedGroupRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &managedGroupRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger.With().Str("component", "managed_group_cache").Logger(),
	}
}

func groupCacheKey(groupID int64) string { return fmt.Sprintf("tgms:group:%d", groupID) }

func (d *managedGroupRepoCacheDecorator) invalidate(ctx context.Context, groupID int64) {
	if err := d.cache.Del(ctx, groupCacheKey(groupID)); err != nil {
		d.log.Warn().Err(err).Int64("group_id", groupID).Msg("cache invalidation failed")
	}
}

func (d *managedGroupRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, groupID int64) (*model.ManagedGroup, error) {
	// Reads inside a transaction must see the transaction's own writes.
	if tx != nil {
		metrics.IncCacheRequest("managed_group", "bypass")
		return d.inner.FindByID(ctx, tx, groupID)
	}

	key := groupCacheKey(groupID)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var g model.ManagedGroup
		if json.Unmarshal([]byte(val), &g) == nil {
			metrics.IncCacheRequest("managed_group", "hit")
			return &g, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		d.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	metrics.IncCacheRequest("managed_group", "miss")
	g, err := d.inner.FindByID(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(g); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return g, nil
}

// ListActive always goes to the database: the broadcast engine needs the
// current failure counters.
func (d *managedGroupRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.ManagedGroup, error) {
	metrics.IncCacheRequest("managed_group_list", "bypass")
	return d.inner.ListActive(ctx, tx)
}

func (d *managedGroupRepoCacheDecorator) Upsert(ctx context.Context, tx repository.Tx, g *model.ManagedGroup) error {
	if g != nil {
		d.invalidate(ctx, g.GroupID)
	}
	return d.inner.Upsert(ctx, tx, g)
}

func (d *managedGroupRepoCacheDecorator) UpdateMemberCount(ctx context.Context, tx repository.Tx, groupID int64, count int) error {
	d.invalidate(ctx, groupID)
	return d.inner.UpdateMemberCount(ctx, tx, groupID, count)
}

func (d *managedGroupRepoCacheDecorator) ResetFailures(ctx context.Context, tx repository.Tx, groupID int64) error {
	d.invalidate(ctx, groupID)
	return d.inner.ResetFailures(ctx, tx, groupID)
}

func (d *managedGroupRepoCacheDecorator) IncrementFailures(ctx context.Context, tx repository.Tx, groupID int64) (int, error) {
	d.invalidate(ctx, groupID)
	return d.inner.IncrementFailures(ctx, tx, groupID)
}

func (d *managedGroupRepoCacheDecorator) Deactivate(ctx context.Context, tx repository.Tx, groupID int64, reason string) error {
	d.invalidate(ctx, groupID)
	return d.inner.Deactivate(ctx, tx, groupID, reason)
}

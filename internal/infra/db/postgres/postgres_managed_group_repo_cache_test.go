//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
)

func TestManagedGroupRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	group := &model.ManagedGroup{GroupID: -1001, Title: "Live Fans", IsActive: true, FinalMessageAllowed: true}

	t.Run("FindByID should fetch from DB and set cache on miss", func(t *testing.T) {
		innerCalled := false
		var cacheSets sync.Map

		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return "", redis.Nil
			},
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				cacheSets.Store(key, value)
				return nil
			},
		}
		inner := &mockInnerGroupRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, groupID int64) (*model.ManagedGroup, error) {
				innerCalled = true
				return group, nil
			},
		}

		decorator := NewManagedGroupRepoCacheDecorator(inner, mockRedis, time.Minute, &logger)
		result, err := decorator.FindByID(ctx, nil, -1001)

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !innerCalled {
			t.Error("inner repository should be called on a cache miss")
		}
		if _, ok := cacheSets.Load("tgms:group:-1001"); !ok {
			t.Error("expected the cache to be warmed")
		}
		if result == nil || result.Title != "Live Fans" {
			t.Error("did not return the group from the inner repository")
		}
	})

	t.Run("FindByID should serve a hit without touching the DB", func(t *testing.T) {
		cached, _ := json.Marshal(group)
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return string(cached), nil
			},
		}
		inner := &mockInnerGroupRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, groupID int64) (*model.ManagedGroup, error) {
				t.Fatal("inner repository must not be called on a hit")
				return nil, nil
			},
		}

		decorator := NewManagedGroupRepoCacheDecorator(inner, mockRedis, time.Minute, &logger)
		result, err := decorator.FindByID(ctx, nil, -1001)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.GroupID != -1001 || !result.IsActive {
			t.Errorf("unexpected cached group %+v", result)
		}
	})

	t.Run("Deactivate should invalidate the group key", func(t *testing.T) {
		var deleted []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deleted = append(deleted, keys...)
				return nil
			},
		}
		var gotReason string
		inner := &mockInnerGroupRepo{
			DeactivateFunc: func(ctx context.Context, tx repository.Tx, groupID int64, reason string) error {
				gotReason = reason
				return nil
			},
		}

		decorator := NewManagedGroupRepoCacheDecorator(inner, mockRedis, time.Minute, &logger)
		if err := decorator.Deactivate(ctx, nil, -1001, "Bot kicked"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(deleted) != 1 || deleted[0] != "tgms:group:-1001" {
			t.Errorf("expected group key to be invalidated, got %v", deleted)
		}
		if gotReason != "Bot kicked" {
			t.Errorf("expected reason to be forwarded, got %q", gotReason)
		}
	})

	t.Run("ListActive should bypass the cache", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				t.Fatal("cache must not be read for ListActive")
				return "", nil
			},
		}
		inner := &mockInnerGroupRepo{
			ListActiveFunc: func(ctx context.Context, tx repository.Tx) ([]*model.ManagedGroup, error) {
				return []*model.ManagedGroup{group}, nil
			},
		}

		decorator := NewManagedGroupRepoCacheDecorator(inner, mockRedis, time.Minute, &logger)
		groups, err := decorator.ListActive(ctx, nil)
		if err != nil || len(groups) != 1 {
			t.Fatalf("expected one group, got %v (err %v)", groups, err)
		}
	})
}

//go:build !integration

package postgres

import (
	"context"
	"time"

	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
	red "github.com/EXON826/iglive-tgms-worker/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerGroupRepo mocks the database repository that the decorator wraps.
type mockInnerGroupRepo struct {
	FindByIDFunc          func(ctx context.Context, tx repository.Tx, groupID int64) (*model.ManagedGroup, error)
	ListActiveFunc        func(ctx context.Context, tx repository.Tx) ([]*model.ManagedGroup, error)
	UpsertFunc            func(ctx context.Context, tx repository.Tx, g *model.ManagedGroup) error
	UpdateMemberCountFunc func(ctx context.Context, tx repository.Tx, groupID int64, count int) error
	ResetFailuresFunc     func(ctx context.Context, tx repository.Tx, groupID int64) error
	IncrementFailuresFunc func(ctx context.Context, tx repository.Tx, groupID int64) (int, error)
	DeactivateFunc        func(ctx context.Context, tx repository.Tx, groupID int64, reason string) error
}

func (m *mockInnerGroupRepo) FindByID(ctx context.Context, tx repository.Tx, groupID int64) (*model.ManagedGroup, error) {
	return m.FindByIDFunc(ctx, tx, groupID)
}
func (m *mockInnerGroupRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.ManagedGroup, error) {
	return m.ListActiveFunc(ctx, tx)
}
func (m *mockInnerGroupRepo) Upsert(ctx context.Context, tx repository.Tx, g *model.ManagedGroup) error {
	return m.UpsertFunc(ctx, tx, g)
}
func (m *mockInnerGroupRepo) UpdateMemberCount(ctx context.Context, tx repository.Tx, groupID int64, count int) error {
	return m.UpdateMemberCountFunc(ctx, tx, groupID, count)
}
func (m *mockInnerGroupRepo) ResetFailures(ctx context.Context, tx repository.Tx, groupID int64) error {
	return m.ResetFailuresFunc(ctx, tx, groupID)
}
func (m *mockInnerGroupRepo) IncrementFailures(ctx context.Context, tx repository.Tx, groupID int64) (int, error) {
	return m.IncrementFailuresFunc(ctx, tx, groupID)
}
func (m *mockInnerGroupRepo) Deactivate(ctx context.Context, tx repository.Tx, groupID int64, reason string) error {
	return m.DeactivateFunc(ctx, tx, groupID, reason)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc   func(ctx context.Context, key string) (string, error)
	SetFunc   func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc   func(ctx context.Context, keys ...string) error
	PingFunc  func(ctx context.Context) error
	CloseFunc func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Close() error                   { return m.CloseFunc() }

//go:build !integration

package postgres

import (
	"context"
	"time"

	"jobboard-premium/internal/domain/model"
	"jobboard-premium/internal/domain/ports/repository"
	red "jobboard-premium/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerUserRepo mocks the database repository that the User decorator wraps.
type mockInnerUserRepo struct {
	EnsureFunc   func(ctx context.Context, tx repository.Tx, u *model.User) (bool, error)
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
	SetLevelFunc func(ctx context.Context, tx repository.Tx, id string, level model.UserLevel) (bool, error)
}

func (m *mockInnerUserRepo) Ensure(ctx context.Context, tx repository.Tx, u *model.User) (bool, error) {
	return m.EnsureFunc(ctx, tx, u)
}
func (m *mockInnerUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerUserRepo) SetLevel(ctx context.Context, tx repository.Tx, id string, level model.UserLevel) (bool, error) {
	return m.SetLevelFunc(ctx, tx, id, level)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	TTLFunc    func(ctx context.Context, key string) (time.Duration, error)
	CloseFunc  func() error
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
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	return m.TTLFunc(ctx, key)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }

//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"jobboard-premium/internal/domain/model"
	"jobboard-premium/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

func TestUserRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: "user-123", Email: "seeker@example.com", Level: model.UserLevelFree}

	t.Run("FindByID should fetch from DB and set cache on miss", func(t *testing.T) {
		innerRepoCalled := false
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
		mockInnerRepo := &mockInnerUserRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
				innerRepoCalled = true
				return user, nil
			},
		}

		decorator := NewUserRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute)

		result, err := decorator.FindByID(ctx, nil, "user-123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !innerRepoCalled {
			t.Error("inner repository should be called on a cache miss")
		}
		if _, ok := cacheSets.Load("user:id:user-123"); !ok {
			t.Error("expected the cache to be warmed")
		}
		if result == nil || result.ID != "user-123" {
			t.Error("did not return the correct user from the inner repository")
		}
	})

	t.Run("FindByID should serve hits without touching the DB", func(t *testing.T) {
		cached, _ := json.Marshal(&model.User{ID: "user-123", Email: "seeker@example.com", Level: model.UserLevelPremium})
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return string(cached), nil
			},
		}
		mockInnerRepo := &mockInnerUserRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
				t.Fatal("inner repository must not be called on a hit")
				return nil, nil
			},
		}

		result, err := NewUserRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute).FindByID(ctx, nil, "user-123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Level != model.UserLevelPremium {
			t.Errorf("expected cached level, got %s", result.Level)
		}
	})

	t.Run("FindByID inside a transaction bypasses the cache", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				t.Fatal("cache must not be read inside a transaction")
				return "", nil
			},
		}
		called := false
		mockInnerRepo := &mockInnerUserRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
				called = true
				return user, nil
			},
		}

		if _, err := NewUserRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute).FindByID(ctx, struct{}{}, "user-123"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !called {
			t.Error("inner repository should be used")
		}
	})

	t.Run("SetLevel should invalidate after the write", func(t *testing.T) {
		var order []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				order = append(order, "del:"+keys[0])
				return nil
			},
		}
		mockInnerRepo := &mockInnerUserRepo{
			SetLevelFunc: func(ctx context.Context, tx repository.Tx, id string, level model.UserLevel) (bool, error) {
				order = append(order, "write")
				return true, nil
			},
		}

		changed, err := NewUserRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute).SetLevel(ctx, nil, "user-123", model.UserLevelPremium)
		if err != nil || !changed {
			t.Fatalf("expected changed=true, got %v / %v", changed, err)
		}
		if len(order) != 2 || order[0] != "write" || order[1] != "del:user:id:user-123" {
			t.Errorf("unexpected call order %v", order)
		}
	})

	t.Run("SetLevel failure leaves the cache alone", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				t.Fatal("cache must not be touched on failure")
				return nil
			},
		}
		mockInnerRepo := &mockInnerUserRepo{
			SetLevelFunc: func(ctx context.Context, tx repository.Tx, id string, level model.UserLevel) (bool, error) {
				return false, errors.New("db down")
			},
		}
		if _, err := NewUserRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute).SetLevel(ctx, nil, "user-123", model.UserLevelPremium); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("Ensure invalidates only when it created the row", func(t *testing.T) {
		for _, created := range []bool{true, false} {
			var deletedKeys sync.Map
			mockRedis := &mockRedisClient{
				DelFunc: func(ctx context.Context, keys ...string) error {
					for _, k := range keys {
						deletedKeys.Store(k, true)
					}
					return nil
				},
			}
			mockInnerRepo := &mockInnerUserRepo{
				EnsureFunc: func(ctx context.Context, tx repository.Tx, u *model.User) (bool, error) {
					return created, nil
				},
			}

			got, err := NewUserRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute).Ensure(ctx, nil, user)
			if err != nil || got != created {
				t.Fatalf("created=%v: got %v, %v", created, got, err)
			}
			if _, ok := deletedKeys.Load("user:id:user-123"); ok != created {
				t.Errorf("created=%v: invalidated=%v", created, ok)
			}
		}
	})
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"jobboard-premium/internal/domain/model"
	"jobboard-premium/internal/domain/ports/repository"
	"jobboard-premium/internal/infra/metrics"
	red "jobboard-premium/internal/infra/redis"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient, ttl time.Duration) repository.UserRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &userRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func userKey(id string) string { return fmt.Sprintf("user:id:%s", id) }

// Ensure leaves the cache alone when the row already existed.
func (d *userRepoCacheDecorator) Ensure(ctx context.Context, tx repository.Tx, u *model.User) (bool, error) {
	created, err := d.inner.Ensure(ctx, tx, u)
	if err != nil {
		return false, err
	}
	if created {
		_ = d.cache.Del(ctx, userKey(u.ID))
	}
	return created, nil
}

// SetLevel invalidates after the write so a concurrent reader cannot
// repopulate the cache with the old level.
func (d *userRepoCacheDecorator) SetLevel(ctx context.Context, tx repository.Tx, id string, level model.UserLevel) (bool, error) {
	changed, err := d.inner.SetLevel(ctx, tx, id, level)
	if err != nil {
		return false, err
	}
	_ = d.cache.Del(ctx, userKey(id))
	return changed, nil
}

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	// Reads inside a transaction must see the transaction's snapshot.
	if tx != nil {
		metrics.IncCacheRequest("user", "bypass")
		return d.inner.FindByID(ctx, tx, id)
	}

	key := userKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var user model.User
		if json.Unmarshal([]byte(val), &user) == nil {
			metrics.IncCacheRequest("user", "hit")
			return &user, nil
		}
	} else if !red.IsMiss(err) {
		metrics.IncCacheRequest("user", "error")
	}

	metrics.IncCacheRequest("user", "miss")
	user, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if user != nil {
		bytes, _ := json.Marshal(user)
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return user, nil
}

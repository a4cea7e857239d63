package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"mistrihub/internal/common/logger"
	"mistrihub/internal/models"
)

// CachedUserStore is a read-through Redis cache in front of UserStore.
// Role and verification flags are read on every request, so they are the
// hottest rows in the system. Cache misses and Redis failures both fall
// through to Postgres; the cache is never authoritative.
type CachedUserStore struct {
	db     *sql.DB
	users  *UserStore
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedUserStore(db *sql.DB, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedUserStore {
	return &CachedUserStore{
		db:     db,
		users:  NewUserStore(),
		rdb:    rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "user-cache"}),
	}
}

func userCacheKey(id string) string {
	return "user:" + id
}

func (s *CachedUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if cached, err := s.rdb.Get(ctx, userCacheKey(id)).Result(); err == nil {
		var user models.User
		if err := json.Unmarshal([]byte(cached), &user); err == nil {
			return &user, nil
		}
		// Corrupt entry, drop it and reload.
		s.rdb.Del(ctx, userCacheKey(id))
	} else if err != redis.Nil {
		s.logger.Warn("redis get failed", map[string]interface{}{
			"userId": id,
			"error":  err.Error(),
		})
	}

	user, err := s.users.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(user); err == nil {
		if err := s.rdb.Set(ctx, userCacheKey(id), data, s.ttl).Err(); err != nil {
			s.logger.Warn("redis set failed", map[string]interface{}{
				"userId": id,
				"error":  err.Error(),
			})
		}
	}
	return user, nil
}

// IncrementCompletedJobs bumps the counter through the given Queryer (the
// confirm transaction) and invalidates the cached row.
func (s *CachedUserStore) IncrementCompletedJobs(ctx context.Context, q Queryer, id string) error {
	if err := s.users.IncrementCompletedJobs(ctx, q, id); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, userCacheKey(id)).Err(); err != nil {
		s.logger.Warn("redis invalidate failed", map[string]interface{}{
			"userId": id,
			"error":  err.Error(),
		})
	}
	return nil
}

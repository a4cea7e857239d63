package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	apperrors "mistrihub/internal/common/errors"
	"mistrihub/internal/common/logger"
	"mistrihub/internal/models"
)

func newCacheFixture(t *testing.T) (*CachedUserStore, sqlmock.Sqlmock, *miniredis.Miniredis) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cache := NewCachedUserStore(db, rdb, 5*time.Minute, logger.NewTestLogger(t))
	return cache, mock, mr
}

func userRows(user *models.User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "role", "name", "email", "phone", "verified", "completed_jobs",
	}).AddRow(
		user.ID, string(user.Role), user.Name, user.Email, user.Phone,
		user.Verified, user.CompletedJobs,
	)
}

func TestCachedUserStore_MissLoadsAndCaches(t *testing.T) {
	cache, mock, mr := newCacheFixture(t)

	helper := &models.User{
		ID:       "helper-001",
		Role:     models.RoleHelper,
		Name:     "Ramesh Kumar",
		Email:    "ramesh@example.com",
		Phone:    "+919800000001",
		Verified: true,
	}
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id`).
		WithArgs("helper-001").
		WillReturnRows(userRows(helper))

	got, err := cache.GetByID(context.Background(), "helper-001")
	assert.NoError(t, err)
	assert.Equal(t, models.RoleHelper, got.Role)
	assert.True(t, got.Verified)

	// The row must now sit in Redis under the user key.
	cached, err := mr.Get("user:helper-001")
	assert.NoError(t, err)
	var fromCache models.User
	assert.NoError(t, json.Unmarshal([]byte(cached), &fromCache))
	assert.Equal(t, "Ramesh Kumar", fromCache.Name)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedUserStore_HitSkipsPostgres(t *testing.T) {
	cache, mock, mr := newCacheFixture(t)

	seeker := models.User{ID: "seeker-001", Role: models.RoleSeeker, Name: "Anita Desai"}
	data, err := json.Marshal(seeker)
	assert.NoError(t, err)
	mr.Set("user:seeker-001", string(data))

	// No query expectation set: a Postgres round trip would fail the test.
	got, err := cache.GetByID(context.Background(), "seeker-001")
	assert.NoError(t, err)
	assert.Equal(t, "Anita Desai", got.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedUserStore_CorruptEntryFallsThrough(t *testing.T) {
	cache, mock, mr := newCacheFixture(t)

	mr.Set("user:helper-002", "{not json")

	helper := &models.User{ID: "helper-002", Role: models.RoleHelper, Name: "Suresh"}
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id`).
		WithArgs("helper-002").
		WillReturnRows(userRows(helper))

	got, err := cache.GetByID(context.Background(), "helper-002")
	assert.NoError(t, err)
	assert.Equal(t, "Suresh", got.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedUserStore_NotFound(t *testing.T) {
	cache, mock, _ := newCacheFixture(t)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := cache.GetByID(context.Background(), "missing")
	assert.Nil(t, got)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedUserStore_RedisDownFallsThrough(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	rdb, rmock := redismock.NewClientMock()
	cache := NewCachedUserStore(db, rdb, 5*time.Minute, logger.NewTestLogger(t))

	helper := &models.User{ID: "helper-004", Role: models.RoleHelper, Name: "Vijay", Verified: true}
	data, err := json.Marshal(helper)
	assert.NoError(t, err)

	// Redis is unreachable: the read falls through and the write-back is
	// attempted and its failure swallowed.
	rmock.ExpectGet("user:helper-004").SetErr(errors.New("connection refused"))
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id`).
		WithArgs("helper-004").
		WillReturnRows(userRows(helper))
	rmock.ExpectSet("user:helper-004", data, 5*time.Minute).
		SetErr(errors.New("connection refused"))

	got, err := cache.GetByID(context.Background(), "helper-004")
	assert.NoError(t, err)
	assert.Equal(t, "Vijay", got.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestCachedUserStore_IncrementInvalidates(t *testing.T) {
	cache, mock, mr := newCacheFixture(t)

	stale := models.User{ID: "helper-003", Role: models.RoleHelper, CompletedJobs: 7}
	data, err := json.Marshal(stale)
	assert.NoError(t, err)
	mr.Set("user:helper-003", string(data))

	mock.ExpectExec(`UPDATE users SET completed_jobs = completed_jobs \+ 1`).
		WithArgs("helper-003").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = cache.IncrementCompletedJobs(context.Background(), cache.db, "helper-003")
	assert.NoError(t, err)

	// The stale row must be gone so the next read refetches.
	assert.False(t, mr.Exists("user:helper-003"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

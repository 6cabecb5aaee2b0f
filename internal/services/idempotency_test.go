package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blertbank/backend/internal/models"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedResult() models.PostResult {
	return models.PostResult{
		TransactionID: 60,
		CreatedAt:     testCreatedAt,
		Entries: []models.EntryResult{
			{AccountID: 1, Delta: -100, BalanceAfter: 999_900},
			{AccountID: 2, Delta: 100, BalanceAfter: 600},
		},
	}
}

func TestIdempotencyResolver_Resolve(t *testing.T) {
	ttl := time.Hour
	cacheKey := "ledger:idempotency:7:duplicate-key"

	t.Run("empty key never matches", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		resolver := NewIdempotencyResolver(db, nil, ttl, testLogger())

		result, err := resolver.Resolve(context.Background(), 7, "")
		assert.NoError(t, err)
		assert.Nil(t, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cache hit skips the database", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		data, err := json.Marshal(storedResult())
		require.NoError(t, err)
		redisMock.ExpectGet(cacheKey).SetVal(string(data))

		resolver := NewIdempotencyResolver(db, redisClient, ttl, testLogger())

		result, err := resolver.Resolve(context.Background(), 7, "duplicate-key")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.Idempotent)
		assert.Equal(t, int64(60), result.TransactionID)
		assert.Equal(t, storedResult().Entries, result.Entries)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("cache miss loads from the database and caches", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		data, err := json.Marshal(storedResult())
		require.NoError(t, err)
		redisMock.ExpectGet(cacheKey).RedisNil()
		redisMock.ExpectSet(cacheKey, string(data), ttl).SetVal("OK")

		mock.ExpectQuery(replayTxnQuery).WithArgs(7, "duplicate-key").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(60, testCreatedAt))
		mock.ExpectQuery(replayEntriesQuery).WithArgs(60).
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "amount", "balance_after"}).
				AddRow(1, -100, 999_900).
				AddRow(2, 100, 600))

		resolver := NewIdempotencyResolver(db, redisClient, ttl, testLogger())

		result, err := resolver.Resolve(context.Background(), 7, "duplicate-key")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.Idempotent)
		assert.Equal(t, storedResult().Entries, result.Entries)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("unknown key", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet(cacheKey).RedisNil()
		mock.ExpectQuery(replayTxnQuery).WithArgs(7, "duplicate-key").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))

		resolver := NewIdempotencyResolver(db, redisClient, ttl, testLogger())

		result, err := resolver.Resolve(context.Background(), 7, "duplicate-key")
		assert.NoError(t, err)
		assert.Nil(t, result)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("redis failure falls back to the database", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		data, err := json.Marshal(storedResult())
		require.NoError(t, err)
		redisMock.ExpectGet(cacheKey).SetErr(errors.New("connection refused"))
		redisMock.ExpectSet(cacheKey, string(data), ttl).SetErr(errors.New("connection refused"))

		mock.ExpectQuery(replayTxnQuery).WithArgs(7, "duplicate-key").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(60, testCreatedAt))
		mock.ExpectQuery(replayEntriesQuery).WithArgs(60).
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "amount", "balance_after"}).
				AddRow(1, -100, 999_900).
				AddRow(2, 100, 600))

		resolver := NewIdempotencyResolver(db, redisClient, ttl, testLogger())

		result, err := resolver.Resolve(context.Background(), 7, "duplicate-key")
		require.NoError(t, err)
		assert.True(t, result.Idempotent)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("keys are scoped per creator", func(t *testing.T) {
		assert.NotEqual(t, idempotencyCacheKey(7, "k"), idempotencyCacheKey(8, "k"))
	})
}

func TestIdempotencyResolver_Remember(t *testing.T) {
	t.Run("stores the result without the replay flag", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		data, err := json.Marshal(storedResult())
		require.NoError(t, err)
		redisMock.ExpectSet("ledger:idempotency:7:k", string(data), time.Minute).SetVal("OK")

		resolver := NewIdempotencyResolver(nil, redisClient, time.Minute, testLogger())

		result := storedResult()
		result.Idempotent = true
		resolver.Remember(context.Background(), 7, "k", &result)

		assert.True(t, result.Idempotent)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("disabled without a ttl", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		resolver := NewIdempotencyResolver(nil, redisClient, 0, testLogger())

		result := storedResult()
		resolver.Remember(context.Background(), 7, "k", &result)

		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}

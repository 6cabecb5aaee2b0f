package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blertbank/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// IdempotencyResolver finds transactions already committed under a
// (createdBy, idempotencyKey) pair. The unique index on ledger_transactions
// is authoritative; Redis only caches committed results.
type IdempotencyResolver struct {
	db    *sql.DB
	redis *redis.Client
	ttl   time.Duration
	log   *logrus.Logger
}

func NewIdempotencyResolver(db *sql.DB, redisClient *redis.Client, ttl time.Duration, log *logrus.Logger) *IdempotencyResolver {
	return &IdempotencyResolver{
		db:    db,
		redis: redisClient,
		ttl:   ttl,
		log:   log,
	}
}

func idempotencyCacheKey(createdBy int64, key string) string {
	return fmt.Sprintf("ledger:idempotency:%d:%s", createdBy, key)
}

// Resolve returns the previously committed result for the key, or nil if
// there is none. An empty key never matches.
func (r *IdempotencyResolver) Resolve(ctx context.Context, createdBy int64, key string) (*models.PostResult, error) {
	if key == "" {
		return nil, nil
	}

	if result := r.fromCache(ctx, createdBy, key); result != nil {
		return result, nil
	}

	result, err := r.fetchTransaction(ctx, createdBy, key)
	if err != nil || result == nil {
		return nil, err
	}

	r.Remember(ctx, createdBy, key, result)
	result.Idempotent = true
	return result, nil
}

// Remember caches a committed result. Failures are logged and ignored.
func (r *IdempotencyResolver) Remember(ctx context.Context, createdBy int64, key string, result *models.PostResult) {
	if r.redis == nil || key == "" || result == nil || r.ttl <= 0 {
		return
	}

	cached := *result
	cached.Idempotent = false
	data, err := json.Marshal(cached)
	if err != nil {
		r.log.WithError(err).Warn("failed to encode idempotent result")
		return
	}

	if err := r.redis.Set(ctx, idempotencyCacheKey(createdBy, key), string(data), r.ttl).Err(); err != nil {
		r.log.WithError(err).WithField("idempotency_key", key).Warn("failed to cache idempotent result")
	}
}

func (r *IdempotencyResolver) fromCache(ctx context.Context, createdBy int64, key string) *models.PostResult {
	if r.redis == nil {
		return nil
	}

	data, err := r.redis.Get(ctx, idempotencyCacheKey(createdBy, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.WithError(err).WithField("idempotency_key", key).Warn("idempotency cache lookup failed")
		}
		return nil
	}

	var result models.PostResult
	if err := json.Unmarshal(data, &result); err != nil {
		r.log.WithError(err).WithField("idempotency_key", key).Warn("discarding unreadable idempotency cache entry")
		return nil
	}
	result.Idempotent = true
	return &result
}

func (r *IdempotencyResolver) fetchTransaction(ctx context.Context, createdBy int64, key string) (*models.PostResult, error) {
	var result models.PostResult
	err := r.db.QueryRowContext(ctx, `
		SELECT id, created_at
		FROM ledger_transactions
		WHERE created_by = $1 AND idempotency_key = $2`,
		createdBy, key).Scan(&result.TransactionID, &result.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyDBError("lookup idempotent transaction", err)
	}

	entries, err := r.fetchEntries(ctx, result.TransactionID)
	if err != nil {
		return nil, err
	}
	result.Entries = entries
	return &result, nil
}

func (r *IdempotencyResolver) fetchEntries(ctx context.Context, transactionID int64) ([]models.EntryResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id, amount, balance_after
		FROM ledger_entries
		WHERE txn_id = $1
		ORDER BY entry_index`, transactionID)
	if err != nil {
		return nil, classifyDBError("load transaction entries", err)
	}
	defer rows.Close()

	var entries []models.EntryResult
	for rows.Next() {
		var entry models.EntryResult
		if err := rows.Scan(&entry.AccountID, &entry.Delta, &entry.BalanceAfter); err != nil {
			return nil, fmt.Errorf("scan transaction entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyDBError("load transaction entries", err)
	}
	return entries, nil
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/blertbank/backend/internal/audit"
	"github.com/blertbank/backend/internal/events"
	"github.com/blertbank/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// LedgerOptions configures a LedgerService
type LedgerOptions struct {
	Policy models.BalancePolicy
	// LockTimeout bounds how long a posting waits on account row locks; zero keeps the server default
	LockTimeout time.Duration
	Publisher   events.Publisher
	Audit       *audit.Logger
}

// LedgerService posts balanced transactions. Each posting runs in one
// database transaction that claims the idempotency key, locks the affected
// accounts in ascending ID order, applies the balance changes and records
// the entries.
type LedgerService struct {
	db          *sql.DB
	resolver    *IdempotencyResolver
	policy      models.BalancePolicy
	lockTimeout time.Duration
	publisher   events.Publisher
	audit       *audit.Logger
	log         *logrus.Logger
}

func NewLedgerService(db *sql.DB, resolver *IdempotencyResolver, log *logrus.Logger, opts LedgerOptions) *LedgerService {
	return &LedgerService{
		db:          db,
		resolver:    resolver,
		policy:      opts.Policy,
		lockTimeout: opts.LockTimeout,
		publisher:   opts.Publisher,
		audit:       opts.Audit,
		log:         log,
	}
}

// PostTransaction validates and applies req on behalf of serviceName.
// A request whose idempotency key was already committed by the same
// creator returns the stored result with Idempotent set, without touching
// any balance.
func (s *LedgerService) PostTransaction(ctx context.Context, serviceName string, req models.PostRequest) (*models.PostResult, error) {
	if err := ValidateEntries(req.Entries); err != nil {
		s.audit.LogRejected(serviceName, req, err)
		return nil, err
	}

	existing, err := s.resolver.Resolve(ctx, req.CreatedBy, req.IdempotencyKey)
	if err != nil {
		s.audit.LogFailed(serviceName, req, err)
		return nil, err
	}
	if existing != nil {
		s.audit.LogReplayed(serviceName, req, existing)
		return existing, nil
	}

	result, err := s.post(ctx, serviceName, req)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		err = fmt.Errorf("post transaction: %w (%v)", ctx.Err(), err)
	}
	if errors.Is(err, errIdempotencyConflict) {
		return s.replayAfterConflict(ctx, serviceName, req)
	}
	if err != nil {
		var txErr *TransactionError
		if errors.As(err, &txErr) {
			s.audit.LogRejected(serviceName, req, err)
		} else {
			s.audit.LogFailed(serviceName, req, err)
		}
		return nil, err
	}

	s.resolver.Remember(ctx, req.CreatedBy, req.IdempotencyKey, result)
	s.publish(ctx, serviceName, req, result)
	s.audit.LogPosted(serviceName, req, result)

	return result, nil
}

// replayAfterConflict handles a concurrent writer winning the idempotency key
func (s *LedgerService) replayAfterConflict(ctx context.Context, serviceName string, req models.PostRequest) (*models.PostResult, error) {
	existing, err := s.resolver.Resolve(ctx, req.CreatedBy, req.IdempotencyKey)
	if err != nil {
		s.audit.LogFailed(serviceName, req, err)
		return nil, err
	}
	if existing == nil {
		err := &TransientError{Op: "replay idempotent transaction", Err: errIdempotencyConflict}
		s.audit.LogFailed(serviceName, req, err)
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id":  existing.TransactionID,
		"idempotency_key": req.IdempotencyKey,
	}).Info("concurrent duplicate resolved to committed transaction")
	s.audit.LogReplayed(serviceName, req, existing)
	return existing, nil
}

func (s *LedgerService) post(ctx context.Context, serviceName string, req models.PostRequest) (*models.PostResult, error) {
	deltas, accountIDs, err := NetDeltas(req.Entries)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifyDBError("begin transaction", err)
	}
	defer tx.Rollback()

	if s.lockTimeout > 0 {
		if _, err := tx.ExecContext(ctx, `SELECT set_config('lock_timeout', $1, true)`, formatLockTimeout(s.lockTimeout)); err != nil {
			return nil, classifyDBError("set lock timeout", err)
		}
	}

	transactionID, err := s.insertTransaction(ctx, tx, serviceName, req)
	if err != nil {
		return nil, err
	}

	balances, err := s.applyBalances(ctx, tx, accountIDs, deltas)
	if err != nil {
		return nil, err
	}

	entries := make([]models.EntryResult, len(req.Entries))
	for i, entry := range req.Entries {
		balanceAfter := balances[entry.AccountID]
		if err := s.createLedgerEntry(ctx, tx, transactionID, i, entry.AccountID, entry.Amount, balanceAfter); err != nil {
			return nil, err
		}
		entries[i] = models.EntryResult{
			AccountID:    entry.AccountID,
			Delta:        entry.Amount,
			BalanceAfter: balanceAfter,
		}
	}

	createdAt, err := s.stampTransaction(ctx, tx, transactionID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, errIdempotencyConflict
		}
		return nil, classifyDBError("commit transaction", err)
	}

	return &models.PostResult{
		TransactionID: transactionID,
		CreatedAt:     createdAt,
		Entries:       entries,
		Idempotent:    false,
	}, nil
}

// insertTransaction claims the idempotency key and creates the header. A
// concurrent holder of the same key makes this block until it finishes;
// if it committed, no row is returned.
func (s *LedgerService) insertTransaction(ctx context.Context, tx *sql.Tx, serviceName string, req models.PostRequest) (int64, error) {
	var (
		idempotencyKey sql.NullString
		sourceTable    sql.NullString
		sourceID       sql.NullInt64
	)
	if req.IdempotencyKey != "" {
		idempotencyKey = sql.NullString{String: req.IdempotencyKey, Valid: true}
	}
	if req.Source != nil {
		sourceTable = sql.NullString{String: req.Source.Table, Valid: true}
		sourceID = sql.NullInt64{Int64: req.Source.ID, Valid: true}
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = models.Metadata{}
	}

	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO ledger_transactions
			(created_by, created_by_svc, reason, idempotency_key, source_table, source_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (created_by, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
		RETURNING id`,
		req.CreatedBy, serviceName, req.Reason, idempotencyKey, sourceTable, sourceID, metadata,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
		return 0, errIdempotencyConflict
	}
	if err != nil {
		return 0, classifyDBError("insert transaction", err)
	}
	return id, nil
}

// stampTransaction sets the header timestamp once all balances and entries
// are written, so it reflects when the posting completed rather than when
// the key was claimed.
func (s *LedgerService) stampTransaction(ctx context.Context, tx *sql.Tx, transactionID int64) (time.Time, error) {
	var createdAt time.Time
	err := tx.QueryRowContext(ctx, `
		UPDATE ledger_transactions
		SET created_at = clock_timestamp()
		WHERE id = $1
		RETURNING created_at`, transactionID).Scan(&createdAt)
	if err != nil {
		return time.Time{}, classifyDBError("stamp transaction", err)
	}
	return createdAt, nil
}

// applyBalances locks every affected account in ascending ID order, checks
// the balance policy against all new balances, and only then writes them.
func (s *LedgerService) applyBalances(ctx context.Context, tx *sql.Tx, accountIDs []int64, deltas map[int64]int64) (map[int64]int64, error) {
	locked := make([]*models.Account, 0, len(accountIDs))
	for _, accountID := range accountIDs {
		account, err := s.lockAccount(ctx, tx, accountID)
		if err != nil {
			return nil, err
		}
		locked = append(locked, account)
	}

	balances := make(map[int64]int64, len(locked))
	for _, account := range locked {
		delta := deltas[account.ID]
		newBalance, ok := addInt64(account.Balance, delta)
		if !ok {
			return nil, invalidAmount(account.ID, fmt.Sprintf("Balance of account %d would overflow", account.ID))
		}
		if !s.policy.Permits(account.Kind, newBalance) {
			return nil, insufficientFunds(account.ID, account.Balance, delta)
		}
		balances[account.ID] = newBalance
	}

	for _, account := range locked {
		if err := s.updateAccountBalance(ctx, tx, account.ID, balances[account.ID]); err != nil {
			return nil, err
		}
	}

	return balances, nil
}

func (s *LedgerService) lockAccount(ctx context.Context, tx *sql.Tx, accountID int64) (*models.Account, error) {
	account, err := scanAccount(tx.QueryRowContext(ctx, `
		SELECT id, owner_user_id, kind, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, accountNotFound(accountID)
	}
	if err != nil {
		return nil, classifyDBError(fmt.Sprintf("lock account %d", accountID), err)
	}
	return account, nil
}

func (s *LedgerService) updateAccountBalance(ctx context.Context, tx *sql.Tx, accountID, newBalance int64) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, updated_at = NOW()
		WHERE id = $2`,
		newBalance, accountID)
	if err != nil {
		return classifyDBError(fmt.Sprintf("update account %d", accountID), err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return accountNotFound(accountID)
	}
	return nil
}

func (s *LedgerService) createLedgerEntry(ctx context.Context, tx *sql.Tx, transactionID int64, index int, accountID, amount, balanceAfter int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (txn_id, entry_index, account_id, amount, balance_after)
		VALUES ($1, $2, $3, $4, $5)`,
		transactionID, index, accountID, amount, balanceAfter)
	if err != nil {
		return classifyDBError("insert ledger entry", err)
	}
	return nil
}

func (s *LedgerService) publish(ctx context.Context, serviceName string, req models.PostRequest, result *models.PostResult) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewTransactionPosted(serviceName, req, result)); err != nil {
		s.log.WithError(err).WithField("transaction_id", result.TransactionID).Warn("failed to publish transaction event")
	}
}

func formatLockTimeout(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("%dms", ms)
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/blertbank/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// AccountDirectory resolves participants to accounts. Lookups return a nil
// account without error when nothing matches.
type AccountDirectory interface {
	ByUserID(ctx context.Context, userID int64) (*models.Account, error)
	BySystemName(ctx context.Context, name string) (*models.Account, error)
	ByAccountID(ctx context.Context, accountID int64) (*models.Account, error)
}

// AccountService is the Postgres-backed account directory
type AccountService struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewAccountService(db *sql.DB, log *logrus.Logger) *AccountService {
	return &AccountService{db: db, log: log}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		account models.Account
		owner   sql.NullInt64
		kind    string
	)
	if err := row.Scan(&account.ID, &owner, &kind, &account.Balance, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return nil, err
	}
	if owner.Valid {
		ownerID := owner.Int64
		account.OwnerUserID = &ownerID
	}
	account.Kind = models.AccountKind(kind)
	return &account, nil
}

func (s *AccountService) findOne(ctx context.Context, op, query string, args ...any) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyDBError(op, err)
	}
	return account, nil
}

// ByUserID finds the user-kind account owned by userID
func (s *AccountService) ByUserID(ctx context.Context, userID int64) (*models.Account, error) {
	return s.findOne(ctx, "find user account", `
		SELECT id, owner_user_id, kind, balance, created_at, updated_at
		FROM accounts
		WHERE owner_user_id = $1 AND kind = 'user'`, userID)
}

// BySystemName finds a system account by its registered name
func (s *AccountService) BySystemName(ctx context.Context, name string) (*models.Account, error) {
	return s.findOne(ctx, "find system account", `
		SELECT a.id, a.owner_user_id, a.kind, a.balance, a.created_at, a.updated_at
		FROM system_accounts sa
		JOIN accounts a ON a.id = sa.account_id
		WHERE sa.name = $1`, name)
}

func (s *AccountService) ByAccountID(ctx context.Context, accountID int64) (*models.Account, error) {
	return s.findOne(ctx, "find account", `
		SELECT id, owner_user_id, kind, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1`, accountID)
}

// GetOrCreateUserAccount returns the user's account, creating it with a zero
// balance if needed. The boolean reports whether it was created. Concurrent
// creators are reconciled by the one-user-account-per-owner index.
func (s *AccountService) GetOrCreateUserAccount(ctx context.Context, userID int64) (*models.Account, bool, error) {
	existing, err := s.ByUserID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	account, err := scanAccount(s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (owner_user_id, kind, balance)
		VALUES ($1, 'user', 0)
		ON CONFLICT (owner_user_id) WHERE kind = 'user' DO NOTHING
		RETURNING id, owner_user_id, kind, balance, created_at, updated_at`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		existing, err := s.ByUserID(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("user %d account vanished after concurrent create", userID)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, classifyDBError("create user account", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": userID, "account_id": account.ID}).Info("user account created")
	return account, true, nil
}

var _ AccountDirectory = (*AccountService)(nil)

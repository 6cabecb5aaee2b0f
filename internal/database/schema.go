package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sort"

	"github.com/blertbank/backend/internal/models"
	"github.com/sirupsen/logrus"
)

//go:embed schema.sql
var schemaSQL string

// schemaLockID serializes concurrent migrations from several replicas
const schemaLockID = 7_401_118

// Migrate applies the idempotent schema and makes sure every named system
// account exists
func Migrate(ctx context.Context, db *sql.DB, systemAccounts map[string]models.AccountKind, log *logrus.Logger) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	names := make([]string, 0, len(systemAccounts))
	for name := range systemAccounts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		created, err := ensureSystemAccount(ctx, tx, name, systemAccounts[name])
		if err != nil {
			return err
		}
		if created {
			log.WithFields(logrus.Fields{"name": name, "kind": systemAccounts[name]}).Info("system account created")
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

func ensureSystemAccount(ctx context.Context, tx *sql.Tx, name string, kind models.AccountKind) (bool, error) {
	if kind == models.AccountKindUser {
		return false, fmt.Errorf("system account %q cannot be a user account", name)
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM system_accounts WHERE name = $1)`, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check system account %q: %w", name, err)
	}
	if exists {
		return false, nil
	}

	var accountID int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO accounts (kind, balance)
		VALUES ($1, 0)
		RETURNING id`, string(kind)).Scan(&accountID); err != nil {
		return false, fmt.Errorf("create system account %q: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO system_accounts (name, account_id)
		VALUES ($1, $2)`, name, accountID); err != nil {
		return false, fmt.Errorf("register system account %q: %w", name, err)
	}
	return true, nil
}

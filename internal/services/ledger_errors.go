package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"

	"github.com/lib/pq"
)

// ErrorKind classifies business-rule failures of a posting
type ErrorKind string

const (
	KindUnbalancedTransaction ErrorKind = "UNBALANCED_TRANSACTION"
	KindInvalidAmount         ErrorKind = "INVALID_AMOUNT"
	KindInsufficientFunds     ErrorKind = "INSUFFICIENT_FUNDS"
	KindAccountNotFound       ErrorKind = "ACCOUNT_NOT_FOUND"
)

// TransactionError is returned when a posting violates a ledger rule.
// AccountID identifies the offending account when there is one.
type TransactionError struct {
	Kind      ErrorKind
	Message   string
	AccountID int64
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsTransactionError reports whether err is a TransactionError of the given kind
func IsTransactionError(err error, kind ErrorKind) bool {
	var txErr *TransactionError
	return errors.As(err, &txErr) && txErr.Kind == kind
}

func unbalanced(sum *big.Int) error {
	return &TransactionError{
		Kind:    KindUnbalancedTransaction,
		Message: fmt.Sprintf("Transaction entries do not sum to zero (sum %s)", sum),
	}
}

func invalidAmount(accountID int64, message string) error {
	return &TransactionError{Kind: KindInvalidAmount, Message: message, AccountID: accountID}
}

func insufficientFunds(accountID, balance, delta int64) error {
	return &TransactionError{
		Kind:      KindInsufficientFunds,
		Message:   fmt.Sprintf("Account %d has insufficient funds (balance %d, change %d)", accountID, balance, delta),
		AccountID: accountID,
	}
}

func accountNotFound(accountID int64) error {
	return &TransactionError{
		Kind:      KindAccountNotFound,
		Message:   fmt.Sprintf("Account %d not found", accountID),
		AccountID: accountID,
	}
}

// ErrMalformedRequest marks structurally invalid requests, such as an empty
// entry list or a non-positive account ID. It is not a TransactionError.
var ErrMalformedRequest = errors.New("malformed transaction request")

// ErrTransient matches every TransientError via errors.Is
var ErrTransient = errors.New("transient ledger failure")

// TransientError wraps a retryable infrastructure failure: lock timeouts,
// deadlocks, serialization failures and lost connections.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// errIdempotencyConflict signals that another writer committed the same
// (createdBy, idempotencyKey) first
var errIdempotencyConflict = errors.New("idempotency key already used")

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
	pqQueryCanceled        = "57014"
	pqConnectionException  = "08"
	pqInsufficientResource = "53"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// classifyDBError wraps err, marking retryable infrastructure conditions as transient
func classifyDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return &TransientError{Op: op, Err: err}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable, pqQueryCanceled:
			return &TransientError{Op: op, Err: err}
		}
		switch string(pqErr.Code.Class()) {
		case pqConnectionException, pqInsufficientResource:
			return &TransientError{Op: op, Err: err}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

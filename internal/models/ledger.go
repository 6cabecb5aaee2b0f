package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Entry is a requested balance change for one account
type Entry struct {
	AccountID int64 `json:"accountId"`
	Amount    int64 `json:"amount"`
}

// EntryResult is an applied entry together with the account balance
// observed right after the transaction was applied
type EntryResult struct {
	AccountID    int64 `json:"accountId"`
	Delta        int64 `json:"delta"`
	BalanceAfter int64 `json:"balanceAfter"`
}

// TransactionSource links a transaction to the record that caused it,
// e.g. table "challenges" and the challenge ID
type TransactionSource struct {
	Table string `json:"table" validate:"required,max=128"`
	ID    int64  `json:"id" validate:"required,gt=0"`
}

// PostRequest describes a transaction to post to the ledger
type PostRequest struct {
	// CreatedBy is the user or system actor (0) initiating the transaction
	CreatedBy      int64
	Reason         string
	IdempotencyKey string
	Source         *TransactionSource
	Metadata       Metadata
	Entries        []Entry
}

// PostResult is the outcome of posting a transaction. Idempotent is set
// when the result belongs to a previously committed transaction.
type PostResult struct {
	TransactionID int64         `json:"transactionId"`
	CreatedAt     time.Time     `json:"createdAt"`
	Entries       []EntryResult `json:"entries"`
	Idempotent    bool          `json:"idempotent"`
}

// Metadata type for JSONB fields
type Metadata map[string]any

// Value implements driver.Valuer for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for Metadata
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, m)
}

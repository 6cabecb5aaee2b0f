package events

import (
	"context"
	"time"

	"github.com/blertbank/backend/internal/models"
)

// TopicTransactionPosted receives one message per newly committed transaction
const TopicTransactionPosted = "ledger.transaction_posted"

type Publisher interface {
	Publish(ctx context.Context, event TransactionPosted) error
}

// TransactionPosted is emitted after a transaction commits. Replays never emit.
type TransactionPosted struct {
	TransactionID  int64                     `json:"transactionId"`
	CreatedAt      time.Time                 `json:"createdAt"`
	CreatedBy      int64                     `json:"createdBy"`
	Service        string                    `json:"service"`
	Reason         string                    `json:"reason"`
	IdempotencyKey string                    `json:"idempotencyKey,omitempty"`
	Source         *models.TransactionSource `json:"source,omitempty"`
	Entries        []models.EntryResult      `json:"entries"`
}

// NewTransactionPosted builds the event for a committed posting
func NewTransactionPosted(service string, req models.PostRequest, result *models.PostResult) TransactionPosted {
	return TransactionPosted{
		TransactionID:  result.TransactionID,
		CreatedAt:      result.CreatedAt,
		CreatedBy:      req.CreatedBy,
		Service:        service,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		Source:         req.Source,
		Entries:        result.Entries,
	}
}

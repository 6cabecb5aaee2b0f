package events

import (
	"testing"
	"time"

	"github.com/blertbank/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestNewTransactionPosted(t *testing.T) {
	createdAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	req := models.PostRequest{
		CreatedBy:      7,
		Reason:         "challenge payout",
		IdempotencyKey: "challenge-15-payout",
		Source:         &models.TransactionSource{Table: "challenges", ID: 15},
	}
	result := &models.PostResult{
		TransactionID: 42,
		CreatedAt:     createdAt,
		Entries: []models.EntryResult{
			{AccountID: 1, Delta: -100, BalanceAfter: -100},
			{AccountID: 2, Delta: 100, BalanceAfter: 100},
		},
	}

	event := NewTransactionPosted("challenges", req, result)

	assert.Equal(t, int64(42), event.TransactionID)
	assert.Equal(t, createdAt, event.CreatedAt)
	assert.Equal(t, int64(7), event.CreatedBy)
	assert.Equal(t, "challenges", event.Service)
	assert.Equal(t, "challenge-15-payout", event.IdempotencyKey)
	assert.Equal(t, int64(15), event.Source.ID)
	assert.Equal(t, result.Entries, event.Entries)
}

func TestNewKafkaPublisher(t *testing.T) {
	publisher := NewKafkaPublisher([]string{"localhost:9092"}, "")
	defer publisher.Close()

	assert.Equal(t, TopicTransactionPosted, publisher.writer.Topic)
	assert.True(t, publisher.writer.Async)
}

package audit

import (
	"time"

	"github.com/blertbank/backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	EventPosted   = "TRANSACTION_POSTED"
	EventReplayed = "TRANSACTION_REPLAYED"
	EventRejected = "TRANSACTION_REJECTED"
	EventFailed   = "TRANSACTION_FAILED"
)

type Event struct {
	ID             string               `json:"id"`
	Timestamp      time.Time            `json:"timestamp"`
	EventType      string               `json:"event_type"`
	TransactionID  int64                `json:"transaction_id,omitempty"`
	Service        string               `json:"service"`
	CreatedBy      int64                `json:"created_by"`
	Reason         string               `json:"reason"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
	Status         string               `json:"status"`
	Entries        []models.EntryResult `json:"entries,omitempty"`
	Details        any                  `json:"details,omitempty"`
}

// Logger writes one audit event per posting attempt through logrus
type Logger struct {
	log *logrus.Logger
}

func NewLogger(log *logrus.Logger) *Logger {
	return &Logger{log: log}
}

func (a *Logger) LogPosted(service string, req models.PostRequest, result *models.PostResult) {
	a.write(Event{
		EventType:      EventPosted,
		TransactionID:  result.TransactionID,
		Service:        service,
		CreatedBy:      req.CreatedBy,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		Status:         "SUCCESS",
		Entries:        result.Entries,
	})
}

func (a *Logger) LogReplayed(service string, req models.PostRequest, result *models.PostResult) {
	a.write(Event{
		EventType:      EventReplayed,
		TransactionID:  result.TransactionID,
		Service:        service,
		CreatedBy:      req.CreatedBy,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		Status:         "IDEMPOTENT",
	})
}

// LogRejected records a posting refused by a ledger rule
func (a *Logger) LogRejected(service string, req models.PostRequest, err error) {
	a.write(Event{
		EventType:      EventRejected,
		Service:        service,
		CreatedBy:      req.CreatedBy,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		Status:         "REJECTED",
		Details:        map[string]any{"error": err.Error(), "entries": req.Entries},
	})
}

// LogFailed records a posting that could not be completed for infrastructure reasons
func (a *Logger) LogFailed(service string, req models.PostRequest, err error) {
	a.write(Event{
		EventType:      EventFailed,
		Service:        service,
		CreatedBy:      req.CreatedBy,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		Status:         "FAILED",
		Details:        map[string]string{"error": err.Error()},
	})
}

func (a *Logger) write(event Event) {
	if a == nil || a.log == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UTC()

	entry := a.log.WithField("audit", event)
	if event.EventType == EventFailed {
		entry.Error("AUDIT")
		return
	}
	entry.Info("AUDIT")
}

package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	mW "github.com/blertbank/backend/internal/middleware"
	"github.com/blertbank/backend/internal/models"
	"github.com/blertbank/backend/internal/services"
	"github.com/sirupsen/logrus"
)

type LedgerPoster interface {
	PostTransaction(ctx context.Context, serviceName string, req models.PostRequest) (*models.PostResult, error)
}

type TransactionHandler struct {
	ledger    LedgerPoster
	directory services.AccountDirectory
	validator *services.ValidationHelper
	log       *logrus.Logger
}

func NewTransactionHandler(ledger LedgerPoster, directory services.AccountDirectory, log *logrus.Logger) *TransactionHandler {
	return &TransactionHandler{
		ledger:    ledger,
		directory: directory,
		validator: services.NewValidationHelper(),
		log:       log,
	}
}

type createTransactionRequest struct {
	CreatedBy      *int64                    `json:"createdBy"`
	Reason         string                    `json:"reason" validate:"required,max=255"`
	IdempotencyKey string                    `json:"idempotencyKey" validate:"max=255"`
	Source         *models.TransactionSource `json:"source"`
	Metadata       models.Metadata           `json:"metadata"`
	Entries        []models.Entry            `json:"entries"`
	Participants   []models.Participant      `json:"participants"`
}

// entryResponse is an applied entry as sent to clients
type entryResponse struct {
	AccountID    int64 `json:"accountId"`
	Amount       int64 `json:"amount"`
	BalanceAfter int64 `json:"balanceAfter"`
}

// transactionResponse carries entries or participants, matching how the
// request named its accounts
type transactionResponse struct {
	TransactionID int64                      `json:"transactionId"`
	CreatedAt     time.Time                  `json:"createdAt"`
	Idempotent    bool                       `json:"idempotent"`
	Entries       []entryResponse            `json:"entries,omitempty"`
	Participants  []models.ParticipantResult `json:"participants,omitempty"`
}

func newTransactionResponse(result *models.PostResult, resolved *services.ResolvedParticipants) transactionResponse {
	resp := transactionResponse{
		TransactionID: result.TransactionID,
		CreatedAt:     result.CreatedAt,
		Idempotent:    result.Idempotent,
	}
	if resolved != nil {
		resp.Participants = resolved.ParticipantResults(result)
		return resp
	}

	resp.Entries = make([]entryResponse, len(result.Entries))
	for i, entry := range result.Entries {
		resp.Entries[i] = entryResponse{
			AccountID:    entry.AccountID,
			Amount:       entry.Delta,
			BalanceAfter: entry.BalanceAfter,
		}
	}
	return resp
}

// CreateTransaction posts a balanced transaction. Accounts are given either
// directly as entries or indirectly as participants, never both.
// Responds 201 for a new transaction and 200 for an idempotent replay.
// @Summary Post a ledger transaction
// @Description Apply a balanced set of entries atomically; a repeated idempotency key returns the original result
// @Tags transactions
// @Accept json
// @Produce json
// @Security ServiceToken
// @Param transaction body createTransactionRequest true "Transaction"
// @Success 201 {object} transactionResponse
// @Success 200 {object} transactionResponse "Idempotent replay"
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /transactions [post]
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, services.CodeBadRequest, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, services.CodeBadRequest, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, services.CodeBadRequest, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if req.CreatedBy == nil || *req.CreatedBy < 0 {
		services.SendErrorResponse(w, services.CodeBadRequest, "createdBy is required and must not be negative", http.StatusBadRequest, nil)
		return
	}

	if (len(req.Entries) == 0) == (len(req.Participants) == 0) {
		services.SendErrorResponse(w, services.CodeBadRequest, "Exactly one of entries or participants must be provided", http.StatusBadRequest, nil)
		return
	}

	postReq := models.PostRequest{
		CreatedBy:      *req.CreatedBy,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		Source:         req.Source,
		Metadata:       req.Metadata,
		Entries:        req.Entries,
	}

	var resolved *services.ResolvedParticipants
	if len(req.Participants) > 0 {
		var err error
		resolved, err = services.ResolveParticipants(r.Context(), h.directory, req.Participants)
		if err != nil {
			writeServiceError(w, h.log, err)
			return
		}
		postReq.Entries = resolved.Entries
	}

	result, err := h.ledger.PostTransaction(r.Context(), mW.ServiceNameFromContext(r.Context()), postReq)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	resp := newTransactionResponse(result, resolved)

	status := http.StatusCreated
	if result.Idempotent {
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

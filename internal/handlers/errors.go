package handlers

import (
	"errors"
	"net/http"

	"github.com/blertbank/backend/internal/services"
	"github.com/sirupsen/logrus"
)

// writeServiceError maps ledger errors onto HTTP responses. Transaction
// errors carry their kind as the error code.
func writeServiceError(w http.ResponseWriter, log *logrus.Logger, err error) {
	var txErr *services.TransactionError
	switch {
	case errors.As(err, &txErr):
		services.SendErrorResponse(w, string(txErr.Kind), txErr.Message, statusForKind(txErr.Kind), nil)
	case errors.Is(err, services.ErrMalformedRequest):
		services.SendErrorResponse(w, services.CodeBadRequest, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, services.ErrTransient):
		log.WithError(err).Warn("transient ledger failure")
		services.SendErrorResponse(w, services.CodeServiceUnavailable, "The ledger is busy, retry the request", http.StatusServiceUnavailable, nil)
	default:
		log.WithError(err).Error("ledger request failed")
		services.SendErrorResponse(w, services.CodeInternalError, "Internal server error", http.StatusInternalServerError, nil)
	}
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindUnbalancedTransaction, services.KindInvalidAmount:
		return http.StatusBadRequest
	case services.KindAccountNotFound:
		return http.StatusNotFound
	case services.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/blertbank/backend/internal/models"
	"github.com/blertbank/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// AccountProvisioner looks up accounts and opens user accounts
type AccountProvisioner interface {
	services.AccountDirectory
	GetOrCreateUserAccount(ctx context.Context, userID int64) (*models.Account, bool, error)
}

type AccountHandler struct {
	accounts  AccountProvisioner
	validator *services.ValidationHelper
	log       *logrus.Logger
}

func NewAccountHandler(accounts AccountProvisioner, log *logrus.Logger) *AccountHandler {
	return &AccountHandler{
		accounts:  accounts,
		validator: services.NewValidationHelper(),
		log:       log,
	}
}

// CreateAccount opens a user account, or returns the existing one with 200
// @Summary Open a user account
// @Tags accounts
// @Accept json
// @Produce json
// @Security ServiceToken
// @Param account body object true "Account owner, {userId}"
// @Success 201 {object} models.Account
// @Success 200 {object} models.Account "Account already existed"
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /accounts [post]
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int64 `json:"userId" validate:"required,gt=0"`
	}

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

	account, created, err := h.accounts.GetOrCreateUserAccount(r.Context(), req.UserID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeAccount(w, status, account)
}

// GetUserAccount godoc
// @Summary Get a user's account
// @Tags accounts
// @Produce json
// @Security ServiceToken
// @Param userId path int true "User ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/user/{userId} [get]
func (h *AccountHandler) GetUserAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	account, err := h.accounts.ByUserID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if account == nil {
		services.SendErrorResponse(w, string(services.KindAccountNotFound), "User "+strconv.FormatInt(userID, 10)+" does not have an account", http.StatusNotFound, nil)
		return
	}
	writeAccount(w, http.StatusOK, account)
}

// GetAccount godoc
// @Summary Get an account by ID
// @Tags accounts
// @Produce json
// @Security ServiceToken
// @Param accountId path int true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{accountId} [get]
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(w, r, "accountId")
	if !ok {
		return
	}

	account, err := h.accounts.ByAccountID(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if account == nil {
		services.SendErrorResponse(w, string(services.KindAccountNotFound), "Account "+strconv.FormatInt(accountID, 10)+" not found", http.StatusNotFound, nil)
		return
	}
	writeAccount(w, http.StatusOK, account)
}

// GetSystemAccount godoc
// @Summary Get a system account by name
// @Tags accounts
// @Produce json
// @Security ServiceToken
// @Param name path string true "System account name"
// @Success 200 {object} models.Account
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/system/{name} [get]
func (h *AccountHandler) GetSystemAccount(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		services.SendErrorResponse(w, services.CodeBadRequest, "System account name is required", http.StatusBadRequest, nil)
		return
	}

	account, err := h.accounts.BySystemName(r.Context(), name)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if account == nil {
		services.SendErrorResponse(w, string(services.KindAccountNotFound), "System account '"+name+"' not found", http.StatusNotFound, nil)
		return
	}
	writeAccount(w, http.StatusOK, account)
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		services.SendErrorResponse(w, services.CodeBadRequest, "Invalid "+param, http.StatusBadRequest, nil)
		return 0, false
	}
	return id, true
}

func writeAccount(w http.ResponseWriter, status int, account *models.Account) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(account)
}

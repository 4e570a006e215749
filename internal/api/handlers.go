/**
 * @description
 * This file contains the HTTP handlers for the ledger-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, validating the
 * account number and amount shapes, calling the appropriate methods on the
 * application service, and writing the HTTP response. They act as the bridge
 * between the web layer and the mutation coordinator.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vaultbank/ledger-service/internal/app"
	"github.com/vaultbank/ledger-service/internal/domain"
	"github.com/vaultbank/ledger-service/internal/store"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service *app.Service
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service) *LedgerHandlers {
	return &LedgerHandlers{service: service}
}

// envelope mirrors the response shape expected by existing clients:
// {"success": ..., "data": ..., "code": ...} on success and
// {"success": false, "error": {...}, "code": ...} on failure.
type envelope struct {
	Success bool          `json:"success"`
	Data    interface{}   `json:"data,omitempty"`
	Error   *errorPayload `json:"error,omitempty"`
	Code    int           `json:"code"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type balanceResponse struct {
	AccountNumber string  `json:"account_number"`
	Balance       float64 `json:"balance"`
}

type mutationResponse struct {
	AccountNumber string  `json:"account_number"`
	NewBalance    float64 `json:"new_balance"`
}

type transactionResponse struct {
	ID        int64   `json:"id"`
	Kind      string  `json:"kind"`
	Amount    float64 `json:"amount"`
	Timestamp string  `json:"timestamp"`
}

func (h *LedgerHandlers) writeSuccess(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Code: code}); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *LedgerHandlers) writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(envelope{Success: false, Error: &errorPayload{Message: message, Code: code}, Code: code}); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

// mapServiceError translates coordinator failures into HTTP responses.
// Exactly one error kind per response; transient contention never reaches
// this point.
func (h *LedgerHandlers) mapServiceError(w http.ResponseWriter, accountNumber string, err error) {
	switch {
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusBadRequest, "Insufficient funds")
	case errors.Is(err, app.ErrContentionExceeded):
		h.writeError(w, http.StatusConflict, "Another transaction is in progress. Please try again.")
	default:
		log.Printf("level=error component=api msg=\"storage failure\" account_number=%s err=%v", accountNumber, err)
		h.writeError(w, http.StatusInternalServerError, "A database error occurred")
	}
}

// accountNumberFromRequest extracts and validates the path parameter shared
// by every account route.
func (h *LedgerHandlers) accountNumberFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	accountNumber := strings.TrimSpace(chi.URLParam(r, "accountNumber"))
	if err := domain.ValidateAccountNumber(accountNumber); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account number format")
		return "", false
	}
	return accountNumber, true
}

// amountFromRequest decodes the JSON body and converts the decimal amount
// into cents.
func (h *LedgerHandlers) amountFromRequest(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		h.writeError(w, http.StatusUnsupportedMediaType, "Missing JSON body or incorrect Content-Type")
		return 0, false
	}

	var req domain.AmountRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Missing 'amount' in request body")
		return 0, false
	}

	cents, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid amount format or must be greater than zero")
		return 0, false
	}
	return cents, true
}

// HomeHandler responds with a welcome message.
func (h *LedgerHandlers) HomeHandler(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, http.StatusOK, map[string]string{"message": "Welcome to the ledger service!"})
}

// GetBalanceHandler handles read-only balance lookups.
func (h *LedgerHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountNumberFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.service.GetBalance(r.Context(), accountNumber)
	if err != nil {
		h.mapServiceError(w, accountNumber, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, balanceResponse{
		AccountNumber: result.AccountNumber,
		Balance:       domain.CentsToAmount(result.BalanceCents),
	})
}

// DepositHandler handles deposit requests.
func (h *LedgerHandlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	h.handleMutation(w, r, +1)
}

// WithdrawHandler handles withdrawal requests.
func (h *LedgerHandlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	h.handleMutation(w, r, -1)
}

func (h *LedgerHandlers) handleMutation(w http.ResponseWriter, r *http.Request, sign int64) {
	accountNumber, ok := h.accountNumberFromRequest(w, r)
	if !ok {
		return
	}
	amountCents, ok := h.amountFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.service.Apply(r.Context(), accountNumber, sign*amountCents)
	if err != nil {
		h.mapServiceError(w, accountNumber, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, mutationResponse{
		AccountNumber: result.AccountNumber,
		NewBalance:    domain.CentsToAmount(result.NewBalanceCents),
	})
}

// ListTransactionsHandler returns the audit log for an account, newest first.
func (h *LedgerHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountNumberFromRequest(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	transactions, err := h.service.ListTransactions(r.Context(), accountNumber, limit, offset)
	if err != nil {
		h.mapServiceError(w, accountNumber, err)
		return
	}

	items := make([]transactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		items = append(items, transactionResponse{
			ID:        tx.ID,
			Kind:      string(tx.Kind),
			Amount:    domain.CentsToAmount(tx.AmountCents),
			Timestamp: tx.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	h.writeSuccess(w, http.StatusOK, map[string]interface{}{
		"account_number": accountNumber,
		"transactions":   items,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

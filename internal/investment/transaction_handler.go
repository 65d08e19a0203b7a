package investments

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sebuszqo/InvestLog/internal/investment/models"
	"github.com/sebuszqo/InvestLog/internal/investment/position"
)

type batchRequest struct {
	Records []models.TransactionInput `json:"records"`
}

func (h *InvestmentHandler) GetAllTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := h.transactionService.ListTransactions(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "Failed to retrieve transactions")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    records,
		"count":   len(records),
	})
}

func (h *InvestmentHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	// id was validated by the middleware
	record, err := h.transactionService.GetTransaction(r.Context(), pathUUID(r, "id"))
	if err != nil {
		h.handleServiceError(w, err, "Failed to retrieve transaction")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    record,
	})
}

func (h *InvestmentHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var input models.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	record, err := h.transactionService.CreateTransaction(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err, "Failed to create transaction")
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Transaction successfully created.",
		"data":    record,
	})
}

func (h *InvestmentHandler) CreateTransactionsBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Records) == 0 {
		h.respondError(w, http.StatusBadRequest, "Invalid request body - no records provided")
		return
	}

	created, err := h.transactionService.CreateTransactions(r.Context(), req.Records)
	if err != nil {
		h.handleServiceError(w, err, "Failed to create transactions")
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"count":   len(created),
		"message": fmt.Sprintf("%d transactions created", len(created)),
		"data":    created,
	})
}

func (h *InvestmentHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var input models.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	record, err := h.transactionService.UpdateTransaction(r.Context(), pathUUID(r, "id"), input)
	if err != nil {
		h.handleServiceError(w, err, "Failed to update transaction")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Transaction successfully updated.",
		"data":    record,
	})
}

func (h *InvestmentHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.transactionService.DeleteTransaction(r.Context(), pathUUID(r, "id")); err != nil {
		h.handleServiceError(w, err, "Failed to delete transaction")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Transaction successfully deleted.",
	})
}

func (h *InvestmentHandler) DeleteAllTransactions(w http.ResponseWriter, r *http.Request) {
	count, err := h.transactionService.DeleteAllTransactions(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "Failed to delete transactions")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   count,
		"message": fmt.Sprintf("%d transactions deleted", count),
	})
}

// GetSummary aggregates positions from cached prices only. ?currency= set to
// the configured quote currency converts every amount at the stored rate.
func (h *InvestmentHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.positionService.Summary(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "Failed to build summary")
		return
	}

	if currency := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("currency"))); currency != "" {
		rate, err := h.fxService.Current(r.Context())
		if err != nil {
			h.handleServiceError(w, err, "Failed to load exchange rate")
			return
		}
		switch currency {
		case rate.Base:
			summary.Currency = rate.Base
		case rate.Quote:
			summary = position.Convert(summary, rate.Rate, rate.Quote)
		default:
			h.respondError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported currency %s (use %s or %s)", currency, rate.Base, rate.Quote))
			return
		}
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    summary,
	})
}

func (h *InvestmentHandler) GetAllocation(w http.ResponseWriter, r *http.Request) {
	allocation, err := h.positionService.Allocation(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "Failed to build allocation")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    allocation,
	})
}

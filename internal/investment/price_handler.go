package investments

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sebuszqo/InvestLog/internal/investment/pricing"
)

type pricesRequest struct {
	Symbols []string `json:"symbols"`
	Force   bool     `json:"force"`
}

// GetPrice serves /api/price/{symbol}?force=1&retries=N.
func (h *InvestmentHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	opts := pricing.Options{ForceRefresh: queryBool(r, "force")}
	if raw := r.URL.Query().Get("retries"); raw != "" {
		retries, err := strconv.Atoi(raw)
		if err != nil || retries < 0 {
			h.respondError(w, http.StatusBadRequest, "retries must be a non-negative integer")
			return
		}
		opts.MaxRetries = pricing.Retries(retries)
	}

	result, err := h.resolver.ResolvePrice(r.Context(), r.PathValue("symbol"), opts)
	if err != nil {
		h.handleServiceError(w, err, "Failed to resolve price")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    result,
	})
}

// GetPrices resolves a list of symbols. Per-symbol failures are reported in
// the results and never fail the request.
func (h *InvestmentHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	var req pricesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Symbols) == 0 {
		h.respondError(w, http.StatusBadRequest, "symbols must be a non-empty array")
		return
	}

	results := h.resolver.ResolvePrices(r.Context(), req.Symbols, req.Force)
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    results,
	})
}

// RefreshPrices resolves every symbol currently held.
func (h *InvestmentHandler) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	results, err := h.resolver.RefreshHeld(r.Context(), h.transactionService, queryBool(r, "force"))
	if err != nil {
		h.handleServiceError(w, err, "Failed to refresh prices")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(results),
		"data":    results,
	})
}

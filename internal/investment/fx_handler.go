package investments

import "net/http"

func (h *InvestmentHandler) GetExchangeRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.fxService.Current(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "Failed to load exchange rate")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    rate,
	})
}

func (h *InvestmentHandler) RefreshExchangeRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.fxService.Refresh(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "Failed to refresh exchange rate")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    rate,
	})
}

package investments

import (
	"encoding/json"
	"net/http"
	"strings"
)

type setConfigRequest struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func (h *InvestmentHandler) GetAllConfig(w http.ResponseWriter, r *http.Request) {
	values, err := h.settingsService.GetAll(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "Failed to retrieve configuration")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    values,
	})
}

// GetConfig answers an unknown key with data null, not 404.
func (h *InvestmentHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	value, found, err := h.settingsService.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		h.handleServiceError(w, err, "Failed to retrieve configuration")
		return
	}

	var data interface{}
	if found {
		data = value
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func (h *InvestmentHandler) SetConfig(w http.ResponseWriter, r *http.Request) {
	var req setConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		h.respondError(w, http.StatusBadRequest, "Config key is required")
		return
	}

	if err := h.settingsService.Set(r.Context(), req.Key, req.Value); err != nil {
		h.handleServiceError(w, err, "Failed to save configuration")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Configuration saved.",
	})
}

package investments

import (
	"fmt"
	"net/http"
)

// AnalyzeReceipt reads transactions from an uploaded screenshot (form field
// image) and stores them.
func (h *InvestmentHandler) AnalyzeReceipt(w http.ResponseWriter, r *http.Request) {
	if h.receiptService == nil {
		h.respondError(w, http.StatusServiceUnavailable, "Receipt import is not configured")
		return
	}

	data, mimeType, err := h.readUpload(w, r, "image")
	if h.uploadError(w, err, "Image is required") {
		return
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	created, err := h.receiptService.Analyze(r.Context(), data, mimeType)
	if err != nil {
		h.handleServiceError(w, err, "Failed to analyze receipt")
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"count":   len(created),
		"message": fmt.Sprintf("%d transactions recognized", len(created)),
		"data":    created,
	})
}

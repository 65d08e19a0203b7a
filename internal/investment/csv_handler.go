package investments

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

var errMissingUpload = errors.New("missing upload")

// readUpload returns the multipart file field and its declared content type.
func (h *InvestmentHandler) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, "", err
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", errMissingUpload
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Header.Get("Content-Type"), nil
}

// uploadError answers a failed readUpload and reports whether it did.
func (h *InvestmentHandler) uploadError(w http.ResponseWriter, err error, missing string) bool {
	if err == nil {
		return false
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		h.respondError(w, http.StatusRequestEntityTooLarge, "File exceeds the 5 MB limit")
	case errors.Is(err, errMissingUpload), errors.Is(err, http.ErrNotMultipart):
		h.respondError(w, http.StatusBadRequest, missing)
	default:
		h.respondError(w, http.StatusBadRequest, "Invalid upload")
	}
	return true
}

func (h *InvestmentHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := h.importer.Export(r.Context(), &buf); err != nil {
		h.handleServiceError(w, err, "Failed to export transactions")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"investlog_%d.csv\"", time.Now().UnixMilli()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *InvestmentHandler) ValidateCSV(w http.ResponseWriter, r *http.Request) {
	data, _, err := h.readUpload(w, r, "file")
	if h.uploadError(w, err, "CSV file is required") {
		return
	}

	report := h.importer.Validate(string(data))
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    report,
	})
}

// ImportCSV replaces all transactions with the uploaded file, or appends to
// them when the form field append is true.
func (h *InvestmentHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	data, _, err := h.readUpload(w, r, "file")
	if h.uploadError(w, err, "CSV file is required") {
		return
	}
	appendMode, _ := strconv.ParseBool(r.FormValue("append"))

	result, err := h.importer.Import(r.Context(), string(data), appendMode)
	if err != nil {
		h.handleServiceError(w, err, "Failed to import transactions")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("%d transactions imported", result.Imported),
		"data":    result,
	})
}

package investments

import (
	"net/http"
	"strings"
	"time"

	"github.com/sebuszqo/InvestLog/internal/investment/position"
	"github.com/sebuszqo/InvestLog/internal/report"
)

// GetReport renders the portfolio as an HTML page, or as Markdown with
// ?format=md. ?currency= behaves as on the summary endpoint.
func (h *InvestmentHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := h.positionService.Summary(ctx)
	if err != nil {
		h.handleServiceError(w, err, "Failed to build summary")
		return
	}
	allocation, err := h.positionService.Allocation(ctx)
	if err != nil {
		h.handleServiceError(w, err, "Failed to build allocation")
		return
	}

	rate, err := h.fxService.Current(ctx)
	if err != nil {
		h.handleServiceError(w, err, "Failed to load exchange rate")
		return
	}
	opts := report.Options{Title: "Portfolio", Currency: rate.Base, GeneratedAt: time.Now()}
	if currency := strings.ToUpper(r.URL.Query().Get("currency")); currency != "" && currency != rate.Base {
		if currency != rate.Quote {
			h.respondError(w, http.StatusBadRequest, "Unsupported currency "+currency)
			return
		}
		summary = position.Convert(summary, rate.Rate, rate.Quote)
		opts.Currency = rate.Quote
		opts.Rate = &rate
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "md") {
		body, err := report.Markdown(summary, allocation, opts)
		if err != nil {
			h.handleServiceError(w, err, "Failed to render report")
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(body))
		return
	}

	page, err := report.HTML(summary, allocation, opts)
	if err != nil {
		h.handleServiceError(w, err, "Failed to render report")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

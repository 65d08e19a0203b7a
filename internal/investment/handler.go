package investments

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sebuszqo/InvestLog/internal/investment/csvio"
	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
	"github.com/sebuszqo/InvestLog/internal/investment/marketdata"
	"github.com/sebuszqo/InvestLog/internal/investment/position"
	"github.com/sebuszqo/InvestLog/internal/investment/pricing"
	"github.com/sebuszqo/InvestLog/internal/investment/receipt"
	"github.com/sebuszqo/InvestLog/internal/investment/settings"
	transactions "github.com/sebuszqo/InvestLog/internal/investment/transaction"
)

// maxUploadSize caps CSV and image uploads.
const maxUploadSize = 5 << 20

// Dependencies are the services behind the REST API. Receipts may be nil when
// no AI provider is configured.
type Dependencies struct {
	Transactions transactions.Service
	Positions    *position.Service
	Settings     settings.Service
	Resolver     *pricing.Resolver
	Importer     *csvio.Importer
	FX           *marketdata.FXService
	Receipts     *receipt.Service
	Health       func() map[string]string
}

type InvestmentHandler struct {
	transactionService transactions.Service
	positionService    *position.Service
	settingsService    settings.Service
	resolver           *pricing.Resolver
	importer           *csvio.Importer
	fxService          *marketdata.FXService
	receiptService     *receipt.Service
	health             func() map[string]string
	log                zerolog.Logger
	respondJSON        func(w http.ResponseWriter, status int, payload interface{})
	respondError       func(w http.ResponseWriter, status int, message string, errors ...[]string)
}

func NewInvestmentHandler(
	deps Dependencies,
	log zerolog.Logger,
	respondJSON func(w http.ResponseWriter, status int, payload interface{}),
	respondError func(w http.ResponseWriter, status int, message string, errors ...[]string),
) *InvestmentHandler {
	return &InvestmentHandler{
		transactionService: deps.Transactions,
		positionService:    deps.Positions,
		settingsService:    deps.Settings,
		resolver:           deps.Resolver,
		importer:           deps.Importer,
		fxService:          deps.FX,
		receiptService:     deps.Receipts,
		health:             deps.Health,
		log:                log.With().Str("component", "api").Logger(),
		respondJSON:        respondJSON,
		respondError:       respondError,
	}
}

// RegisterRoutes mounts every REST endpoint on mux.
func (h *InvestmentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.Health)

	// TRANSACTIONS
	mux.HandleFunc("GET /api/transactions", h.GetAllTransactions)
	mux.HandleFunc("POST /api/transactions", h.CreateTransaction)
	mux.HandleFunc("DELETE /api/transactions", h.DeleteAllTransactions)
	mux.HandleFunc("POST /api/transactions/batch", h.CreateTransactionsBatch)
	mux.HandleFunc("GET /api/transactions/summary", h.GetSummary)
	mux.HandleFunc("GET /api/transactions/allocation", h.GetAllocation)
	mux.Handle("GET /api/transactions/{id}",
		h.ValidateInvestmentPathParamsMiddleware(http.HandlerFunc(h.GetTransaction), "id"))
	mux.Handle("PUT /api/transactions/{id}",
		h.ValidateInvestmentPathParamsMiddleware(http.HandlerFunc(h.UpdateTransaction), "id"))
	mux.Handle("DELETE /api/transactions/{id}",
		h.ValidateInvestmentPathParamsMiddleware(http.HandlerFunc(h.DeleteTransaction), "id"))

	// CSV
	mux.HandleFunc("GET /api/export/csv", h.ExportCSV)
	mux.HandleFunc("POST /api/import/csv/validate", h.ValidateCSV)
	mux.HandleFunc("POST /api/import/csv", h.ImportCSV)

	// CONFIG
	mux.HandleFunc("GET /api/config", h.GetAllConfig)
	mux.HandleFunc("GET /api/config/{key}", h.GetConfig)
	mux.HandleFunc("POST /api/config", h.SetConfig)

	// PRICES
	mux.HandleFunc("GET /api/price/{symbol}", h.GetPrice)
	mux.HandleFunc("POST /api/prices", h.GetPrices)
	mux.HandleFunc("POST /api/prices/refresh", h.RefreshPrices)

	// FX
	mux.HandleFunc("GET /api/fx", h.GetExchangeRate)
	mux.HandleFunc("POST /api/fx/refresh", h.RefreshExchangeRate)

	mux.HandleFunc("POST /api/receipts", h.AnalyzeReceipt)
	mux.HandleFunc("GET /api/report", h.GetReport)
}

func (h *InvestmentHandler) Health(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"success": true,
		"status":  "running",
	}
	if h.health != nil {
		db := h.health()
		payload["database"] = db
		if db["status"] != "up" {
			payload["success"] = false
			payload["status"] = "degraded"
			h.respondJSON(w, http.StatusServiceUnavailable, payload)
			return
		}
	}

	count, err := h.transactionService.Count(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "Failed to count transactions")
		return
	}
	payload["transactionCount"] = count
	h.respondJSON(w, http.StatusOK, payload)
}

// handleServiceError maps domain errors to status codes. Anything unexpected
// is logged and answered with fallback.
func (h *InvestmentHandler) handleServiceError(w http.ResponseWriter, err error, fallback string) {
	var validationErrors *investErrors.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		messages := validationErrors.Messages()
		message := "Validation failed"
		if len(messages) == 1 {
			message = messages[0]
		}
		h.respondError(w, http.StatusBadRequest, message, messages)
	case investErrors.IsValidationError(err):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case transactions.IsNotFound(err):
		h.respondError(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, investErrors.ErrPriceUnavailable):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, investErrors.ErrUpstreamUnreachable):
		h.respondError(w, http.StatusBadGateway, err.Error())
	default:
		h.log.Error().Err(err).Msg(fallback)
		h.respondError(w, http.StatusInternalServerError, fallback)
	}
}

// queryBool accepts 1/true/yes; anything else is false.
func queryBool(r *http.Request, name string) bool {
	value := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name)))
	if value == "yes" {
		return true
	}
	b, _ := strconv.ParseBool(value)
	return b
}

package investments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	database "github.com/sebuszqo/InvestLog/db"
	"github.com/sebuszqo/InvestLog/internal/investment/csvio"
	"github.com/sebuszqo/InvestLog/internal/investment/marketdata"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
	"github.com/sebuszqo/InvestLog/internal/investment/position"
	"github.com/sebuszqo/InvestLog/internal/investment/pricecache"
	"github.com/sebuszqo/InvestLog/internal/investment/pricing"
	"github.com/sebuszqo/InvestLog/internal/investment/receipt"
	"github.com/sebuszqo/InvestLog/internal/investment/settings"
	transactions "github.com/sebuszqo/InvestLog/internal/investment/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPrices map[string]float64

func (s stubPrices) FetchQuote(_ context.Context, symbol string) (models.Quote, error) {
	price, ok := s[symbol]
	if !ok {
		return models.Quote{}, errors.New("no quote")
	}
	return models.Quote{Symbol: symbol, Price: price, Field: "regularMarketPrice"}, nil
}

type stubRate float64

func (s stubRate) FetchRate(context.Context, string, string) (float64, error) { return float64(s), nil }

type stubExtractor string

func (s stubExtractor) Extract(context.Context, []byte, string) (string, error) {
	return string(s), nil
}

type testEnv struct {
	mux      *http.ServeMux
	settings settings.Service
	cache    *pricecache.Cache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dbService, err := database.NewDBService(database.DriverSQLite, ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { dbService.Close() })

	txService := transactions.NewTransactionService(transactions.NewTransactionRepository(dbService.DB))
	settingsService := settings.NewService(settings.NewRepository(dbService.DB))
	cache := pricecache.New(pricecache.NewSQLStore(dbService.DB))
	resolver := pricing.NewResolver(cache, stubPrices{"AAPL": 190, "MSFT": 410}, pricing.Config{
		Policy: pricing.DefaultRetryPolicy().NoWait(),
	}, zerolog.Nop())

	extraction := `[{"assetName":"Apple","date":"2024-06-03","totalAmount":1000,"unitPrice":200}]`
	receipts := receipt.NewService(settingsService, settings.AIConfig{APIKey: "test"}, txService,
		func(context.Context, settings.AIConfig) (receipt.Extractor, error) {
			return stubExtractor(extraction), nil
		},
		zerolog.Nop())

	handler := NewInvestmentHandler(Dependencies{
		Transactions: txService,
		Positions:    position.NewService(txService, cache),
		Settings:     settingsService,
		Resolver:     resolver,
		Importer:     csvio.NewImporter(txService, zerolog.Nop()),
		FX:           marketdata.NewFXService(stubRate(7.1), settingsService, "USD", "CNY", zerolog.Nop()),
		Receipts:     receipts,
		Health:       dbService.Health,
	}, zerolog.Nop(), respondJSON, respondError)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return &testEnv{mux: mux, settings: settingsService, cache: cache}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  []string        `json:"errors"`
	Count   int             `json:"count"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (e *testEnv) doJSON(t *testing.T, method, path string, payload interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return e.do(t, method, path, body, "application/json")
}

func multipartBody(t *testing.T, field, filename, contentType string, content []byte, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
	header["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestTransactionCRUD(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.doJSON(t, http.MethodPost, "/api/transactions", map[string]interface{}{
		"name": "Apple", "symbol": "AAPL", "date": "2024-01-02", "total": 1000, "price": 200,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Transaction
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, 5.0, created.Shares)

	w, resp = env.doJSON(t, http.MethodGet, "/api/transactions/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	w, _ = env.doJSON(t, http.MethodPut, "/api/transactions/"+created.ID.String(), map[string]interface{}{
		"name": "Apple", "symbol": "AAPL", "date": "2024-01-03", "total": 1200, "price": 200,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = env.doJSON(t, http.MethodGet, "/api/transactions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, resp.Count)

	w, _ = env.doJSON(t, http.MethodDelete, "/api/transactions/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = env.doJSON(t, http.MethodDelete, "/api/transactions/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Transaction not found", resp.Message)
}

func TestTransactionNotFound(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.doJSON(t, http.MethodGet, "/api/transactions/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "Transaction not found", resp.Message)

	w, _ = env.doJSON(t, http.MethodGet, "/api/transactions/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = env.doJSON(t, http.MethodPut, "/api/transactions/"+uuid.NewString(), map[string]interface{}{
		"name": "Apple", "date": "2024-01-03", "total": 1, "price": 1,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTransaction_Validation(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.doJSON(t, http.MethodPost, "/api/transactions", map[string]interface{}{
		"name": "", "date": "02/01/2024", "total": 10, "price": 0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Message, "Name is required")

	w, resp = env.do(t, http.MethodPost, "/api/transactions", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", resp.Message)
}

func TestCreateTransactionsBatch(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.doJSON(t, http.MethodPost, "/api/transactions/batch", map[string]interface{}{
		"records": []map[string]interface{}{
			{"name": "Apple", "date": "2024-01-02", "total": 100, "price": 10},
			{"name": "", "date": "2024-01-02", "total": 100, "price": 10},
			{"name": "Tesla", "date": "2024-01-02", "total": 100, "price": -1},
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{
		"Validation error at transaction 2: Name is required",
		"Validation error at transaction 3: Price must be greater than 0",
	}, resp.Errors)

	_, resp = env.doJSON(t, http.MethodGet, "/api/transactions", nil)
	assert.Equal(t, 0, resp.Count, "a rejected batch stores nothing")

	w, resp = env.doJSON(t, http.MethodPost, "/api/transactions/batch", map[string]interface{}{"records": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = env.doJSON(t, http.MethodPost, "/api/transactions/batch", map[string]interface{}{
		"records": []map[string]interface{}{
			{"name": "Apple", "date": "2024-01-02", "total": 100, "price": 10},
			{"name": "Tesla", "date": "2024-01-02", "total": 100, "price": 20},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, resp.Count)

	w, resp = env.doJSON(t, http.MethodDelete, "/api/transactions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, resp.Count)
}

func TestSummaryAndAllocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.doJSON(t, http.MethodPost, "/api/transactions/batch", map[string]interface{}{
		"records": []map[string]interface{}{
			{"name": "Triple A", "symbol": "AAA", "date": "2024-01-02", "total": 100, "price": 10},
			{"name": "Triple A", "symbol": "aaa", "date": "2024-02-02", "total": 50, "price": 12.5},
			{"name": "Bravo", "symbol": "BBB", "date": "2024-02-02", "total": 50, "price": 5},
		},
	})
	_, err := env.cache.Record(ctx, "AAA", 12)
	require.NoError(t, err)

	w, resp := env.doJSON(t, http.MethodGet, "/api/transactions/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary models.PortfolioSummary
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	require.Len(t, summary.Positions, 2)
	assert.Equal(t, 168.0, *summary.Positions[0].MarketValue)
	assert.Nil(t, summary.Positions[1].MarketValue)
	assert.Equal(t, []string{"BBB"}, summary.Unpriced)
	require.NotNil(t, summary.ProfitRate)
	assert.InDelta(t, 12.0, *summary.ProfitRate, 1e-9)

	require.NoError(t, env.settings.SetExchangeRate(ctx, models.ExchangeRate{Base: "USD", Quote: "CNY", Rate: 7}))
	w, resp = env.doJSON(t, http.MethodGet, "/api/transactions/summary?currency=cny", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	assert.Equal(t, "CNY", summary.Currency)
	assert.Equal(t, 1400.0, summary.TotalCost)

	w, _ = env.doJSON(t, http.MethodGet, "/api/transactions/summary?currency=EUR", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = env.doJSON(t, http.MethodGet, "/api/transactions/allocation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var allocation []models.AllocationSlice
	require.NoError(t, json.Unmarshal(resp.Data, &allocation))
	require.Len(t, allocation, 2)
	assert.Equal(t, "Triple A", allocation[0].Name)
	assert.Equal(t, 75.0, allocation[0].Percent)
}

func TestGetPrice(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.doJSON(t, http.MethodGet, "/api/price/aapl", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var result pricing.Result
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, "AAPL", result.Symbol)
	assert.Equal(t, 190.0, result.Price)
	assert.False(t, result.Cached)

	_, resp = env.doJSON(t, http.MethodGet, "/api/price/AAPL", nil)
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.True(t, result.Cached)

	_, resp = env.doJSON(t, http.MethodGet, "/api/price/AAPL?force=1", nil)
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.False(t, result.Cached)

	w, resp = env.doJSON(t, http.MethodGet, "/api/price/NOPE?retries=2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, resp.Message, "price unavailable for NOPE after 3 attempt(s)")

	w, _ = env.doJSON(t, http.MethodGet, "/api/price/AAPL?retries=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPrices_PartialFailure(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.doJSON(t, http.MethodPost, "/api/prices", map[string]interface{}{"symbols": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := env.doJSON(t, http.MethodPost, "/api/prices", map[string]interface{}{"symbols": []string{"AAPL", "NOPE", "msft"}})
	require.Equal(t, http.StatusOK, w.Code)
	var results map[string]pricing.BatchResult
	require.NoError(t, json.Unmarshal(resp.Data, &results))
	require.Len(t, results, 3)
	assert.Equal(t, 190.0, *results["AAPL"].Price)
	assert.Equal(t, 410.0, *results["MSFT"].Price)
	assert.Nil(t, results["NOPE"].Price)
	assert.NotEmpty(t, results["NOPE"].Error)
}

func TestRefreshPrices(t *testing.T) {
	env := newTestEnv(t)
	env.doJSON(t, http.MethodPost, "/api/transactions", map[string]interface{}{
		"name": "Apple", "symbol": "aapl", "date": "2024-01-02", "total": 1000, "price": 200,
	})

	w, resp := env.doJSON(t, http.MethodPost, "/api/prices/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, resp.Count)

	entry, err := env.cache.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 190.0, entry.Price)
}

func TestCSVImportExport(t *testing.T) {
	env := newTestEnv(t)
	csvText := "\ufeffName,Symbol,Date,Total,Price\nApple,AAPL,2024-01-02,100,10\nTesla,TSLA,2024-01-03,200,20\n"

	body, contentType := multipartBody(t, "file", "ledger.csv", "text/csv", []byte(csvText), nil)
	w, resp := env.do(t, http.MethodPost, "/api/import/csv/validate", body, contentType)
	require.Equal(t, http.StatusOK, w.Code)
	var report csvio.ValidationReport
	require.NoError(t, json.Unmarshal(resp.Data, &report))
	assert.True(t, report.Valid)
	assert.Equal(t, 2, report.Count)

	body, contentType = multipartBody(t, "file", "ledger.csv", "text/csv", []byte(csvText), map[string]string{"append": "false"})
	w, resp = env.do(t, http.MethodPost, "/api/import/csv", body, contentType)
	require.Equal(t, http.StatusOK, w.Code)
	var result csvio.ImportResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 2, result.Imported)

	body, contentType = multipartBody(t, "file", "bad.csv", "text/csv", []byte("name,date\nApple,2024-01-02\n"), nil)
	w, resp = env.do(t, http.MethodPost, "/api/import/csv", body, contentType)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Message, "Missing required columns")

	w, _ = env.do(t, http.MethodGet, "/api/export/csv", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "investlog_")
	assert.True(t, strings.HasPrefix(w.Body.String(), "\ufeffname,symbol,date,total,price,shares\n"))
	assert.Contains(t, w.Body.String(), "Tesla,TSLA,2024-01-03,200,20,10\n")
}

func TestImportCSV_MissingFile(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, "other", "x.csv", "text/csv", []byte("x"), nil)
	w, resp := env.do(t, http.MethodPost, "/api/import/csv", body, contentType)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CSV file is required", resp.Message)
}

func TestConfigEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.doJSON(t, http.MethodGet, "/api/config/theme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", string(resp.Data))

	w, _ = env.doJSON(t, http.MethodPost, "/api/config", map[string]interface{}{"key": "theme", "value": map[string]string{"mode": "dark"}})
	require.Equal(t, http.StatusOK, w.Code)

	_, resp = env.doJSON(t, http.MethodGet, "/api/config/theme", nil)
	assert.JSONEq(t, `{"mode":"dark"}`, string(resp.Data))

	_, resp = env.doJSON(t, http.MethodGet, "/api/config", nil)
	assert.JSONEq(t, `{"theme":{"mode":"dark"}}`, string(resp.Data))

	w, resp = env.doJSON(t, http.MethodPost, "/api/config", map[string]interface{}{"key": " ", "value": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Config key is required", resp.Message)
}

func TestExchangeRateEndpoints(t *testing.T) {
	env := newTestEnv(t)

	_, resp := env.doJSON(t, http.MethodGet, "/api/fx", nil)
	var rate models.ExchangeRate
	require.NoError(t, json.Unmarshal(resp.Data, &rate))
	assert.Equal(t, marketdata.DefaultUSDCNY, rate.Rate)

	w, resp := env.doJSON(t, http.MethodPost, "/api/fx/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &rate))
	assert.Equal(t, 7.1, rate.Rate)

	_, resp = env.doJSON(t, http.MethodGet, "/api/fx", nil)
	require.NoError(t, json.Unmarshal(resp.Data, &rate))
	assert.Equal(t, 7.1, rate.Rate)
	assert.WithinDuration(t, time.Now(), rate.UpdatedAt, time.Minute)
}

func TestAnalyzeReceipt(t *testing.T) {
	env := newTestEnv(t)
	png := []byte("\x89PNG\r\n\x1a\n fake image")

	body, contentType := multipartBody(t, "image", "shot.png", "image/png", png, nil)
	w, resp := env.do(t, http.MethodPost, "/api/receipts", body, contentType)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, resp.Count)

	body, contentType = multipartBody(t, "image", "notes.txt", "text/plain", []byte("hello"), nil)
	w, resp = env.do(t, http.MethodPost, "/api/receipts", body, contentType)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Only image uploads are supported", resp.Message)
}

func TestHealthAndReport(t *testing.T) {
	env := newTestEnv(t)
	env.doJSON(t, http.MethodPost, "/api/transactions", map[string]interface{}{
		"name": "Apple", "symbol": "AAPL", "date": "2024-01-02", "total": 1000, "price": 200,
	})

	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, true, health["success"])
	assert.Equal(t, float64(1), health["transactionCount"])

	w, _ = env.do(t, http.MethodGet, "/api/report?format=md", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "| AAPL | Apple | 5 | $1,000.00 |")

	w, _ = env.do(t, http.MethodGet, "/api/report", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<table>")
}

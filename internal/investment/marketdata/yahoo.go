package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
)

const (
	DefaultChartURL  = "https://query1.finance.yahoo.com/v8/finance/chart/%s"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	pathRegularMarketPrice = "$.chart.result[0].meta.regularMarketPrice"
	pathPreviousClose      = "$.chart.result[0].meta.previousClose"
	pathCurrency           = "$.chart.result[0].meta.currency"

	maxBodySize = 2 << 20
)

// PriceSource performs exactly one external lookup per call.
type PriceSource interface {
	FetchQuote(ctx context.Context, symbol string) (models.Quote, error)
}

type YahooClient struct {
	chartURL   string
	userAgent  string
	httpClient *http.Client
}

// NewYahooClient builds a chart client. chartURL must contain one %s for the symbol.
func NewYahooClient(chartURL, userAgent string, timeout time.Duration) *YahooClient {
	if chartURL == "" {
		chartURL = DefaultChartURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YahooClient{
		chartURL:   chartURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *YahooClient) FetchQuote(ctx context.Context, symbol string) (models.Quote, error) {
	symbol = models.CanonicalSymbol(symbol)
	if symbol == "" {
		return models.Quote{}, investErrors.NewValidationError("Symbol is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(c.chartURL, url.PathEscape(symbol)), nil)
	if err != nil {
		return models.Quote{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", "https://finance.yahoo.com/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Quote{}, investErrors.NewUpstreamError("yahoo", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Quote{}, fmt.Errorf("yahoo: unexpected status %s for %s", resp.Status, symbol)
	}

	doc, err := decodeJSON(resp.Body)
	if err != nil {
		return models.Quote{}, fmt.Errorf("yahoo: %s: %w", symbol, err)
	}

	quote := models.Quote{Symbol: symbol}
	for _, path := range []string{pathRegularMarketPrice, pathPreviousClose} {
		if price, ok := lookupFloat(doc, path); ok && price > 0 {
			quote.Price = price
			quote.Field = path[strings.LastIndex(path, ".")+1:]
			break
		}
	}
	if quote.Price <= 0 {
		return models.Quote{}, fmt.Errorf("yahoo: no positive price for %s", symbol)
	}
	if currency, err := jsonpath.Get(pathCurrency, doc); err == nil {
		quote.Currency, _ = first(currency).(string)
	}
	return quote, nil
}

func decodeJSON(r io.Reader) (any, error) {
	var doc any
	if err := json.NewDecoder(io.LimitReader(r, maxBodySize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}
	return doc, nil
}

// first unwraps single-element lists, jsonpath returns either form.
func first(v any) any {
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil
		}
		return list[0]
	}
	return v
}

func lookupFloat(doc any, path string) (float64, bool) {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return 0, false
	}
	f, ok := first(v).(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

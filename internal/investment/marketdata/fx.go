package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
)

const (
	DefaultFXURL = "https://open.er-api.com/v6/latest/%s"

	// DefaultUSDCNY is shown until a rate has been fetched once.
	DefaultUSDCNY = 7.25
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

type RateSource interface {
	FetchRate(ctx context.Context, base, quote string) (float64, error)
}

type FXClient struct {
	url        string
	httpClient *http.Client
}

// NewFXClient builds a client for a rates endpoint. url must contain one %s for the base currency.
func NewFXClient(url string, timeout time.Duration) *FXClient {
	if url == "" {
		url = DefaultFXURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FXClient{url: url, httpClient: &http.Client{Timeout: timeout}}
}

func (c *FXClient) FetchRate(ctx context.Context, base, quote string) (float64, error) {
	base, quote = strings.ToUpper(base), strings.ToUpper(quote)
	if !currencyCode.MatchString(base) || !currencyCode.MatchString(quote) {
		return 0, investErrors.NewValidationError(fmt.Sprintf("invalid currency pair %s/%s", base, quote))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(c.url, base), nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, investErrors.NewUpstreamError("fx", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fx: unexpected status %s", resp.Status)
	}

	doc, err := decodeJSON(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("fx: %w", err)
	}
	rate, ok := lookupFloat(doc, "$.rates."+quote)
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("fx: no rate for %s/%s", base, quote)
	}
	return rate, nil
}

// RateStore persists the latest exchange rate.
type RateStore interface {
	ExchangeRate(ctx context.Context) (*models.ExchangeRate, error)
	SetExchangeRate(ctx context.Context, rate models.ExchangeRate) error
}

// FXService keeps the configured currency pair's rate up to date.
type FXService struct {
	source RateSource
	store  RateStore
	base   string
	quote  string
	now    func() time.Time
	log    zerolog.Logger
}

func NewFXService(source RateSource, store RateStore, base, quote string, log zerolog.Logger) *FXService {
	return &FXService{
		source: source,
		store:  store,
		base:   strings.ToUpper(base),
		quote:  strings.ToUpper(quote),
		now:    time.Now,
		log:    log.With().Str("component", "fx").Logger(),
	}
}

// Refresh fetches the current rate and stores it.
func (s *FXService) Refresh(ctx context.Context) (models.ExchangeRate, error) {
	value, err := s.source.FetchRate(ctx, s.base, s.quote)
	if err != nil {
		s.log.Warn().Err(err).Str("pair", s.base+"/"+s.quote).Msg("exchange rate refresh failed")
		return models.ExchangeRate{}, err
	}
	rate := models.ExchangeRate{Base: s.base, Quote: s.quote, Rate: value, UpdatedAt: s.now().UTC()}
	if err := s.store.SetExchangeRate(ctx, rate); err != nil {
		return models.ExchangeRate{}, err
	}
	s.log.Info().Float64("rate", value).Str("pair", s.base+"/"+s.quote).Msg("exchange rate updated")
	return rate, nil
}

// Current returns the stored rate. Before the first refresh it falls back to
// DefaultUSDCNY for USD/CNY and 1 for any other pair, with a zero UpdatedAt.
func (s *FXService) Current(ctx context.Context) (models.ExchangeRate, error) {
	stored, err := s.store.ExchangeRate(ctx)
	if err != nil {
		return models.ExchangeRate{}, err
	}
	if stored != nil && stored.Base == s.base && stored.Quote == s.quote {
		return *stored, nil
	}
	fallback := 1.0
	if s.base == "USD" && s.quote == "CNY" {
		fallback = DefaultUSDCNY
	}
	return models.ExchangeRate{Base: s.base, Quote: s.quote, Rate: fallback}, nil
}

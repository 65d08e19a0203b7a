package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sebuszqo/InvestLog/internal/investment/marketdata"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
	"github.com/sebuszqo/InvestLog/internal/investment/pricecache"
	"github.com/sebuszqo/InvestLog/internal/investment/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_AddValidatesSchedule(t *testing.T) {
	s := New(0, zerolog.Nop())
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add("a", "@every 1h", noop))
	assert.Error(t, s.Add("a", "@every 1h", noop))
	assert.Error(t, s.Add("b", "not a schedule", noop))
	assert.Error(t, s.RunNow("missing"))
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	s := New(time.Second, zerolog.Nop())
	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("failure keeps the job scheduled")
	}))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
}

func TestScheduler_StopCancelsContext(t *testing.T) {
	s := New(0, zerolog.Nop())
	var ctxErr error
	require.NoError(t, s.Add("cancel-check", "@every 1h", func(ctx context.Context) error {
		ctxErr = ctx.Err()
		return nil
	}))
	s.Start()
	s.Stop()

	require.NoError(t, s.RunNow("cancel-check"))
	assert.ErrorIs(t, ctxErr, context.Canceled)
}

type heldSymbols []string

func (h heldSymbols) HeldSymbols(context.Context) ([]string, error) { return h, nil }

type constSource float64

func (c constSource) FetchQuote(_ context.Context, symbol string) (models.Quote, error) {
	return models.Quote{Symbol: symbol, Price: float64(c)}, nil
}

type constRate float64

func (c constRate) FetchRate(context.Context, string, string) (float64, error) {
	return float64(c), nil
}

type rateStore struct{ rate *models.ExchangeRate }

func (s *rateStore) ExchangeRate(context.Context) (*models.ExchangeRate, error) { return s.rate, nil }

func (s *rateStore) SetExchangeRate(_ context.Context, rate models.ExchangeRate) error {
	s.rate = &rate
	return nil
}

func TestJobs(t *testing.T) {
	ctx := context.Background()
	cache := pricecache.New(pricecache.NewMemoryStore())
	resolver := pricing.NewResolver(cache, constSource(42), pricing.Config{
		Policy: pricing.DefaultRetryPolicy().NoWait(),
	}, zerolog.Nop())

	s := New(time.Second, zerolog.Nop())
	require.NoError(t, s.Add(JobPriceRefresh, "@every 1h", PriceRefresh(resolver, heldSymbols{"aapl", "MSFT"})))

	store := &rateStore{}
	fx := marketdata.NewFXService(constRate(7.1), store, "USD", "CNY", zerolog.Nop())
	require.NoError(t, s.Add(JobFXRefresh, "@every 1h", FXRefresh(fx)))

	require.NoError(t, s.RunNow(JobPriceRefresh))
	snapshot, err := cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot, 2)
	assert.Equal(t, 42.0, snapshot["AAPL"].Price)

	require.NoError(t, s.RunNow(JobFXRefresh))
	require.NotNil(t, store.rate)
	assert.Equal(t, 7.1, store.rate.Rate)
}

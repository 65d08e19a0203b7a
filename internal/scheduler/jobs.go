package scheduler

import (
	"context"

	"github.com/sebuszqo/InvestLog/internal/backup"
	"github.com/sebuszqo/InvestLog/internal/investment/marketdata"
	"github.com/sebuszqo/InvestLog/internal/investment/pricing"
)

const (
	JobPriceRefresh = "price-refresh"
	JobFXRefresh    = "fx-refresh"
	JobBackup       = "backup"
)

// PriceRefresh re-resolves every held symbol whose cached price is stale.
// Per-symbol failures are part of the batch result, not a job failure.
func PriceRefresh(resolver *pricing.Resolver, lister pricing.SymbolLister) JobFunc {
	return func(ctx context.Context) error {
		_, err := resolver.RefreshHeld(ctx, lister, false)
		return err
	}
}

func FXRefresh(fx *marketdata.FXService) JobFunc {
	return func(ctx context.Context) error {
		_, err := fx.Refresh(ctx)
		return err
	}
}

func Backup(job *backup.Job) JobFunc {
	return func(ctx context.Context) error {
		_, err := job.Run(ctx)
		return err
	}
}

package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	database "github.com/sebuszqo/InvestLog/db"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestTransactionRepository_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("investlog"),
		postgres.WithUsername("investlog"),
		postgres.WithPassword("investlog"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dbService, err := database.NewDBService(database.DriverPostgres, dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { dbService.Close() })

	exerciseRepository(t, NewTransactionRepository(dbService.DB))
}

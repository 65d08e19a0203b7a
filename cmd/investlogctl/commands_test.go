package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/subcommands"
	"github.com/sebuszqo/InvestLog/internal/investment/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "name,symbol,date,total,price,shares\n" +
	"Apple,AAPL,2024-01-02,1000,200,5\n" +
	"Microsoft,MSFT,2024-01-03,800,400,2\n"

func newTestEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "investlog.toml")
	config := "[database]\ndriver = \"sqlite3\"\ndsn = \"" + filepath.ToSlash(filepath.Join(dir, "test.db")) + "\"\n" +
		"[log]\nlevel = \"error\"\n"
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o600))

	e := &env{configPath: configPath}
	t.Cleanup(e.close)
	return e
}

func run(t *testing.T, cmd subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(fs)
	require.NoError(t, fs.Parse(args))
	return cmd.Execute(context.Background(), fs)
}

func TestImportExportRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(in, []byte(sampleCSV), 0o600))

	assert.Equal(t, subcommands.ExitSuccess, run(t, &importCmd{env: e}, in))
	assert.Equal(t, subcommands.ExitSuccess, run(t, &importCmd{env: e}, in))

	count, err := e.transactions.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	assert.Equal(t, subcommands.ExitSuccess, run(t, &importCmd{env: e}, "-replace", in))
	count, err = e.transactions.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	out := filepath.Join(dir, "out.csv")
	assert.Equal(t, subcommands.ExitSuccess, run(t, &exportCmd{env: e}, "-o", out))
	exported, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(exported), "Apple,AAPL,2024-01-02")
	assert.Contains(t, string(exported), "Microsoft,MSFT,2024-01-03")
}

func TestImportRejectsInvalidFile(t *testing.T) {
	e := newTestEnv(t)
	in := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(in, []byte("name,symbol,date,total,price,shares\n,AAPL,yesterday,-1,0,1\n"), 0o600))

	assert.Equal(t, subcommands.ExitFailure, run(t, &importCmd{env: e}, in))

	count, err := e.transactions.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUsageErrors(t *testing.T) {
	e := newTestEnv(t)

	assert.Equal(t, subcommands.ExitUsageError, run(t, &importCmd{env: e}))
	assert.Equal(t, subcommands.ExitUsageError, run(t, &priceCmd{env: e}))
	assert.Equal(t, subcommands.ExitUsageError, run(t, &resetCmd{env: e}))
	assert.Nil(t, e.db, "usage errors must not open the database")
}

func TestSummaryAndReset(t *testing.T) {
	e := newTestEnv(t)
	in := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(in, []byte(sampleCSV), 0o600))
	require.Equal(t, subcommands.ExitSuccess, run(t, &importCmd{env: e}, in))

	assert.Equal(t, subcommands.ExitSuccess, run(t, &summaryCmd{env: e}, "-md"))
	assert.Equal(t, subcommands.ExitUsageError, run(t, &summaryCmd{env: e}, "-md", "-currency", "JPY"))

	assert.Equal(t, subcommands.ExitSuccess, run(t, &resetCmd{env: e}, "-yes"))
	count, err := e.transactions.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPrintBatch(t *testing.T) {
	price, stale := 190.5, 180.0
	var buf bytes.Buffer
	printBatch(&buf, map[string]pricing.BatchResult{
		"MSFT": {Price: &price, Cached: true},
		"AAPL": {Price: &price},
		"NOPE": {Error: "price unavailable"},
		"TSLA": {Error: "upstream down", StalePrice: &stale},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "AAPL"))
	assert.Contains(t, lines[1], "cached")
	assert.Contains(t, lines[2], "--")
	assert.Contains(t, lines[2], "price unavailable")
	assert.Contains(t, lines[3], "stale: upstream down")
}

func TestCompletionCoversCommands(t *testing.T) {
	c := completion()
	for _, cmd := range commands(&env{}) {
		assert.Contains(t, c.Sub, cmd.Name())
	}
}

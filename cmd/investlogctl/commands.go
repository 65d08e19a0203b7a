package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/sebuszqo/InvestLog/internal/investment/position"
	"github.com/sebuszqo/InvestLog/internal/investment/pricing"
	"github.com/sebuszqo/InvestLog/internal/report"
)

// fail prints err to stderr and returns the failure status.
func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}

type importCmd struct {
	env     *env
	replace bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import transactions from a CSV file" }
func (*importCmd) Usage() string {
	return `investlogctl import [-replace] <file.csv>

  Validates every row of the file before writing anything. By default the
  rows are appended; -replace removes all existing transactions first.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.replace, "replace", false, "Replace all existing transactions instead of appending.")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "import needs exactly one file")
		return subcommands.ExitUsageError
	}
	data, err := os.ReadFile(f.Arg(0))
	if err != nil {
		return fail(err)
	}
	if err := c.env.open(ctx); err != nil {
		return fail(err)
	}

	check := c.env.importer.Validate(string(data))
	if !check.Valid {
		for _, msg := range check.Errors {
			fmt.Fprintln(os.Stderr, msg)
		}
		return subcommands.ExitFailure
	}

	result, err := c.env.importer.Import(ctx, string(data), !c.replace)
	if err != nil {
		return fail(err)
	}
	if c.replace {
		fmt.Printf("replaced %d transactions with %d\n", result.Deleted, result.Imported)
	} else {
		fmt.Printf("imported %d transactions\n", result.Imported)
	}
	return subcommands.ExitSuccess
}

type exportCmd struct {
	env    *env
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export all transactions as CSV" }
func (*exportCmd) Usage() string {
	return `investlogctl export [-o <file.csv>]

  Writes the transaction ledger in the import format, to stdout by default.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "Output file. Defaults to stdout.")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.env.open(ctx); err != nil {
		return fail(err)
	}

	var w io.Writer = os.Stdout
	if c.output != "" {
		file, err := os.Create(c.output)
		if err != nil {
			return fail(err)
		}
		defer file.Close()
		w = file
	}

	buf := bufio.NewWriter(w)
	n, err := c.env.importer.Export(ctx, buf)
	if err != nil {
		return fail(err)
	}
	if err := buf.Flush(); err != nil {
		return fail(err)
	}
	if c.output != "" {
		fmt.Printf("exported %d transactions to %s\n", n, c.output)
	}
	return subcommands.ExitSuccess
}

type refreshCmd struct {
	env   *env
	force bool
}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "refresh prices of every held symbol" }
func (*refreshCmd) Usage() string {
	return `investlogctl refresh [-force]

  Resolves the price of each symbol that appears in the ledger. Fresh cached
  prices are reused unless -force is given.
`
}

func (c *refreshCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.force, "force", false, "Ignore the cache and query the price source for every symbol.")
}

func (c *refreshCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.env.open(ctx); err != nil {
		return fail(err)
	}

	results, err := c.env.resolver.RefreshHeld(ctx, c.env.transactions, c.force)
	if err != nil {
		return fail(err)
	}
	printBatch(os.Stdout, results)
	for _, res := range results {
		if res.Err() != nil {
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

func printBatch(w io.Writer, results map[string]pricing.BatchResult) {
	symbols := make([]string, 0, len(results))
	for symbol := range results {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		res := results[symbol]
		switch {
		case res.Price != nil && res.Cached:
			fmt.Fprintf(w, "%-10s %12.4f  cached\n", symbol, *res.Price)
		case res.Price != nil:
			fmt.Fprintf(w, "%-10s %12.4f\n", symbol, *res.Price)
		case res.StalePrice != nil:
			fmt.Fprintf(w, "%-10s %12.4f  stale: %s\n", symbol, *res.StalePrice, res.Error)
		default:
			fmt.Fprintf(w, "%-10s %12s  %s\n", symbol, report.Unknown, res.Error)
		}
	}
}

type summaryCmd struct {
	env      *env
	currency string
	width    int
	markdown bool
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "print the portfolio summary" }
func (*summaryCmd) Usage() string {
	return `investlogctl summary [-currency <code>] [-md] [-w <width>]

  Aggregates the ledger against the cached prices. Run refresh first to
  bring prices up to date.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "currency", "", "Display currency, the configured base or quote currency.")
	f.BoolVar(&c.markdown, "md", false, "Print raw Markdown instead of styled output.")
	f.IntVar(&c.width, "w", 100, "Wrap width of the styled output.")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.env.open(ctx); err != nil {
		return fail(err)
	}

	summary, err := c.env.positions.Summary(ctx)
	if err != nil {
		return fail(err)
	}
	allocation, err := c.env.positions.Allocation(ctx)
	if err != nil {
		return fail(err)
	}

	rate, err := c.env.fx.Current(ctx)
	if err != nil {
		return fail(err)
	}
	opts := report.Options{Title: "Portfolio", Currency: rate.Base, GeneratedAt: time.Now()}
	if currency := strings.ToUpper(c.currency); currency != "" && currency != rate.Base {
		if currency != rate.Quote {
			fmt.Fprintf(os.Stderr, "unsupported currency %s\n", currency)
			return subcommands.ExitUsageError
		}
		summary = position.Convert(summary, rate.Rate, rate.Quote)
		opts.Currency = rate.Quote
		opts.Rate = &rate
	}

	var out string
	if c.markdown {
		out, err = report.Markdown(summary, allocation, opts)
	} else {
		out, err = report.Terminal(summary, allocation, opts, c.width)
	}
	if err != nil {
		return fail(err)
	}
	fmt.Print(out)
	return subcommands.ExitSuccess
}

type priceCmd struct {
	env     *env
	force   bool
	retries int
}

func (*priceCmd) Name() string     { return "price" }
func (*priceCmd) Synopsis() string { return "resolve the current price of one symbol" }
func (*priceCmd) Usage() string {
	return `investlogctl price [-force] [-retries <n>] <symbol>
`
}

func (c *priceCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.force, "force", false, "Skip the cache.")
	f.IntVar(&c.retries, "retries", -1, "Retries after the first failed attempt. Defaults to the configured value.")
}

func (c *priceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "price needs exactly one symbol")
		return subcommands.ExitUsageError
	}
	if err := c.env.open(ctx); err != nil {
		return fail(err)
	}

	opts := pricing.Options{ForceRefresh: c.force}
	if c.retries >= 0 {
		opts.MaxRetries = pricing.Retries(c.retries)
	}
	res, err := c.env.resolver.ResolvePrice(ctx, f.Arg(0), opts)
	if err != nil {
		return fail(err)
	}

	source := "live"
	if res.Cached {
		source = "cached"
	}
	fmt.Printf("%s %.4f (%s, %s)\n", res.Symbol, res.Price, source, res.UpdatedAt.Local().Format(time.RFC3339))
	return subcommands.ExitSuccess
}

type resetCmd struct {
	env *env
	yes bool
}

func (*resetCmd) Name() string     { return "reset" }
func (*resetCmd) Synopsis() string { return "delete all transactions, settings and cached prices" }
func (*resetCmd) Usage() string {
	return `investlogctl reset -yes

  Permanently removes all stored data. -yes is required.
`
}

func (c *resetCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "yes", false, "Confirm the reset.")
}

func (c *resetCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.yes {
		fmt.Fprintln(os.Stderr, "refusing to reset without -yes")
		return subcommands.ExitUsageError
	}
	if err := c.env.open(ctx); err != nil {
		return fail(err)
	}

	err := errors.Join(c.env.db.ResetAll(ctx), c.env.cache.Reset(ctx))
	if err != nil {
		return fail(err)
	}
	fmt.Println("all data removed")
	return subcommands.ExitSuccess
}

// Package report renders a portfolio summary as Markdown, HTML or styled
// terminal output.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
	"github.com/sebuszqo/InvestLog/internal/investment/position"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/*.md
var templates embed.FS

var portfolioTemplate = template.Must(template.ParseFS(templates, "templates/portfolio.md"))

// Unknown is printed for values that cannot be computed.
const Unknown = "--"

type Options struct {
	Title       string
	Currency    string
	GeneratedAt time.Time
	// Rate, when set, is mentioned in the header line.
	Rate *models.ExchangeRate
}

type row struct {
	Symbol, Name, Shares, Cost, AverageCost, Price, Value, Profit, Return string
}

type slice struct {
	Name, Cost, Percent string
}

type view struct {
	Title       string
	GeneratedAt string
	RateLine    string
	Rows        []row
	TotalCost   string
	MarketValue string
	Profit      string
	Return      string
	Unpriced    string
	Skipped     int
	Allocation  []slice
}

func money(v float64, currency string) string {
	return position.FormatMoney(v, currency)
}

func optionalMoney(v *float64, currency string) string {
	if v == nil {
		return Unknown
	}
	return money(*v, currency)
}

func percent(v *float64) string {
	if v == nil {
		return Unknown
	}
	return fmt.Sprintf("%+.2f%%", *v)
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func build(summary models.PortfolioSummary, allocation []models.AllocationSlice, opts Options) view {
	currency := opts.Currency
	if currency == "" {
		currency = summary.Currency
	}
	if currency == "" {
		currency = "USD"
	}
	title := opts.Title
	if title == "" {
		title = "Portfolio"
	}
	generated := opts.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	v := view{
		Title:       title,
		GeneratedAt: generated.Format("2006-01-02 15:04 MST"),
		TotalCost:   money(summary.TotalCost, currency),
		MarketValue: money(summary.MarketValue, currency),
		Profit:      money(summary.AbsoluteProfit, currency),
		Return:      percent(summary.ProfitRate),
		Unpriced:    strings.Join(summary.Unpriced, ", "),
		Skipped:     summary.Skipped,
	}
	if r := opts.Rate; r != nil {
		v.RateLine = fmt.Sprintf("1 %s = %s %s", r.Base, strconv.FormatFloat(r.Rate, 'f', -1, 64), r.Quote)
	}

	for _, p := range summary.Positions {
		v.Rows = append(v.Rows, row{
			Symbol:      cell(p.Symbol),
			Name:        cell(p.Name),
			Shares:      strconv.FormatFloat(p.TotalShares, 'f', -1, 64),
			Cost:        money(p.TotalCost, currency),
			AverageCost: optionalMoney(p.AverageCost, currency),
			Price:       optionalMoney(p.CurrentPrice, currency),
			Value:       optionalMoney(p.MarketValue, currency),
			Profit:      optionalMoney(p.AbsoluteProfit, currency),
			Return:      percent(p.ProfitRate),
		})
	}
	for _, a := range allocation {
		v.Allocation = append(v.Allocation, slice{
			Name:    cell(a.Name),
			Cost:    money(a.Cost, currency),
			Percent: fmt.Sprintf("%.2f%%", a.Percent),
		})
	}
	return v
}

// Markdown renders the holdings table, totals and allocation.
func Markdown(summary models.PortfolioSummary, allocation []models.AllocationSlice, opts Options) (string, error) {
	var b strings.Builder
	if err := portfolioTemplate.ExecuteTemplate(&b, "portfolio.md", build(summary, allocation, opts)); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return b.String(), nil
}

// HTML renders the report as a standalone HTML page.
func HTML(summary models.PortfolioSummary, allocation []models.AllocationSlice, opts Options) (string, error) {
	md, err := Markdown(summary, allocation, opts)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	converter := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := converter.Convert([]byte(md), &body); err != nil {
		return "", fmt.Errorf("convert report: %w", err)
	}

	title := opts.Title
	if title == "" {
		title = "Portfolio"
	}
	var page strings.Builder
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	template.HTMLEscape(&page, []byte(title))
	page.WriteString("</title>\n<style>body{font-family:sans-serif;margin:2rem}table{border-collapse:collapse}" +
		"th,td{border:1px solid #ccc;padding:4px 8px}</style>\n</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.String(), nil
}

// Terminal renders the report with ANSI styling wrapped at width columns.
func Terminal(summary models.PortfolioSummary, allocation []models.AllocationSlice, opts Options, width int) (string, error) {
	md, err := Markdown(summary, allocation, opts)
	if err != nil {
		return "", err
	}
	if width <= 0 {
		width = 100
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("init terminal renderer: %w", err)
	}
	return renderer.Render(md)
}

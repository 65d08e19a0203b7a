package models

import "time"

// Position summarizes all transactions sharing a symbol. Nil pointer fields
// mean the value is unknown.
type Position struct {
	Symbol         string     `json:"symbol"`
	Name           string     `json:"name"`
	Transactions   int        `json:"transactions"`
	TotalShares    float64    `json:"totalShares"`
	TotalCost      float64    `json:"totalCost"`
	AverageCost    *float64   `json:"averageCost"`
	CurrentPrice   *float64   `json:"currentPrice"`
	PriceUpdatedAt *time.Time `json:"priceUpdatedAt"`
	MarketValue    *float64   `json:"marketValue"`
	AbsoluteProfit *float64   `json:"absoluteProfit"`
	ProfitRate     *float64   `json:"profitRate"`
}

type PortfolioSummary struct {
	Positions      []Position `json:"positions"`
	TotalCost      float64    `json:"totalCost"`
	PricedCost     float64    `json:"pricedCost"`
	MarketValue    float64    `json:"marketValue"`
	AbsoluteProfit float64    `json:"absoluteProfit"`
	ProfitRate     *float64   `json:"profitRate"`
	Unpriced       []string   `json:"unpriced"`
	Skipped        int        `json:"skipped"`
	Currency       string     `json:"currency,omitempty"`
}

// AllocationSlice is the cost share of one display name.
type AllocationSlice struct {
	Name    string  `json:"name"`
	Cost    float64 `json:"cost"`
	Percent float64 `json:"percent"`
}

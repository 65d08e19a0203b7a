package models

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-date format used for transaction dates.
const DateLayout = "2006-01-02"

// Transaction is one purchase event.
type Transaction struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	Date      string    `json:"date"`
	Total     float64   `json:"total"`
	Price     float64   `json:"price"`
	Shares    float64   `json:"shares"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransactionInput is the writable shape of a transaction. Symbol falls back
// to Name and Shares is derived from Total/Price when absent.
type TransactionInput struct {
	Name   string   `json:"name"`
	Symbol string   `json:"symbol,omitempty"`
	Date   string   `json:"date"`
	Total  float64  `json:"total"`
	Price  float64  `json:"price"`
	Shares *float64 `json:"shares,omitempty"`
}

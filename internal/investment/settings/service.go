package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
)

const (
	KeyAIConfig     = "ai_config"
	KeyExchangeRate = "exchange_rate"

	maxKeyLength = 128
)

// AIConfig selects the model used to read receipt screenshots.
type AIConfig struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
	Model    string `json:"model"`
}

type Service interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	GetAll(ctx context.Context) (map[string]json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	AIConfig(ctx context.Context) (*AIConfig, error)
	ExchangeRate(ctx context.Context) (*models.ExchangeRate, error)
	SetExchangeRate(ctx context.Context, rate models.ExchangeRate) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func validateKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", investErrors.NewValidationError("Key is required")
	}
	if len(key) > maxKeyLength {
		return "", investErrors.NewValidationError(fmt.Sprintf("Key must be at most %d characters", maxKeyLength))
	}
	return key, nil
}

func (s *service) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	key, err := validateKey(key)
	if err != nil {
		return nil, false, err
	}
	return s.repo.Get(ctx, key)
}

func (s *service) GetAll(ctx context.Context) (map[string]json.RawMessage, error) {
	return s.repo.GetAll(ctx)
}

// Set stores value under key. An empty value is stored as JSON null.
func (s *service) Set(ctx context.Context, key string, value json.RawMessage) error {
	key, err := validateKey(key)
	if err != nil {
		return err
	}
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	if !json.Valid(value) {
		return investErrors.NewValidationError("Value must be valid JSON")
	}
	return s.repo.Set(ctx, key, value)
}

func (s *service) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, found, err := s.repo.Get(ctx, key)
	if err != nil || !found || string(raw) == "null" {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// AIConfig returns the stored AI settings, or nil when none were saved.
func (s *service) AIConfig(ctx context.Context) (*AIConfig, error) {
	var cfg AIConfig
	found, err := s.getJSON(ctx, KeyAIConfig, &cfg)
	if err != nil || !found {
		return nil, err
	}
	return &cfg, nil
}

func (s *service) ExchangeRate(ctx context.Context) (*models.ExchangeRate, error) {
	var rate models.ExchangeRate
	found, err := s.getJSON(ctx, KeyExchangeRate, &rate)
	if err != nil || !found {
		return nil, err
	}
	return &rate, nil
}

func (s *service) SetExchangeRate(ctx context.Context, rate models.ExchangeRate) error {
	if rate.Rate <= 0 {
		return investErrors.NewValidationError("Exchange rate must be greater than 0")
	}
	raw, err := json.Marshal(rate)
	if err != nil {
		return err
	}
	return s.repo.Set(ctx, KeyExchangeRate, raw)
}

// Package receipt records transactions read from a broker receipt or a
// screenshot by a multimodal model.
package receipt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
	"github.com/sebuszqo/InvestLog/internal/investment/settings"
	transactions "github.com/sebuszqo/InvestLog/internal/investment/transaction"
)

// ExtractorFactory builds an extractor for the effective AI configuration.
type ExtractorFactory func(ctx context.Context, cfg settings.AIConfig) (Extractor, error)

// AIConfigSource is the stored AI configuration, nil when never saved.
type AIConfigSource interface {
	AIConfig(ctx context.Context) (*settings.AIConfig, error)
}

func GeminiFactory(ctx context.Context, cfg settings.AIConfig) (Extractor, error) {
	if p := strings.ToLower(cfg.Provider); p != "" && p != "gemini" {
		return nil, investErrors.NewValidationError(fmt.Sprintf("Unsupported AI provider %q", cfg.Provider))
	}
	return NewGeminiExtractor(ctx, cfg.APIKey, cfg.Model)
}

type Service struct {
	configs      AIConfigSource
	defaults     settings.AIConfig
	transactions transactions.Service
	newExtractor ExtractorFactory
	now          func() time.Time
	log          zerolog.Logger
}

// NewService wires the analyzer. defaults fill any field left empty in the
// stored configuration.
func NewService(configs AIConfigSource, defaults settings.AIConfig, txService transactions.Service, factory ExtractorFactory, log zerolog.Logger) *Service {
	if factory == nil {
		factory = GeminiFactory
	}
	return &Service{
		configs:      configs,
		defaults:     defaults,
		transactions: txService,
		newExtractor: factory,
		now:          time.Now,
		log:          log.With().Str("component", "receipt").Logger(),
	}
}

func (s *Service) effectiveConfig(ctx context.Context) (settings.AIConfig, error) {
	cfg := s.defaults
	stored, err := s.configs.AIConfig(ctx)
	if err != nil {
		return settings.AIConfig{}, err
	}
	if stored != nil {
		if stored.Provider != "" {
			cfg.Provider = stored.Provider
		}
		if stored.APIKey != "" {
			cfg.APIKey = stored.APIKey
		}
		if stored.Model != "" {
			cfg.Model = stored.Model
		}
	}
	return cfg, nil
}

// Analyze extracts records from image and stores them as one batch.
func (s *Service) Analyze(ctx context.Context, image []byte, mimeType string) ([]models.Transaction, error) {
	if len(image) == 0 {
		return nil, investErrors.NewValidationError("Image is required")
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, investErrors.NewValidationError("Only image uploads are supported")
	}

	cfg, err := s.effectiveConfig(ctx)
	if err != nil {
		return nil, err
	}
	extractor, err := s.newExtractor(ctx, cfg)
	if err != nil {
		return nil, err
	}

	raw, err := extractor.Extract(ctx, image, mimeType)
	if err != nil {
		s.log.Warn().Err(err).Msg("receipt extraction failed")
		return nil, err
	}
	inputs, err := ParseRecords(raw, s.now())
	if err != nil {
		s.log.Debug().Str("response", raw).Msg("no usable records in model response")
		return nil, err
	}

	created, err := s.transactions.CreateTransactions(ctx, inputs)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("records", len(created)).Msg("receipt recorded")
	return created, nil
}

package receipt

import (
	"context"
	"fmt"
	"strings"

	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
	"google.golang.org/genai"
)

const (
	DefaultModel = "gemini-1.5-flash"

	extractionPrompt = "Analyze image. Extract investment records: assetName, date (YYYY-MM-DD), " +
		"totalAmount (number, assume USD), unitPrice (number, assume USD), shares (number, optional). " +
		"Return ONLY valid JSON array."
)

// Extractor turns a receipt or screenshot into the model's raw JSON answer.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (string, error)
}

type GeminiExtractor struct {
	client *genai.Client
	model  string
}

func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, investErrors.NewValidationError("AI API key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}

	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if model == "" {
		model = DefaultModel
	}
	return &GeminiExtractor{client: client, model: model}, nil
}

func (g *GeminiExtractor) Extract(ctx context.Context, image []byte, mimeType string) (string, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: extractionPrompt},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
		},
	}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", investErrors.NewUpstreamError("gemini", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	return text, nil
}

// Package gemini implements the InsightGenerator port with Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// errEmptyResponse is returned when the model produced no text.
var errEmptyResponse = errors.New("gemini returned no text")

// Compile-time interface satisfaction check.
var _ driven.InsightGenerator = (*Generator)(nil)

// Generator sends single-turn text prompts to a Gemini model.
type Generator struct {
	client *genai.Client
	model  string
}

// NewGenerator creates a Generator for the Gemini API.
func NewGenerator(ctx context.Context, apiKey, model string) (*Generator, error) {
	return newGenerator(ctx, apiKey, model, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

// NewGeneratorWithHTTPClient creates a Generator that sends requests to
// baseURL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewGeneratorWithHTTPClient(ctx context.Context, apiKey, model, baseURL string, httpClient *http.Client) (*Generator, error) {
	return newGenerator(ctx, apiKey, model, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
}

func newGenerator(ctx context.Context, apiKey, model string, cfg *genai.ClientConfig) (*Generator, error) {
	if apiKey == "" {
		return nil, driven.ErrInsightUnavailable
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Generator{client: client, model: model}, nil
}

// Generate returns the model's text reply to prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errEmptyResponse
	}
	return text, nil
}

package driven

import (
	"context"
	"errors"
)

// ErrInsightUnavailable is returned when no text-generation backend is configured.
var ErrInsightUnavailable = errors.New("insight generation not configured: set GEMINI_API_KEY")

// InsightGenerator is a stateless text-generation backend.
type InsightGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
)

// ErrEmptyPrompt is returned when an insight is requested without a prompt.
var ErrEmptyPrompt = errors.New("prompt is required")

// mealContextReadings is how many recent readings go into a meal prompt.
const mealContextReadings = 5

// Meal describes a logged meal for MealInsight.
type Meal struct {
	Name  string
	Type  string // breakfast, lunch, dinner, snack
	Carbs int    // grams
}

// InsightService forwards prompts to a text-generation backend.
type InsightService struct {
	generator driven.InsightGenerator
	readings  driven.ReadingStore
}

// NewInsightService creates an InsightService. generator may be nil, in
// which case every call returns driven.ErrInsightUnavailable.
func NewInsightService(generator driven.InsightGenerator, readings driven.ReadingStore) *InsightService {
	return &InsightService{generator: generator, readings: readings}
}

// Ask passes prompt through unchanged.
func (s *InsightService) Ask(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	if s.generator == nil {
		return "", driven.ErrInsightUnavailable
	}
	return s.generator.Generate(ctx, prompt)
}

// MealInsight asks for a short comment on a meal given the latest readings.
func (s *InsightService) MealInsight(ctx context.Context, meal Meal) (string, error) {
	if strings.TrimSpace(meal.Name) == "" {
		return "", fmt.Errorf("meal name: %w", ErrEmptyPrompt)
	}
	if s.generator == nil {
		return "", driven.ErrInsightUnavailable
	}

	history, err := s.readings.ListAll(ctx)
	if err != nil {
		return "", fmt.Errorf("load recent readings: %w", err)
	}
	if len(history) > mealContextReadings {
		history = history[len(history)-mealContextReadings:]
	}

	recent := make([]string, 0, len(history))
	for _, r := range history {
		recent = append(recent, fmt.Sprintf("%d mg/dL at %s", r.Value, r.Timestamp.Format("15:04")))
	}
	recentText := strings.Join(recent, ", ")
	if recentText == "" {
		recentText = "No recent data"
	}

	prompt := fmt.Sprintf(`As an expert on Type 2 Diabetes management, provide a brief, encouraging, and helpful insight.
A user just logged a meal.

Meal Details:
- Name: %s
- Type: %s
- Estimated Carbs: %dg

User's Glucose Before Meal (last few readings): %s

Based on this, what is a likely short-term impact on their blood sugar, and what's a simple, actionable tip?
Keep the response concise, friendly, and under 50 words. Focus on empowerment, not criticism.`,
		meal.Name, meal.Type, meal.Carbs, recentText)

	return s.generator.Generate(ctx, prompt)
}

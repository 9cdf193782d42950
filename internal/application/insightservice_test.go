package application_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/diasync/internal/application"
	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
)

type recordingGenerator struct {
	prompts []string
	reply   string
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, nil
}

func TestInsightService_Ask(t *testing.T) {
	gen := &recordingGenerator{reply: "Looks steady."}
	svc := application.NewInsightService(gen, &fakeReadingStore{})

	text, err := svc.Ask(context.Background(), "How was my night?")

	require.NoError(t, err)
	assert.Equal(t, "Looks steady.", text)
	assert.Equal(t, []string{"How was my night?"}, gen.prompts)
}

func TestInsightService_AskValidation(t *testing.T) {
	svc := application.NewInsightService(&recordingGenerator{}, &fakeReadingStore{})
	_, err := svc.Ask(context.Background(), "  ")
	assert.ErrorIs(t, err, application.ErrEmptyPrompt)

	unconfigured := application.NewInsightService(nil, &fakeReadingStore{})
	_, err = unconfigured.Ask(context.Background(), "hello")
	assert.ErrorIs(t, err, driven.ErrInsightUnavailable)
}

func TestInsightService_MealPromptUsesLastFiveReadings(t *testing.T) {
	start := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	store := &fakeReadingStore{readings: readingsAt(every(start, 5*time.Minute, 8)...)}
	gen := &recordingGenerator{reply: "A short walk helps."}
	svc := application.NewInsightService(gen, store)

	text, err := svc.MealInsight(context.Background(), application.Meal{Name: "Oatmeal", Type: "breakfast", Carbs: 45})

	require.NoError(t, err)
	assert.Equal(t, "A short walk helps.", text)
	require.Len(t, gen.prompts, 1)

	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "- Name: Oatmeal")
	assert.Contains(t, prompt, "- Type: breakfast")
	assert.Contains(t, prompt, "- Estimated Carbs: 45g")
	assert.Contains(t, prompt, "103 mg/dL at 07:15, 104 mg/dL at 07:20, 105 mg/dL at 07:25, 106 mg/dL at 07:30, 107 mg/dL at 07:35")
	assert.False(t, strings.Contains(prompt, "102 mg/dL"), "only the last five readings are included")
}

func TestInsightService_MealPromptWithoutHistory(t *testing.T) {
	gen := &recordingGenerator{}
	svc := application.NewInsightService(gen, &fakeReadingStore{})

	_, err := svc.MealInsight(context.Background(), application.Meal{Name: "Apple", Type: "snack", Carbs: 20})

	require.NoError(t, err)
	assert.Contains(t, gen.prompts[0], "No recent data")
}

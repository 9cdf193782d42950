package application

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/ericfisherdev/diasync/internal/domain/model"
	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
)

// Bounds accepted by the share readings endpoint.
const (
	MaxLookbackMinutes = 1440
	MaxReadingCount    = 288
)

// ReadingFetcher retrieves the trailing window of readings for a session.
type ReadingFetcher struct {
	client driven.ShareClient
}

// NewReadingFetcher creates a ReadingFetcher.
func NewReadingFetcher(client driven.ShareClient) *ReadingFetcher {
	return &ReadingFetcher{client: client}
}

// Fetch issues one readings request. lookbackMinutes is clamped to
// [1, MaxLookbackMinutes] and maxCount to [1, MaxReadingCount]. The result is
// sorted ascending with one reading per timestamp. An invalid session fails
// with model.ErrSessionExpired without a network call.
func (f *ReadingFetcher) Fetch(ctx context.Context, session model.Session, lookbackMinutes, maxCount int) ([]model.Reading, error) {
	if !session.IsValid() {
		return nil, fmt.Errorf("fetch readings: %w", model.ErrSessionExpired)
	}

	minutes := clamp(lookbackMinutes, 1, MaxLookbackMinutes)
	count := clamp(maxCount, 1, MaxReadingCount)

	readings, err := f.client.FetchReadings(ctx, session.Via.Host, session.Token, minutes, count)
	if err != nil {
		return nil, err
	}

	readings = sortUnique(readings)
	if len(readings) > count {
		readings = readings[len(readings)-count:]
	}
	return readings, nil
}

// sortUnique returns readings ordered by timestamp with one reading per id.
// Later entries win when ids repeat.
func sortUnique(readings []model.Reading) []model.Reading {
	byID := make(map[string]model.Reading, len(readings))
	for _, r := range readings {
		byID[r.ID] = r
	}

	out := make([]model.Reading, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b model.Reading) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

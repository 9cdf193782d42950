package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ericfisherdev/diasync/internal/domain/model"
	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
)

// ErrInvalidRange is returned for a range other than 24h, 7d or 30d.
var ErrInvalidRange = errors.New("range must be one of 24h, 7d, 30d")

// ranges maps the accepted range names onto durations.
var ranges = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// GlucoseStats summarizes the readings in a range against the target band.
type GlucoseStats struct {
	Range       string
	Count       int
	AverageMgdl float64 // One decimal.
	AverageMmol float64 // One decimal.
	InRangePct  float64
	HighPct     float64
	LowPct      float64
	Latest      *model.Reading
}

// GlucoseService answers read queries over the local reading history.
type GlucoseService struct {
	readings   driven.ReadingStore
	targetLow  int
	targetHigh int
	now        func() time.Time
}

// NewGlucoseService creates a GlucoseService with the target band [low, high] mg/dL.
func NewGlucoseService(readings driven.ReadingStore, targetLow, targetHigh int) *GlucoseService {
	return &GlucoseService{
		readings:   readings,
		targetLow:  targetLow,
		targetHigh: targetHigh,
		now:        time.Now,
	}
}

// Readings returns the readings in the named range, oldest first. An empty
// range name means 24h.
func (s *GlucoseService) Readings(ctx context.Context, rangeName string) ([]model.Reading, error) {
	since, err := s.since(rangeName)
	if err != nil {
		return nil, err
	}
	readings, err := s.readings.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	return readings, nil
}

// Stats computes the average and the share of readings in, above and below
// the target band for the named range.
func (s *GlucoseService) Stats(ctx context.Context, rangeName string) (GlucoseStats, error) {
	if rangeName == "" {
		rangeName = "24h"
	}

	readings, err := s.Readings(ctx, rangeName)
	if err != nil {
		return GlucoseStats{}, err
	}

	stats := GlucoseStats{Range: rangeName, Count: len(readings)}
	if len(readings) == 0 {
		return stats, nil
	}

	var sum, inRange, high, low int
	for _, r := range readings {
		sum += r.Value
		switch {
		case r.Value < s.targetLow:
			low++
		case r.Value > s.targetHigh:
			high++
		default:
			inRange++
		}
	}

	n := float64(len(readings))
	stats.AverageMgdl = round1(float64(sum) / n)
	stats.AverageMmol = model.MgdlToMmol(int(math.Round(float64(sum) / n)))
	stats.InRangePct = round1(float64(inRange) / n * 100)
	stats.HighPct = round1(float64(high) / n * 100)
	stats.LowPct = round1(float64(low) / n * 100)
	latest := readings[len(readings)-1]
	stats.Latest = &latest

	return stats, nil
}

func (s *GlucoseService) since(rangeName string) (time.Time, error) {
	if rangeName == "" {
		rangeName = "24h"
	}
	d, ok := ranges[rangeName]
	if !ok {
		return time.Time{}, ErrInvalidRange
	}
	return s.now().Add(-d), nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

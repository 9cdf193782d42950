// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/diasync/internal/domain/model"
	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
)

// syncer is the part of IngestionClient the poll loop drives.
type syncer interface {
	Sync(ctx context.Context) (SyncResult, error)
}

// PollService runs Sync in the background on an interval that adapts to how
// fresh the newest stored reading is.
type PollService struct {
	syncer    syncer
	readings  driven.ReadingStore
	base      time.Duration
	triggerCh chan struct{}
	now       func() time.Time

	mu       sync.RWMutex
	schedule ScheduleInfo
}

// NewPollService creates a PollService. base is the interval used while
// readings are live; it grows as the history goes stale.
func NewPollService(syncer syncer, readings driven.ReadingStore, base time.Duration) *PollService {
	return &PollService{
		syncer:    syncer,
		readings:  readings,
		base:      base,
		triggerCh: make(chan struct{}, 1),
		now:       time.Now,
	}
}

// Start runs an immediate sync, then syncs on the adaptive interval. It also
// listens for Trigger calls. Start blocks until the context is canceled.
func (s *PollService) Start(ctx context.Context) {
	timer := time.NewTimer(s.syncAndPlan(ctx))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poll service stopped")
			return
		case <-timer.C:
			timer.Reset(s.syncAndPlan(ctx))
		case <-s.triggerCh:
			timer.Reset(s.syncAndPlan(ctx))
		}
	}
}

// Trigger requests a sync as soon as the loop is idle. Requests made while
// one is already pending are coalesced.
func (s *PollService) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// Schedule returns the current adaptive schedule.
func (s *PollService) Schedule() ScheduleInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedule
}

// syncAndPlan runs one sync and returns the delay until the next one.
func (s *PollService) syncAndPlan(ctx context.Context) time.Duration {
	result, err := s.syncer.Sync(ctx)
	switch {
	case errors.Is(err, model.ErrSyncInProgress):
		slog.Debug("background sync skipped: sync in progress")
	case err != nil && ctx.Err() == nil:
		slog.Error("background sync failed", "error", err)
	case err == nil && !result.Skipped:
		slog.Debug("background sync complete", "fetched", result.Fetched, "total", result.Total)
	}

	var newest time.Time
	if ctx.Err() == nil {
		latest, err := s.readings.Latest(ctx)
		if err != nil {
			slog.Error("loading newest reading failed", "error", err)
		} else if latest != nil {
			newest = latest.Timestamp
		}
	}

	now := s.now()
	tier := classifyFreshness(newest, now)
	interval := tierInterval(tier, s.base)

	s.mu.Lock()
	prev := s.schedule.Tier
	s.schedule = ScheduleInfo{Tier: tier, NextSyncAt: now.Add(interval), LastSynced: now}
	s.mu.Unlock()

	if prev != tier {
		slog.Info("sync tier changed", "tier", tier.String(), "interval", interval)
	}

	return interval
}

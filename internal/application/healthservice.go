package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
)

// Health states reported by HealthService.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// staleSyncAfter is how old the last successful sync may be before a
// connected service reports degraded.
const staleSyncAfter = time.Hour

// pinger reports whether the backing database is reachable.
type pinger interface {
	Ping(ctx context.Context) error
}

// HealthReport is the structured output of the health endpoint.
type HealthReport struct {
	Status     string
	Database   string
	Connected  bool
	LastSyncAt time.Time
}

// HealthService summarizes database reachability and sync freshness. It
// depends only on port interfaces.
type HealthService struct {
	db     pinger
	status driven.SyncStatusStore
	now    func() time.Time
}

// NewHealthService creates a new HealthService with the required dependencies.
func NewHealthService(db pinger, status driven.SyncStatusStore) *HealthService {
	return &HealthService{db: db, status: status, now: time.Now}
}

// Check assembles the health report. It never returns an error; failures
// show up as a degraded status.
func (s *HealthService) Check(ctx context.Context) HealthReport {
	report := HealthReport{Status: HealthOK, Database: HealthOK}

	if err := s.db.Ping(ctx); err != nil {
		slog.Warn("health check: database unreachable", "error", err)
		report.Status = HealthDegraded
		report.Database = "unreachable"
		return report
	}

	status, err := s.status.Get(ctx)
	if err != nil {
		slog.Warn("health check: loading sync status failed", "error", err)
		report.Status = HealthDegraded
		return report
	}

	report.Connected = status.Connected
	report.LastSyncAt = status.LastSyncAt
	if status.Connected && !status.LastSyncAt.IsZero() && s.now().Sub(status.LastSyncAt) > staleSyncAfter {
		report.Status = HealthDegraded
	}

	return report
}

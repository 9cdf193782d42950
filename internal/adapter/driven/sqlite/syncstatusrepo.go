package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/diasync/internal/domain/model"
	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SyncStatusStore = (*SyncStatusRepo)(nil)

// SyncStatusRepo stores the single sync_status row.
type SyncStatusRepo struct {
	db *DB
}

// NewSyncStatusRepo creates a new SyncStatusRepo backed by the given database.
func NewSyncStatusRepo(db *DB) *SyncStatusRepo {
	return &SyncStatusRepo{db: db}
}

// Get returns the stored status, or the zero status if none was saved.
func (r *SyncStatusRepo) Get(ctx context.Context) (model.SyncStatus, error) {
	const query = `
		SELECT connected, region, last_sync_at, account_label, account_id, last_error
		FROM sync_status
		WHERE id = 1
	`

	var (
		status     model.SyncStatus
		connected  int
		region     string
		lastSyncAt sql.NullString
	)
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(
		&connected, &region, &lastSyncAt, &status.AccountLabel, &status.AccountID, &status.LastError,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SyncStatus{}, nil
	}
	if err != nil {
		return model.SyncStatus{}, fmt.Errorf("get sync status: %w", err)
	}

	status.Connected = connected == 1
	status.Region = model.Region(region)
	if lastSyncAt.Valid && lastSyncAt.String != "" {
		status.LastSyncAt, err = parseTime(lastSyncAt.String)
		if err != nil {
			return model.SyncStatus{}, fmt.Errorf("parse last_sync_at: %w", err)
		}
	}

	return status, nil
}

// Save replaces the stored status.
func (r *SyncStatusRepo) Save(ctx context.Context, status model.SyncStatus) error {
	const query = `
		INSERT INTO sync_status (id, connected, region, last_sync_at, account_label, account_id, last_error, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			connected = excluded.connected,
			region = excluded.region,
			last_sync_at = excluded.last_sync_at,
			account_label = excluded.account_label,
			account_id = excluded.account_id,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at
	`

	connected := 0
	if status.Connected {
		connected = 1
	}

	var lastSyncAt any
	if !status.LastSyncAt.IsZero() {
		lastSyncAt = status.LastSyncAt.UTC().Format(time.RFC3339Nano)
	}

	if _, err := r.db.Writer.ExecContext(ctx, query,
		connected, string(status.Region), lastSyncAt, status.AccountLabel, status.AccountID, status.LastError,
	); err != nil {
		return fmt.Errorf("save sync status: %w", err)
	}
	return nil
}

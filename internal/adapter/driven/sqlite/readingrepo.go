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
var _ driven.ReadingStore = (*ReadingRepo)(nil)

const readingColumns = `id, value_mgdl, value_mmol, ts_ms, trend, trend_arrow`

// ReadingRepo is the SQLite implementation of the ReadingStore port.
// Timestamps are stored as Unix milliseconds so ordering is numeric.
type ReadingRepo struct {
	db *DB
}

// NewReadingRepo creates a new ReadingRepo backed by the given database.
func NewReadingRepo(db *DB) *ReadingRepo {
	return &ReadingRepo{db: db}
}

// ReplaceAll deletes the stored history and inserts readings in one
// transaction. On any failure the previous history is left intact.
func (r *ReadingRepo) ReplaceAll(ctx context.Context, readings []model.Reading) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	if _, err := tx.ExecContext(ctx, `DELETE FROM glucose_readings`); err != nil {
		return fmt.Errorf("clear glucose readings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO glucose_readings (`+readingColumns+`) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare reading insert: %w", err)
	}
	defer stmt.Close()

	for _, rd := range readings {
		if _, err := stmt.ExecContext(ctx,
			rd.ID, rd.Value, rd.MmolL, rd.Timestamp.UnixMilli(), rd.Trend, rd.TrendArrow,
		); err != nil {
			return fmt.Errorf("insert reading %s: %w", rd.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit glucose readings: %w", err)
	}

	return nil
}

// ListAll returns the full history ordered by timestamp ascending.
func (r *ReadingRepo) ListAll(ctx context.Context) ([]model.Reading, error) {
	const query = `SELECT ` + readingColumns + ` FROM glucose_readings ORDER BY ts_ms ASC`
	return r.query(ctx, query)
}

// ListSince returns readings at or after since, ordered by timestamp ascending.
func (r *ReadingRepo) ListSince(ctx context.Context, since time.Time) ([]model.Reading, error) {
	const query = `SELECT ` + readingColumns + ` FROM glucose_readings WHERE ts_ms >= ? ORDER BY ts_ms ASC`
	return r.query(ctx, query, since.UnixMilli())
}

// Latest returns the newest reading, or nil if the history is empty.
func (r *ReadingRepo) Latest(ctx context.Context) (*model.Reading, error) {
	const query = `SELECT ` + readingColumns + ` FROM glucose_readings ORDER BY ts_ms DESC LIMIT 1`

	rd, err := scanReading(r.db.Reader.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest reading: %w", err)
	}
	return &rd, nil
}

func (r *ReadingRepo) query(ctx context.Context, query string, args ...any) ([]model.Reading, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query glucose readings: %w", err)
	}
	defer rows.Close()

	var readings []model.Reading
	for rows.Next() {
		rd, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan glucose reading: %w", err)
		}
		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate glucose readings: %w", err)
	}

	return readings, nil
}

func scanReading(s scanner) (model.Reading, error) {
	var rd model.Reading
	var tsMillis int64
	if err := s.Scan(&rd.ID, &rd.Value, &rd.MmolL, &tsMillis, &rd.Trend, &rd.TrendArrow); err != nil {
		return model.Reading{}, err
	}
	rd.Timestamp = time.UnixMilli(tsMillis).UTC()
	return rd, nil
}

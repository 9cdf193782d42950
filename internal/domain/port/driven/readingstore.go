package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/diasync/internal/domain/model"
)

// ReadingStore defines the driven port for the local glucose reading history.
type ReadingStore interface {
	// ListAll returns the full history ordered by timestamp ascending.
	ListAll(ctx context.Context) ([]model.Reading, error)
	// ListSince returns readings at or after since, ordered by timestamp ascending.
	ListSince(ctx context.Context, since time.Time) ([]model.Reading, error)
	// Latest returns the newest reading, or nil if the history is empty.
	Latest(ctx context.Context) (*model.Reading, error)
	// ReplaceAll atomically replaces the whole history. Either every reading
	// is written or the previous history is left untouched.
	ReplaceAll(ctx context.Context, readings []model.Reading) error
}

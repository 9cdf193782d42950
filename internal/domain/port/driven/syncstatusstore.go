package driven

import (
	"context"

	"github.com/ericfisherdev/diasync/internal/domain/model"
)

// SyncStatusStore persists the single SyncStatus row shown to the UI.
type SyncStatusStore interface {
	// Get returns the stored status, or the zero status if none was saved.
	Get(ctx context.Context) (model.SyncStatus, error)
	// Save replaces the stored status.
	Save(ctx context.Context, status model.SyncStatus) error
}

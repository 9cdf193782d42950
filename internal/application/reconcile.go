package application

import (
	"slices"

	"github.com/ericfisherdev/diasync/internal/domain/model"
)

// Merge reconciles a freshly fetched window into the existing history.
//
// The window spans the earliest to the latest fresh timestamp. Existing
// readings inside the window are replaced by the fresh ones; readings outside
// it are kept. The result is sorted ascending with unique ids, fresh winning.
// An empty fresh window leaves the history as it was. Merge is idempotent.
func Merge(existing, fresh []model.Reading) []model.Reading {
	if len(fresh) == 0 {
		return slices.Clone(existing)
	}

	start, end := fresh[0].Timestamp, fresh[0].Timestamp
	for _, r := range fresh[1:] {
		if r.Timestamp.Before(start) {
			start = r.Timestamp
		}
		if r.Timestamp.After(end) {
			end = r.Timestamp
		}
	}

	merged := make([]model.Reading, 0, len(existing)+len(fresh))
	for _, r := range existing {
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			merged = append(merged, r)
		}
	}
	merged = append(merged, fresh...)

	return sortUnique(merged)
}

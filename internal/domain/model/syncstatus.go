package model

import "time"

// SyncStatus is the observable connection and sync state shown to the UI.
type SyncStatus struct {
	Connected    bool
	Region       Region
	LastSyncAt   time.Time // Zero when no sync has completed.
	AccountLabel string    // Display-safe username.
	AccountID    string
	LastError    string // Public message of the last failed sync; empty after success.
}

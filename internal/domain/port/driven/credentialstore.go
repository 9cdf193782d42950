package driven

import (
	"context"
	"errors"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// DIASYNC_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set DIASYNC_SECRET_KEY")

// CredentialStore defines the driven port for credential persistence.
// The adapter layer is responsible for encryption/decryption; this interface
// operates on plaintext values at the domain boundary.
type CredentialStore interface {
	// Set stores or replaces the value for (service, key).
	Set(ctx context.Context, service, key, value string) error

	// Get retrieves the plaintext value for (service, key).
	// Returns ("", nil) if nothing is stored.
	Get(ctx context.Context, service, key string) (string, error)

	// GetAll returns every key/value pair stored for the service.
	GetAll(ctx context.Context, service string) (map[string]string, error)

	// Delete removes a single key. Deleting a missing key is not an error.
	Delete(ctx context.Context, service, key string) error

	// DeleteService removes every key stored for the service.
	DeleteService(ctx context.Context, service string) error

	// ReplaceService atomically replaces every key stored for the service
	// with values. On error the previously stored values are left intact.
	ReplaceService(ctx context.Context, service string, values map[string]string) error
}

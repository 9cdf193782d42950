// Package memory provides process-local implementations of driven ports for
// deployments without an encryption key, and for tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialStore)(nil)

// CredentialStore keeps credentials in memory. Nothing survives a restart.
type CredentialStore struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

// NewCredentialStore creates an empty CredentialStore.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{values: make(map[string]map[string]string)}
}

func (s *CredentialStore) Set(_ context.Context, service, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.values[service]
	if !ok {
		svc = make(map[string]string)
		s.values[service] = svc
	}
	svc[key] = value
	return nil
}

func (s *CredentialStore) Get(_ context.Context, service, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.values[service][key], nil
}

// GetAll returns a copy of the values stored for the service.
func (s *CredentialStore) GetAll(_ context.Context, service string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.values[service]))
	maps.Copy(out, s.values[service])
	return out, nil
}

func (s *CredentialStore) Delete(_ context.Context, service, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values[service], key)
	return nil
}

func (s *CredentialStore) DeleteService(_ context.Context, service string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, service)
	return nil
}

// ReplaceService swaps the whole value set for the service.
func (s *CredentialStore) ReplaceService(_ context.Context, service string, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(values) == 0 {
		delete(s.values, service)
		return nil
	}
	s.values[service] = maps.Clone(values)
	return nil
}

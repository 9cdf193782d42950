package application_test

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ericfisherdev/diasync/internal/adapter/driven/memory"
	"github.com/ericfisherdev/diasync/internal/domain/model"
)

const (
	tokenA = "a5f0ffd0-1a7c-4c4e-9b8c-6d2a1a6f5e01"
	tokenB = "b7e1c2d3-2b8d-4d5f-8c9d-7e3b2a1f6e02"
)

var testAccount = model.ShareAccount{Username: "alice@example.com", Password: "s3cret-pw", Region: model.RegionUS}

// --- Fake share client ---

type fakeShareClient struct {
	mu      sync.Mutex
	login   func(c model.EndpointCandidate, a model.ShareAccount) (string, error)
	lookup  func(c model.EndpointCandidate) (string, error)
	fetch   func(call int, host, token string) ([]model.Reading, error)
	logins  []model.EndpointCandidate
	fetches int
	minutes int
	count   int
	tokens  []string
	delay   time.Duration
}

func (f *fakeShareClient) Login(ctx context.Context, c model.EndpointCandidate, a model.ShareAccount) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	f.logins = append(f.logins, c)
	login := f.login
	f.mu.Unlock()

	if login == nil {
		return "", fmt.Errorf("login via %s: %w", c, model.ErrZeroSession)
	}
	return login(c, a)
}

func (f *fakeShareClient) LookupAccountID(_ context.Context, c model.EndpointCandidate, _ model.ShareAccount) (string, error) {
	if f.lookup == nil {
		return "0f3a2c1e-8d7b-4e6a-9c5d-4b3a2f1e0d9c", nil
	}
	return f.lookup(c)
}

func (f *fakeShareClient) FetchReadings(_ context.Context, host, token string, minutes, maxCount int) ([]model.Reading, error) {
	f.mu.Lock()
	f.fetches++
	call := f.fetches
	f.minutes, f.count = minutes, maxCount
	f.tokens = append(f.tokens, token)
	fetch := f.fetch
	f.mu.Unlock()

	if fetch == nil {
		return nil, nil
	}
	return fetch(call, host, token)
}

func (f *fakeShareClient) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logins)
}

func (f *fakeShareClient) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// acceptOnly returns a login func that accepts exactly one candidate and
// answers every other one with the zero sentinel.
func acceptOnly(valid model.EndpointCandidate, token string) func(model.EndpointCandidate, model.ShareAccount) (string, error) {
	return func(c model.EndpointCandidate, _ model.ShareAccount) (string, error) {
		if c == valid {
			return token, nil
		}
		return "", fmt.Errorf("login via %s: %w", c, model.ErrZeroSession)
	}
}

// --- Fake stores ---

type fakeReadingStore struct {
	mu         sync.Mutex
	readings   []model.Reading
	replaceErr error
	replaces   int
}

func (s *fakeReadingStore) ListAll(_ context.Context) ([]model.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.readings), nil
}

func (s *fakeReadingStore) ListSince(_ context.Context, since time.Time) ([]model.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reading
	for _, r := range s.readings {
		if !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeReadingStore) Latest(_ context.Context) (*model.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.readings) == 0 {
		return nil, nil
	}
	latest := s.readings[len(s.readings)-1]
	return &latest, nil
}

func (s *fakeReadingStore) ReplaceAll(_ context.Context, readings []model.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.replaces++
	s.readings = slices.Clone(readings)
	return nil
}

func (s *fakeReadingStore) snapshot() []model.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.readings)
}

type fakeStatusStore struct {
	mu      sync.Mutex
	status  model.SyncStatus
	saves   int
	getErr  error
	saveErr error
}

func (s *fakeStatusStore) Get(_ context.Context) (model.SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return model.SyncStatus{}, s.getErr
	}
	return s.status, nil
}

func (s *fakeStatusStore) Save(_ context.Context, status model.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.status = status
	return nil
}

func (s *fakeStatusStore) failSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

func (s *fakeStatusStore) snapshot() model.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// failingCredentialStore wraps a real store and fails whole-service writes
// once replaceErr is set.
type failingCredentialStore struct {
	*memory.CredentialStore
	replaceErr error
}

func (s *failingCredentialStore) ReplaceService(ctx context.Context, service string, values map[string]string) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	return s.CredentialStore.ReplaceService(ctx, service, values)
}

// --- Reading helpers ---

// readingsAt builds one reading per timestamp with ascending values.
func readingsAt(timestamps ...time.Time) []model.Reading {
	out := make([]model.Reading, 0, len(timestamps))
	for i, ts := range timestamps {
		out = append(out, model.NewReading(100+i, ts, "steady", "→"))
	}
	return out
}

// every returns n timestamps spaced step apart starting at start.
func every(start time.Time, step time.Duration, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for i := range n {
		out = append(out, start.Add(time.Duration(i)*step))
	}
	return out
}

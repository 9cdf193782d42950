package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/diasync/internal/domain/model"
)

// errSessionReset is returned to callers whose authentication was still in
// flight when the manager was reset.
var errSessionReset = errors.New("session reset during authentication")

// SessionState is the authentication state of a SessionManager.
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticating
	StateAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// discoverer is the part of EndpointDiscovery the session manager needs.
type discoverer interface {
	DiscoverFrom(ctx context.Context, account model.ShareAccount, preferred *model.EndpointCandidate) (model.Session, error)
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithReauthEveryCall makes every EnsureAuthenticated call run discovery
// instead of reusing the cached session.
func WithReauthEveryCall(enabled bool) SessionOption {
	return func(m *SessionManager) {
		m.reauthEveryCall = enabled
	}
}

// SessionManager caches the current share session until it is invalidated.
// It holds a mutex-protected session and last-known-good candidate, so
// discovery after an invalidation starts from the endpoint that worked.
type SessionManager struct {
	discovery       discoverer
	reauthEveryCall bool
	group           singleflight.Group

	mu         sync.RWMutex
	session    *model.Session
	preferred  *model.EndpointCandidate
	state      SessionState
	generation uint64
}

// NewSessionManager creates a SessionManager that authenticates through discovery.
func NewSessionManager(discovery discoverer, opts ...SessionOption) *SessionManager {
	m := &SessionManager{discovery: discovery}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureAuthenticated returns the cached session when it is valid and was
// produced by the same credentials; otherwise it runs discovery. Concurrent
// callers with the same credentials share one discovery.
func (m *SessionManager) EnsureAuthenticated(ctx context.Context, account model.ShareAccount) (model.Session, error) {
	fingerprint := account.Fingerprint()

	if !m.reauthEveryCall {
		m.mu.RLock()
		cached := m.session
		m.mu.RUnlock()
		if cached != nil && cached.IsValid() && cached.Fingerprint == fingerprint {
			return *cached, nil
		}
	}

	v, err, shared := m.group.Do(fingerprint, func() (any, error) {
		return m.authenticate(ctx, account)
	})
	if err != nil {
		return model.Session{}, err
	}
	if shared {
		slog.Debug("share authentication shared with concurrent caller")
	}
	return v.(model.Session), nil
}

func (m *SessionManager) authenticate(ctx context.Context, account model.ShareAccount) (model.Session, error) {
	m.mu.Lock()
	if !m.reauthEveryCall && m.session != nil && m.session.IsValid() && m.session.Fingerprint == account.Fingerprint() {
		// A flight that finished just before this one started already populated the cache.
		cached := *m.session
		m.mu.Unlock()
		return cached, nil
	}
	generation := m.generation
	preferred := m.preferred
	m.state = StateAuthenticating
	m.mu.Unlock()

	session, err := m.discovery.DiscoverFrom(ctx, account, preferred)

	m.mu.Lock()
	defer m.mu.Unlock()

	if generation != m.generation {
		return model.Session{}, errSessionReset
	}

	if err != nil {
		m.session = nil
		m.state = StateUnauthenticated
		return model.Session{}, fmt.Errorf("authenticate: %w", err)
	}
	if !session.IsValid() {
		m.session = nil
		m.state = StateUnauthenticated
		return model.Session{}, fmt.Errorf("authenticate: %w", model.ErrZeroSession)
	}

	m.session = &session
	via := session.Via
	m.preferred = &via
	m.state = StateAuthenticated

	return session, nil
}

// Invalidate drops the cached session but remembers the candidate it used.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = nil
	m.state = StateUnauthenticated
}

// Reset drops the cached session and the remembered candidate. An
// authentication in flight when Reset is called does not populate the cache.
func (m *SessionManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = nil
	m.preferred = nil
	m.state = StateUnauthenticated
	m.generation++
}

// Prefer sets the candidate the next discovery tries first.
func (m *SessionManager) Prefer(candidate model.EndpointCandidate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.preferred = &candidate
}

// Preferred returns the last-known-good candidate, if any.
func (m *SessionManager) Preferred() (model.EndpointCandidate, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.preferred == nil {
		return model.EndpointCandidate{}, false
	}
	return *m.preferred, true
}

// State returns the current authentication state.
func (m *SessionManager) State() SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state
}

// Current returns the cached session, if any.
func (m *SessionManager) Current() (model.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return model.Session{}, false
	}
	return *m.session, true
}

// setAccountID records the vendor account id on the cached session.
func (m *SessionManager) setAccountID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.session.AccountID = id
	}
}

// Restore seeds the cache with a previously persisted session when nothing is
// cached. It reports whether the session was adopted.
func (m *SessionManager) Restore(session model.Session) bool {
	if !session.IsValid() {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return false
	}
	m.session = &session
	via := session.Via
	m.preferred = &via
	m.state = StateAuthenticated
	return true
}

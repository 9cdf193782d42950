package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCredential is returned before any network call when the username or
	// password is missing.
	ErrCredential = errors.New("username and password are required")

	// ErrDiscoveryExhausted matches a *DiscoveryError via errors.Is.
	ErrDiscoveryExhausted = errors.New("no endpoint accepted the credentials")

	// ErrZeroSession means the share service answered a login with the zero
	// sentinel: the credentials were rejected for that application id.
	ErrZeroSession = errors.New("share service returned the zero session")

	// ErrSessionExpired means a fetch was refused because the session token is
	// no longer valid.
	ErrSessionExpired = errors.New("share session expired")

	// ErrTransientNetwork covers timeouts, connection failures and 5xx replies.
	ErrTransientNetwork = errors.New("share service unreachable")

	// ErrMalformedResponse means the share service returned a payload that
	// could not be interpreted.
	ErrMalformedResponse = errors.New("malformed share service response")

	// ErrSyncInProgress is returned when a sync is requested while another
	// connect, sync or disconnect is running.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// StatusError is a non-2xx reply from the share service. Code and Message
// come from the vendor's JSON error body when present.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d (%s)", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// AttemptOutcome classifies a failed discovery attempt.
type AttemptOutcome string

const (
	OutcomeSuccess      AttemptOutcome = "success"
	OutcomeNetworkError AttemptOutcome = "network_error"
	OutcomeHTTPError    AttemptOutcome = "http_error"
	OutcomeZeroSentinel AttemptOutcome = "zero_sentinel"
	OutcomeMalformed    AttemptOutcome = "malformed"
)

// DiscoveryAttempt records the result of trying one endpoint candidate.
type DiscoveryAttempt struct {
	Candidate  EndpointCandidate
	Outcome    AttemptOutcome
	StatusCode int    // Set for OutcomeHTTPError.
	Code       string // Vendor error code, if any.
}

// DiscoveryError is returned when every endpoint candidate failed.
type DiscoveryError struct {
	Attempts []DiscoveryAttempt
}

func (e *DiscoveryError) Error() string {
	counts := make(map[AttemptOutcome]int)
	for _, a := range e.Attempts {
		counts[a.Outcome]++
	}

	parts := make([]string, 0, len(counts))
	for _, o := range []AttemptOutcome{OutcomeZeroSentinel, OutcomeHTTPError, OutcomeNetworkError, OutcomeMalformed} {
		if n := counts[o]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", o, n))
		}
	}

	return fmt.Sprintf("%s after %d attempts (%s)", ErrDiscoveryExhausted, len(e.Attempts), strings.Join(parts, ", "))
}

// Is makes errors.Is(err, ErrDiscoveryExhausted) hold for any *DiscoveryError.
func (e *DiscoveryError) Is(target error) bool {
	return target == ErrDiscoveryExhausted
}

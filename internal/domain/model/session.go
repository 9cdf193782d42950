package model

import "time"

// ZeroSentinel is the all-zero token the share service returns when a login
// is rejected for a particular application id.
const ZeroSentinel = "00000000-0000-0000-0000-000000000000"

// Session is an authenticated share session.
type Session struct {
	Token         string
	Via           EndpointCandidate // Candidate that produced the token.
	Fingerprint   string            // ShareAccount.Fingerprint of the credentials used.
	AccountID     string            // Vendor account id; empty when the lookup failed.
	EstablishedAt time.Time
}

// IsValid reports whether the session carries a usable token.
func (s Session) IsValid() bool {
	return s.Token != "" && s.Token != ZeroSentinel
}

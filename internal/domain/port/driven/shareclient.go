package driven

import (
	"context"

	"github.com/ericfisherdev/diasync/internal/domain/model"
)

// ShareClient defines the driven port for the remote glucose share service.
// Implementations classify failures with the sentinels in the model package:
// ErrZeroSession, ErrSessionExpired, ErrTransientNetwork, ErrMalformedResponse,
// and *model.StatusError for other non-2xx replies.
type ShareClient interface {
	// Login performs one authentication request against the candidate and
	// returns the session token. A zero-sentinel reply yields ErrZeroSession.
	Login(ctx context.Context, candidate model.EndpointCandidate, account model.ShareAccount) (string, error)

	// LookupAccountID resolves the vendor account id for the credentials.
	LookupAccountID(ctx context.Context, candidate model.EndpointCandidate, account model.ShareAccount) (string, error)

	// FetchReadings retrieves up to maxCount readings from the trailing
	// window of the given length. Ordering of the result is not guaranteed.
	FetchReadings(ctx context.Context, host, token string, minutes, maxCount int) ([]model.Reading, error)
}

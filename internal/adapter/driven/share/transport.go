package share

import (
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// throttledTransport delays requests that carry the account password so the
// share service never sees logins faster than the configured rate. Reading
// fetches carry only a session token and pass straight through.
type throttledTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if carriesCredentials(req) {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return t.base.RoundTrip(req)
}

func carriesCredentials(req *http.Request) bool {
	path := strings.TrimRight(req.URL.Path, "/")
	return path == loginPath || path == authenticatePath
}

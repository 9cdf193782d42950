package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ericfisherdev/diasync/internal/domain/model"
	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
	"github.com/ericfisherdev/diasync/internal/telemetry"
)

// EndpointDiscovery finds a (host, application id, payload casing) candidate
// that accepts an account by trying candidates one login at a time.
type EndpointDiscovery struct {
	client     driven.ShareClient
	candidates []model.EndpointCandidate
	metrics    *telemetry.Collector
	now        func() time.Time
}

// NewEndpointDiscovery creates an EndpointDiscovery over the given candidate
// set. metrics may be nil.
func NewEndpointDiscovery(client driven.ShareClient, candidates []model.EndpointCandidate, metrics *telemetry.Collector) *EndpointDiscovery {
	return &EndpointDiscovery{
		client:     client,
		candidates: candidates,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Candidates returns the attempt order for an account in region: preferred
// first when set, then candidates in region in declared order, then the rest.
// Each candidate appears once.
func (d *EndpointDiscovery) Candidates(region model.Region, preferred *model.EndpointCandidate) []model.EndpointCandidate {
	ordered := make([]model.EndpointCandidate, 0, len(d.candidates)+1)
	seen := make(map[model.EndpointCandidate]bool, len(d.candidates)+1)

	add := func(c model.EndpointCandidate) {
		if seen[c] {
			return
		}
		seen[c] = true
		ordered = append(ordered, c)
	}

	if preferred != nil {
		add(*preferred)
	}
	for _, c := range d.candidates {
		if c.Region == region {
			add(c)
		}
	}
	for _, c := range d.candidates {
		add(c)
	}

	return ordered
}

// Discover runs discovery with no preferred candidate.
func (d *EndpointDiscovery) Discover(ctx context.Context, account model.ShareAccount) (model.Session, error) {
	return d.DiscoverFrom(ctx, account, nil)
}

// DiscoverFrom tries candidates in order and returns the first session with a
// usable token. When every candidate fails it returns a *model.DiscoveryError
// listing each attempt. Context cancellation stops discovery immediately.
func (d *EndpointDiscovery) DiscoverFrom(ctx context.Context, account model.ShareAccount, preferred *model.EndpointCandidate) (model.Session, error) {
	if err := account.Validate(); err != nil {
		return model.Session{}, err
	}

	candidates := d.Candidates(account.Region, preferred)
	attempts := make([]model.DiscoveryAttempt, 0, len(candidates))

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return model.Session{}, err
		}

		token, attempt, err := d.try(ctx, candidate, account)
		if err != nil {
			return model.Session{}, err
		}
		if attempt.Outcome == model.OutcomeSuccess {
			slog.Info("share endpoint discovered",
				"candidate", candidate.String(),
				"account", account,
				"attempts", len(attempts)+1,
			)
			return model.Session{
				Token:         token,
				Via:           candidate,
				Fingerprint:   account.Fingerprint(),
				EstablishedAt: d.now(),
			}, nil
		}
		attempts = append(attempts, attempt)
	}

	discoveryErr := &model.DiscoveryError{Attempts: attempts}
	slog.Warn("share endpoint discovery exhausted", "account", account, "error", discoveryErr)
	return model.Session{}, discoveryErr
}

// Probe tries every candidate without stopping at the first success and
// returns one attempt per candidate. Cancellation ends the probe early.
func (d *EndpointDiscovery) Probe(ctx context.Context, account model.ShareAccount) ([]model.DiscoveryAttempt, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}

	candidates := d.Candidates(account.Region, nil)
	attempts := make([]model.DiscoveryAttempt, 0, len(candidates))
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}
		_, attempt, err := d.try(ctx, candidate, account)
		if err != nil {
			return attempts, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, nil
}

// try performs one login and classifies the result. The returned error is
// non-nil only when the context ended.
func (d *EndpointDiscovery) try(ctx context.Context, candidate model.EndpointCandidate, account model.ShareAccount) (string, model.DiscoveryAttempt, error) {
	token, err := d.client.Login(ctx, candidate, account)
	if err != nil && ctx.Err() != nil {
		return "", model.DiscoveryAttempt{}, ctx.Err()
	}

	attempt := classifyAttempt(candidate, token, err)
	d.metrics.RecordDiscoveryAttempt(candidate.Host, string(attempt.Outcome))

	if attempt.Outcome != model.OutcomeSuccess {
		slog.Debug("share login attempt failed",
			"candidate", candidate.String(),
			"outcome", attempt.Outcome,
			"status", attempt.StatusCode,
			"code", attempt.Code,
		)
	}

	return token, attempt, nil
}

func classifyAttempt(candidate model.EndpointCandidate, token string, err error) model.DiscoveryAttempt {
	attempt := model.DiscoveryAttempt{Candidate: candidate}

	var statusErr *model.StatusError
	switch {
	case err == nil && (model.Session{Token: token}).IsValid():
		attempt.Outcome = model.OutcomeSuccess
	case err == nil, errors.Is(err, model.ErrZeroSession):
		attempt.Outcome = model.OutcomeZeroSentinel
	case errors.As(err, &statusErr):
		attempt.Outcome = model.OutcomeHTTPError
		attempt.StatusCode = statusErr.StatusCode
		attempt.Code = statusErr.Code
	case errors.Is(err, model.ErrMalformedResponse):
		attempt.Outcome = model.OutcomeMalformed
	default:
		attempt.Outcome = model.OutcomeNetworkError
	}

	return attempt
}

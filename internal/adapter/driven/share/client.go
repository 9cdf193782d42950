// Package share implements the ShareClient port against the glucose share
// web service.
package share

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/diasync/internal/domain/model"
	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ShareClient = (*Client)(nil)

const (
	loginPath        = "/ShareWebServices/Services/General/LoginPublisherAccountByName"
	authenticatePath = "/ShareWebServices/Services/General/AuthenticatePublisherAccount"
	readingsPath     = "/ShareWebServices/Services/Publisher/ReadPublisherLatestGlucoseValues"

	userAgent = "Dexcom Share/3.0.4.11 CFNetwork/1121.2.2 Darwin/19.6.0"

	maxBodyBytes = 4 << 20
)

// Vendor error codes meaning the session token is no longer accepted.
var sessionErrorCodes = map[string]bool{
	"SessionIdNotFound": true,
	"SessionNotValid":   true,
}

// Client implements driven.ShareClient over HTTPS.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL // nil in production; set by tests to route every host to one server.
}

// NewClient creates a share client with the following transport stack:
//  1. throttledTransport (token bucket, perMinute logins with the given burst)
//  2. http.DefaultTransport
//
// Every request is bounded by timeout.
func NewClient(timeout time.Duration, perMinute, burst int) *Client {
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &throttledTransport{
				base:    http.DefaultTransport,
				limiter: limiter,
			},
		},
	}
}

// NewClientWithHTTPClient creates a Client that sends every request to baseURL
// while keeping the candidate host in the Host header. This constructor is
// intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    u,
	}, nil
}

// Login posts the account credentials to the candidate's login endpoint using
// the candidate's payload casing and returns the session token.
func (c *Client) Login(ctx context.Context, candidate model.EndpointCandidate, account model.ShareAccount) (string, error) {
	body := credentialPayload(candidate, account)

	raw, err := c.post(ctx, candidate.Host, loginPath, nil, body)
	if err != nil {
		return "", fmt.Errorf("login via %s: %w", candidate, err)
	}

	token, err := parseUUID(raw)
	if err != nil {
		return "", fmt.Errorf("login via %s: %w", candidate, err)
	}

	if token == uuid.Nil {
		return "", fmt.Errorf("login via %s: %w", candidate, model.ErrZeroSession)
	}

	return token.String(), nil
}

// LookupAccountID resolves the vendor account id for the credentials.
func (c *Client) LookupAccountID(ctx context.Context, candidate model.EndpointCandidate, account model.ShareAccount) (string, error) {
	body := credentialPayload(candidate, account)

	raw, err := c.post(ctx, candidate.Host, authenticatePath, nil, body)
	if err != nil {
		return "", fmt.Errorf("account lookup via %s: %w", candidate, err)
	}

	id, err := parseUUID(raw)
	if err != nil {
		return "", fmt.Errorf("account lookup via %s: %w", candidate, err)
	}

	if id == uuid.Nil {
		return "", fmt.Errorf("account lookup via %s: %w", candidate, model.ErrZeroSession)
	}

	return id.String(), nil
}

// FetchReadings retrieves the latest readings for the session.
func (c *Client) FetchReadings(ctx context.Context, host, token string, minutes, maxCount int) ([]model.Reading, error) {
	query := url.Values{}
	query.Set("sessionId", token)
	query.Set("minutes", strconv.Itoa(minutes))
	query.Set("maxCount", strconv.Itoa(maxCount))

	raw, err := c.post(ctx, host, readingsPath, query, map[string]any{})
	if err != nil {
		var statusErr *model.StatusError
		if errors.As(err, &statusErr) {
			switch {
			case sessionErrorCodes[statusErr.Code],
				statusErr.StatusCode == http.StatusUnauthorized,
				statusErr.StatusCode == http.StatusForbidden:
				return nil, fmt.Errorf("fetch readings from %s: %w: %w", host, model.ErrSessionExpired, statusErr)
			case statusErr.StatusCode >= http.StatusInternalServerError:
				return nil, fmt.Errorf("fetch readings from %s: %w: %w", host, model.ErrTransientNetwork, statusErr)
			}
		}
		return nil, fmt.Errorf("fetch readings from %s: %w", host, err)
	}

	readings, err := parseReadings(raw)
	if err != nil {
		return nil, fmt.Errorf("fetch readings from %s: %w", host, err)
	}

	slog.Debug("share readings fetched", "host", host, "minutes", minutes, "max_count", maxCount, "count", len(readings))

	return readings, nil
}

// credentialPayload builds the login body with the casing the candidate expects.
func credentialPayload(candidate model.EndpointCandidate, account model.ShareAccount) map[string]string {
	if candidate.Shape == model.PayloadPascalCase {
		return map[string]string{
			"AccountName":   account.Username,
			"Password":      account.Password,
			"ApplicationId": candidate.ApplicationID,
		}
	}
	return map[string]string{
		"accountName":   account.Username,
		"password":      account.Password,
		"applicationId": candidate.ApplicationID,
	}
}

// post sends a JSON POST and returns the response body for 2xx replies.
// Non-2xx replies become *model.StatusError; transport failures wrap
// model.ErrTransientNetwork.
func (c *Client) post(ctx context.Context, host, path string, query url.Values, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	target := c.endpoint(host, path, query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.baseURL != nil {
		req.Host = host
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, body)
	}

	return body, nil
}

// endpoint builds the request URL for host and path.
func (c *Client) endpoint(host, path string, query url.Values) string {
	u := url.URL{Scheme: "https", Host: host, Path: path}
	if c.baseURL != nil {
		u.Scheme = c.baseURL.Scheme
		u.Host = c.baseURL.Host
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// transportError classifies a failed round trip. Caller cancellation is
// returned as-is; everything else, deadlines included, is transient.
func transportError(ctx context.Context, err error) error {
	// Drop the *url.Error wrapper: its text carries the full URL, session id included.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}

	return fmt.Errorf("%w: %v", model.ErrTransientNetwork, err)
}

// statusError builds a *model.StatusError from a vendor error body such as
// {"Code":"AccountPasswordInvalid","Message":"..."}.
func statusError(status int, body []byte) error {
	e := &model.StatusError{StatusCode: status}
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		e.Code = firstString(parsed, "Code", "code")
		e.Message = firstString(parsed, "Message", "message")
	}
	return e
}

// parseUUID reads a JSON-quoted UUID body such as "a5f0ffd0-...".
func parseUUID(body []byte) (uuid.UUID, error) {
	trimmed := bytes.TrimSpace(body)
	if !gjson.ValidBytes(trimmed) {
		return uuid.Nil, fmt.Errorf("%w: body is not JSON", model.ErrMalformedResponse)
	}

	parsed := gjson.ParseBytes(trimmed)
	if parsed.Type != gjson.String {
		return uuid.Nil, fmt.Errorf("%w: expected quoted UUID, got %s", model.ErrMalformedResponse, parsed.Type)
	}

	id, err := uuid.Parse(strings.TrimSpace(parsed.Str))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", model.ErrMalformedResponse, err)
	}

	return id, nil
}

package share_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/diasync/internal/adapter/driven/share"
	"github.com/ericfisherdev/diasync/internal/domain/model"
)

const validToken = "a5f0ffd0-1a7c-4c4e-9b8c-6d2a1a6f5e01"

var testAccount = model.ShareAccount{Username: "alice@example.com", Password: "s3cret-pw", Region: model.RegionUS}

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) *share.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := share.NewClientWithHTTPClient(server.Client(), server.URL)
	require.NoError(t, err)

	return client
}

func candidate(host string, shape model.PayloadShape) model.EndpointCandidate {
	return model.EndpointCandidate{Host: host, ApplicationID: share.AppIDG6G7, Shape: shape, Region: model.RegionUS}
}

func TestLogin_CamelCasePayload(t *testing.T) {
	var got map[string]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ShareWebServices/Services/General/LoginPublisherAccountByName", r.URL.Path)
		assert.Equal(t, "share2.dexcom.com", r.Host)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `"`+validToken+`"`)
	}))

	token, err := client.Login(context.Background(), candidate(share.HostUS2, model.PayloadCamelCase), testAccount)

	require.NoError(t, err)
	assert.Equal(t, validToken, token)
	assert.Equal(t, map[string]string{
		"accountName":   "alice@example.com",
		"password":      "s3cret-pw",
		"applicationId": share.AppIDG6G7,
	}, got)
}

func TestLogin_PascalCasePayload(t *testing.T) {
	var got map[string]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `"`+validToken+`"`)
	}))

	_, err := client.Login(context.Background(), candidate(share.HostUS1, model.PayloadPascalCase), testAccount)

	require.NoError(t, err)
	assert.Contains(t, got, "AccountName")
	assert.Contains(t, got, "Password")
	assert.Contains(t, got, "ApplicationId")
}

func TestLogin_ZeroSentinel(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `"`+model.ZeroSentinel+`"`)
	}))

	token, err := client.Login(context.Background(), candidate(share.HostUS2, model.PayloadCamelCase), testAccount)

	assert.Empty(t, token)
	require.ErrorIs(t, err, model.ErrZeroSession)
	assert.NotContains(t, err.Error(), "s3cret-pw")
}

func TestLogin_HTTPErrorCarriesVendorCode(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"Code":"AccountPasswordInvalid","Message":"Publisher account password failed"}`)
	}))

	_, err := client.Login(context.Background(), candidate(share.HostUS2, model.PayloadCamelCase), testAccount)

	var statusErr *model.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "AccountPasswordInvalid", statusErr.Code)
	assert.NotContains(t, err.Error(), "s3cret-pw")
}

func TestLogin_MalformedBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>maintenance</html>`)
	}))

	_, err := client.Login(context.Background(), candidate(share.HostUS2, model.PayloadCamelCase), testAccount)

	assert.ErrorIs(t, err, model.ErrMalformedResponse)
}

func TestLogin_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	client, err := share.NewClientWithHTTPClient(server.Client(), server.URL)
	require.NoError(t, err)
	server.Close()

	_, err = client.Login(context.Background(), candidate(share.HostUS2, model.PayloadCamelCase), testAccount)

	assert.ErrorIs(t, err, model.ErrTransientNetwork)
}

func TestLogin_TimeoutIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)

	httpClient := server.Client()
	httpClient.Timeout = 50 * time.Millisecond
	client, err := share.NewClientWithHTTPClient(httpClient, server.URL)
	require.NoError(t, err)

	_, err = client.Login(context.Background(), candidate(share.HostUS2, model.PayloadCamelCase), testAccount)

	assert.ErrorIs(t, err, model.ErrTransientNetwork)
}

func TestLookupAccountID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ShareWebServices/Services/General/AuthenticatePublisherAccount", r.URL.Path)
		_, _ = io.WriteString(w, `"0f3a2c1e-8d7b-4e6a-9c5d-4b3a2f1e0d9c"`)
	}))

	id, err := client.LookupAccountID(context.Background(), candidate(share.HostUS2, model.PayloadCamelCase), testAccount)

	require.NoError(t, err)
	assert.Equal(t, "0f3a2c1e-8d7b-4e6a-9c5d-4b3a2f1e0d9c", id)
}

func TestFetchReadings_NormalizedShape(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ShareWebServices/Services/Publisher/ReadPublisherLatestGlucoseValues", r.URL.Path)
		assert.Equal(t, validToken, r.URL.Query().Get("sessionId"))
		assert.Equal(t, "1440", r.URL.Query().Get("minutes"))
		assert.Equal(t, "288", r.URL.Query().Get("maxCount"))
		_, _ = io.WriteString(w, `[
			{"trend":{"name":"Flat","desc":"steady","arrow":"→"},"mgdl":120,"mmol":6.7,"time":"2026-03-01T08:35:00Z"},
			{"trend":{"name":"SingleUp","desc":"rising","arrow":"↑"},"mgdl":135,"mmol":7.5,"time":"2026-03-01T08:30:00Z"}
		]`)
	}))

	readings, err := client.FetchReadings(context.Background(), share.HostUS2, validToken, 1440, 288)

	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 120, readings[0].Value)
	assert.Equal(t, "steady", readings[0].Trend)
	assert.Equal(t, "→", readings[0].TrendArrow)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 35, 0, 0, time.UTC), readings[0].Timestamp)
	assert.Equal(t, model.ReadingID(readings[0].Timestamp), readings[0].ID)
	assert.Equal(t, "rising", readings[1].Trend)
}

func TestFetchReadings_VendorShape(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[
			{"WT":"Date(1772371800000)","ST":"Date(1772371800000)","DT":"Date(1772371800000-0500)","Value":98,"Trend":"FortyFiveDown"},
			{"WT":"/Date(1772371500000)/","Value":104,"Trend":4}
		]`)
	}))

	readings, err := client.FetchReadings(context.Background(), share.HostUS2, validToken, 60, 12)

	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 98, readings[0].Value)
	assert.Equal(t, "falling slightly", readings[0].Trend)
	assert.Equal(t, time.UnixMilli(1772371800000).UTC(), readings[0].Timestamp)
	assert.Equal(t, "steady", readings[1].Trend)
}

func TestFetchReadings_EmptyArray(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))

	readings, err := client.FetchReadings(context.Background(), share.HostUS2, validToken, 1440, 288)

	require.NoError(t, err)
	assert.Empty(t, readings)
}

func TestFetchReadings_Malformed(t *testing.T) {
	tests := map[string]string{
		"not json":      `oops`,
		"object":        `{"readings":[]}`,
		"missing value": `[{"time":"2026-03-01T08:35:00Z"}]`,
		"missing time":  `[{"mgdl":120}]`,
		"bad time":      `[{"mgdl":120,"time":"yesterday"}]`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, body)
			}))

			readings, err := client.FetchReadings(context.Background(), share.HostUS2, validToken, 1440, 288)

			assert.Nil(t, readings)
			assert.ErrorIs(t, err, model.ErrMalformedResponse)
		})
	}
}

func TestFetchReadings_SessionExpired(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"Code":"SessionIdNotFound","Message":"Session ID not found"}`)
	}))

	_, err := client.FetchReadings(context.Background(), share.HostUS2, validToken, 1440, 288)

	assert.ErrorIs(t, err, model.ErrSessionExpired)
	assert.NotErrorIs(t, err, model.ErrTransientNetwork)
	assert.NotContains(t, err.Error(), validToken)
}

func TestFetchReadings_ServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.FetchReadings(context.Background(), share.HostUS2, validToken, 1440, 288)

	assert.ErrorIs(t, err, model.ErrTransientNetwork)
}

func TestFetchReadings_CanceledContext(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchReadings(ctx, share.HostUS2, validToken, 1440, 288)

	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDefaultCandidates(t *testing.T) {
	candidates := share.DefaultCandidates()

	require.Len(t, candidates, 12)
	for _, c := range candidates {
		assert.NoError(t, c.Validate())
	}
	assert.Equal(t, share.HostUS2, candidates[0].Host)
	assert.Equal(t, model.PayloadCamelCase, candidates[0].Shape)
	assert.Equal(t, model.PayloadPascalCase, candidates[1].Shape)
	assert.Equal(t, model.RegionOUS, candidates[len(candidates)-1].Region)
}

package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/diasync/internal/domain/model"
	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
	"github.com/ericfisherdev/diasync/internal/telemetry"
)

// ErrInvalidRegion is returned by Connect for a region other than US or OUS.
var ErrInvalidRegion = errors.New("region must be US or OUS")

// sessionNamespace derives the opaque session ids handed to callers.
var sessionNamespace = uuid.MustParse("6f1c2a7e-4b1d-5e8a-9c3f-2d7b6a1e0f94")

// ConnectResult is the outcome of Connect. Error is a public message and
// never contains credential material.
type ConnectResult struct {
	Success   bool
	SessionID string
	Username  string
	AccountID string
	Error     string
}

// SyncResult is the outcome of a successful or skipped Sync.
type SyncResult struct {
	Skipped    bool // No account is connected.
	Fetched    int
	Total      int
	LastSyncAt time.Time
}

// IngestionClient is the facade the driving adapters use: connect an
// account, sync readings into local history, disconnect.
//
// Connect, Sync and Disconnect are serialized by one operation lock. Sync
// does not wait for it and fails with model.ErrSyncInProgress instead.
type IngestionClient struct {
	accounts *AccountStore
	sessions *SessionManager
	fetcher  *ReadingFetcher
	client   driven.ShareClient
	readings driven.ReadingStore
	status   driven.SyncStatusStore
	metrics  *telemetry.Collector

	lookbackMinutes int
	maxCount        int
	now             func() time.Time

	opMu sync.Mutex
}

// NewIngestionClient creates an IngestionClient. metrics may be nil.
func NewIngestionClient(
	accounts *AccountStore,
	sessions *SessionManager,
	client driven.ShareClient,
	readings driven.ReadingStore,
	status driven.SyncStatusStore,
	metrics *telemetry.Collector,
	lookbackMinutes int,
	maxCount int,
) *IngestionClient {
	return &IngestionClient{
		accounts:        accounts,
		sessions:        sessions,
		fetcher:         NewReadingFetcher(client),
		client:          client,
		readings:        readings,
		status:          status,
		metrics:         metrics,
		lookbackMinutes: lookbackMinutes,
		maxCount:        maxCount,
		now:             time.Now,
	}
}

// Connect validates the credentials, runs a fresh discovery, and on success
// persists the account and marks the service connected. On failure the
// result carries a public message and the stored account is left as it was.
func (c *IngestionClient) Connect(ctx context.Context, username, password, region string) (ConnectResult, error) {
	parsedRegion, err := model.ParseRegion(region)
	if err != nil {
		return failedConnect(ErrInvalidRegion), ErrInvalidRegion
	}

	account := model.ShareAccount{Username: username, Password: password, Region: parsedRegion}
	if err := account.Validate(); err != nil {
		return failedConnect(err), err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.sessions.Reset()

	session, err := c.sessions.EnsureAuthenticated(ctx, account)
	if err != nil {
		slog.Warn("share connect failed", "account", account, "error", err)
		return failedConnect(err), err
	}

	accountID, err := c.client.LookupAccountID(ctx, session.Via, account)
	if err != nil {
		slog.Warn("share account id lookup failed", "account", account, "error", err)
		accountID = ""
	}
	c.sessions.setAccountID(accountID)

	previous, hadPrevious, err := c.accounts.Load(ctx)
	if err != nil {
		slog.Warn("loading previous share account failed", "error", err)
		hadPrevious = false
	}

	status, err := c.status.Get(ctx)
	if err != nil {
		c.sessions.Reset()
		return failedConnect(err), err
	}

	via := session.Via
	if err := c.accounts.Save(ctx, StoredAccount{
		Account:   account,
		SessionID: session.Token,
		AccountID: accountID,
		Endpoint:  &via,
	}); err != nil {
		c.sessions.Reset()
		return failedConnect(err), err
	}

	status.Connected = true
	status.Region = account.Region
	status.AccountLabel = account.DisplayName()
	status.AccountID = accountID
	status.LastError = ""
	if err := c.status.Save(ctx, status); err != nil {
		c.restoreAccount(ctx, previous, hadPrevious)
		c.sessions.Reset()
		return failedConnect(err), err
	}
	c.metrics.SetConnected(true)

	slog.Info("share account connected", "account", account, "endpoint", session.Via.String())

	return ConnectResult{
		Success:   true,
		SessionID: opaqueSessionID(session.Token),
		Username:  account.Username,
		AccountID: accountID,
	}, nil
}

// restoreAccount puts back the account that was stored before a connect that
// failed after its credentials were written.
func (c *IngestionClient) restoreAccount(ctx context.Context, previous StoredAccount, hadPrevious bool) {
	ctx = context.WithoutCancel(ctx)

	var err error
	if hadPrevious {
		err = c.accounts.Save(ctx, previous)
	} else {
		err = c.accounts.Purge(ctx)
	}
	if err != nil {
		slog.Error("restoring previous share account failed", "error", err)
	}
}

// Sync fetches the trailing window of readings and merges it into local
// history. With no stored account it does nothing and reports Skipped.
// An expired session is re-authenticated once. On any failure before the
// history is stored it is untouched and the public error is recorded in
// SyncStatus.LastError. Once the history is stored the sync succeeds even if
// the status write does not.
func (c *IngestionClient) Sync(ctx context.Context) (SyncResult, error) {
	if !c.opMu.TryLock() {
		c.metrics.RecordSync(telemetry.SyncInProgress, 0)
		return SyncResult{}, model.ErrSyncInProgress
	}
	defer c.opMu.Unlock()

	start := c.now()

	stored, ok, err := c.accounts.Load(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	if !ok {
		c.metrics.RecordSync(telemetry.SyncSkipped, 0)
		slog.Debug("sync skipped: no share account connected")
		return SyncResult{Skipped: true}, nil
	}

	if stored.Endpoint != nil {
		c.sessions.Restore(model.Session{
			Token:       stored.SessionID,
			Via:         *stored.Endpoint,
			Fingerprint: stored.Account.Fingerprint(),
			AccountID:   stored.AccountID,
		})
	}

	status, err := c.status.Get(ctx)
	if err != nil {
		c.metrics.RecordSync(telemetry.SyncFailed, c.now().Sub(start))
		slog.Error("sync failed", "error", err)
		return SyncResult{}, fmt.Errorf("load sync status: %w", err)
	}

	result, session, err := c.syncAccount(ctx, stored.Account)
	if err != nil {
		c.metrics.RecordSync(telemetry.SyncFailed, c.now().Sub(start))
		c.recordFailure(ctx, err)
		return SyncResult{}, err
	}

	if session.Token != stored.SessionID || stored.Endpoint == nil || *stored.Endpoint != session.Via {
		if err := c.accounts.SaveSession(ctx, session); err != nil {
			slog.Warn("persisting renewed share session failed", "error", err)
		}
	}

	// History is committed at this point; a status write failure does not undo it.
	status.Connected = true
	status.Region = stored.Account.Region
	status.AccountLabel = stored.Account.DisplayName()
	if stored.AccountID != "" {
		status.AccountID = stored.AccountID
	}
	status.LastSyncAt = result.LastSyncAt
	status.LastError = ""
	if err := c.status.Save(ctx, status); err != nil {
		slog.Warn("recording sync status failed", "error", err)
	}

	c.metrics.RecordSync(telemetry.SyncSuccess, c.now().Sub(start))
	c.metrics.RecordHistory(result.Total, result.LastSyncAt)
	c.metrics.SetConnected(true)

	slog.Info("sync complete",
		"fetched", result.Fetched,
		"total", result.Total,
		"duration", c.now().Sub(start).Round(time.Millisecond),
	)

	return result, nil
}

// syncAccount fetches, merges and stores readings for account.
func (c *IngestionClient) syncAccount(ctx context.Context, account model.ShareAccount) (SyncResult, model.Session, error) {
	fresh, session, err := c.fetchWithRetry(ctx, account)
	if err != nil {
		return SyncResult{}, session, err
	}

	existing, err := c.readings.ListAll(ctx)
	if err != nil {
		return SyncResult{}, session, fmt.Errorf("load history: %w", err)
	}

	merged := Merge(existing, fresh)
	if err := c.readings.ReplaceAll(ctx, merged); err != nil {
		return SyncResult{}, session, fmt.Errorf("store history: %w", err)
	}

	return SyncResult{
		Fetched:    len(fresh),
		Total:      len(merged),
		LastSyncAt: c.now().UTC(),
	}, session, nil
}

// fetchWithRetry fetches with the current session and, when the share service
// reports it expired, re-authenticates once and fetches again.
func (c *IngestionClient) fetchWithRetry(ctx context.Context, account model.ShareAccount) ([]model.Reading, model.Session, error) {
	session, err := c.sessions.EnsureAuthenticated(ctx, account)
	if err != nil {
		return nil, model.Session{}, err
	}

	readings, err := c.fetcher.Fetch(ctx, session, c.lookbackMinutes, c.maxCount)
	if !errors.Is(err, model.ErrSessionExpired) {
		return readings, session, err
	}

	slog.Info("share session expired, re-authenticating", "endpoint", session.Via.String())
	c.metrics.RecordReauthentication()
	c.sessions.Invalidate()

	session, err = c.sessions.EnsureAuthenticated(ctx, account)
	if err != nil {
		return nil, model.Session{}, err
	}

	readings, err = c.fetcher.Fetch(ctx, session, c.lookbackMinutes, c.maxCount)
	return readings, session, err
}

func (c *IngestionClient) recordFailure(ctx context.Context, syncErr error) {
	slog.Error("sync failed", "error", syncErr)

	// The caller's context may be what failed; the status write must still land.
	ctx = context.WithoutCancel(ctx)

	status, err := c.status.Get(ctx)
	if err != nil {
		slog.Error("loading sync status failed", "error", err)
		return
	}
	status.LastError = PublicMessage(syncErr)
	if err := c.status.Save(ctx, status); err != nil {
		slog.Error("recording sync failure failed", "error", err)
	}
}

// Disconnect forgets the account: the session cache is reset, stored
// credentials are purged and SyncStatus is marked disconnected. Local history
// is kept. Disconnect is idempotent.
func (c *IngestionClient) Disconnect(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.sessions.Reset()

	if err := c.accounts.Purge(ctx); err != nil {
		return err
	}

	status, err := c.status.Get(ctx)
	if err != nil {
		return err
	}
	if err := c.status.Save(ctx, model.SyncStatus{LastSyncAt: status.LastSyncAt}); err != nil {
		return err
	}
	c.metrics.SetConnected(false)

	slog.Info("share account disconnected")
	return nil
}

// Status returns the stored SyncStatus.
func (c *IngestionClient) Status(ctx context.Context) (model.SyncStatus, error) {
	return c.status.Get(ctx)
}

func failedConnect(err error) ConnectResult {
	return ConnectResult{Success: false, Error: PublicMessage(err)}
}

// opaqueSessionID identifies a session to callers without exposing its token.
func opaqueSessionID(token string) string {
	return uuid.NewSHA1(sessionNamespace, []byte(token)).String()
}

package application

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/ericfisherdev/diasync/internal/domain/model"
	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
)

// shareService is the credential store namespace for the share account.
const shareService = "dexcom_share"

// Keys stored under shareService.
const (
	keyUsername  = "username"
	keyPassword  = "password"
	keyRegion    = "region"
	keySessionID = "session_id"
	keyAccountID = "account_id"
	keyEndpoint  = "endpoint"
)

// StoredAccount is the persisted share account plus the metadata of its last session.
type StoredAccount struct {
	Account   model.ShareAccount
	SessionID string
	AccountID string
	Endpoint  *model.EndpointCandidate
}

// AccountStore persists the single active share account through a CredentialStore.
type AccountStore struct {
	store driven.CredentialStore
}

// NewAccountStore creates an AccountStore backed by store.
func NewAccountStore(store driven.CredentialStore) *AccountStore {
	return &AccountStore{store: store}
}

// Load returns the stored account. ok is false when no complete credential
// set is stored.
func (s *AccountStore) Load(ctx context.Context) (StoredAccount, bool, error) {
	values, err := s.store.GetAll(ctx, shareService)
	if err != nil {
		return StoredAccount{}, false, fmt.Errorf("load share account: %w", err)
	}

	account := model.ShareAccount{
		Username: values[keyUsername],
		Password: values[keyPassword],
	}
	if account.Validate() != nil {
		return StoredAccount{}, false, nil
	}

	account.Region, err = model.ParseRegion(values[keyRegion])
	if err != nil {
		return StoredAccount{}, false, fmt.Errorf("load share account: %w", err)
	}

	stored := StoredAccount{
		Account:   account,
		SessionID: values[keySessionID],
		AccountID: values[keyAccountID],
	}
	if endpoint, ok := decodeEndpoint(values[keyEndpoint]); ok {
		stored.Endpoint = &endpoint
	}

	return stored, true, nil
}

// Save replaces the stored account and its session metadata in one write.
// Empty optional fields are left out. On error the previous account is
// still stored.
func (s *AccountStore) Save(ctx context.Context, stored StoredAccount) error {
	values := map[string]string{
		keyUsername:  stored.Account.Username,
		keyPassword:  stored.Account.Password,
		keyRegion:    string(stored.Account.Region),
		keySessionID: stored.SessionID,
		keyAccountID: stored.AccountID,
	}
	if stored.Endpoint != nil {
		values[keyEndpoint] = encodeEndpoint(*stored.Endpoint)
	}
	maps.DeleteFunc(values, func(_, v string) bool { return v == "" })

	if err := s.store.ReplaceService(ctx, shareService, values); err != nil {
		return fmt.Errorf("store share account: %w", err)
	}
	return nil
}

// SaveSession updates the stored session token and the endpoint that issued it.
func (s *AccountStore) SaveSession(ctx context.Context, session model.Session) error {
	if err := s.put(ctx, keySessionID, session.Token); err != nil {
		return err
	}
	return s.put(ctx, keyEndpoint, encodeEndpoint(session.Via))
}

// Purge removes everything stored for the share account.
func (s *AccountStore) Purge(ctx context.Context) error {
	if err := s.store.DeleteService(ctx, shareService); err != nil {
		return fmt.Errorf("purge share account: %w", err)
	}
	return nil
}

func (s *AccountStore) put(ctx context.Context, key, value string) error {
	var err error
	if value == "" {
		err = s.store.Delete(ctx, shareService, key)
	} else {
		err = s.store.Set(ctx, shareService, key, value)
	}
	if err != nil {
		return fmt.Errorf("store share %s: %w", key, err)
	}
	return nil
}

// encodeEndpoint serializes a candidate as "host|applicationId|shape|region".
func encodeEndpoint(c model.EndpointCandidate) string {
	return strings.Join([]string{c.Host, c.ApplicationID, string(c.Shape), string(c.Region)}, "|")
}

func decodeEndpoint(s string) (model.EndpointCandidate, bool) {
	parts := strings.Split(s, "|")
	if len(parts) != 4 {
		return model.EndpointCandidate{}, false
	}
	c := model.EndpointCandidate{
		Host:          parts[0],
		ApplicationID: parts[1],
		Shape:         model.PayloadShape(parts[2]),
		Region:        model.Region(parts[3]),
	}
	if c.Validate() != nil {
		return model.EndpointCandidate{}, false
	}
	return c, true
}

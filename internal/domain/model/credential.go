package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Credential holds a stored key-value pair. Service identifies the external
// system ("dexcom_share"), and Key identifies the value within that service
// ("username", "password", "session_id").
type Credential struct {
	ID        int64
	Service   string
	Key       string
	Value     string
	UpdatedAt time.Time
}

// ShareAccount is the credential set used against the remote share service.
// Region is a hint for host selection, not a hard filter.
type ShareAccount struct {
	Username string
	Password string
	Region   Region
}

// Validate rejects accounts that cannot be used for a login attempt.
func (a ShareAccount) Validate() error {
	if strings.TrimSpace(a.Username) == "" || a.Password == "" {
		return ErrCredential
	}
	return nil
}

// Fingerprint returns a stable digest identifying this credential set without
// revealing it. Sessions are tagged with the fingerprint of the account that
// produced them.
func (a ShareAccount) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(a.Username))
	h.Write([]byte{0})
	h.Write([]byte(a.Password))
	h.Write([]byte{0})
	h.Write([]byte(a.Region))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// DisplayName returns the username with any e-mail domain stripped.
func (a ShareAccount) DisplayName() string {
	name, _, _ := strings.Cut(a.Username, "@")
	return name
}

// String never includes the password.
func (a ShareAccount) String() string {
	return fmt.Sprintf("%s (%s)", a.Username, a.Region)
}

// LogValue implements slog.LogValuer so accounts can be logged directly.
func (a ShareAccount) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", a.Username),
		slog.String("region", string(a.Region)),
	)
}

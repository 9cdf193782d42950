package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/diasync/internal/domain/model"
	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
)

// PublicMessage maps an error onto text safe to show a user. It never
// includes credential material or session tokens.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}

	var statusErr *model.StatusError
	switch {
	case errors.Is(err, model.ErrCredential):
		return "Username and password are required."
	case errors.Is(err, ErrInvalidRegion):
		return "Region must be US or OUS."
	case errors.Is(err, model.ErrDiscoveryExhausted), errors.Is(err, model.ErrZeroSession):
		return "The share service rejected these credentials on every known server. " +
			"Check the username, password and region, and that sharing is enabled in the mobile app."
	case errors.Is(err, model.ErrSessionExpired):
		return "The share session expired and could not be renewed."
	case errors.Is(err, model.ErrSyncInProgress):
		return "A sync is already in progress."
	case errors.Is(err, model.ErrTransientNetwork), errors.Is(err, context.DeadlineExceeded):
		return "The share service could not be reached. Try again later."
	case errors.Is(err, model.ErrMalformedResponse):
		return "The share service returned an unexpected response."
	case errors.Is(err, context.Canceled):
		return "The request was canceled."
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		return "Credential storage is not configured."
	case errors.As(err, &statusErr):
		return fmt.Sprintf("The share service returned HTTP %d.", statusErr.StatusCode)
	default:
		return "Unexpected error while syncing with the share service."
	}
}

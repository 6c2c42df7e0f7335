package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedField        = errors.New("malformed encrypted field")
	ErrDecryptionFailed      = errors.New("decryption failed")
	ErrIncompleteCredentials = errors.New("incomplete credentials")
	ErrRefreshFailed         = errors.New("token refresh failed")
	ErrOAuthAppNotConfigured = errors.New("oauth application not configured")
	ErrUnsupportedAuthMethod = errors.New("unsupported auth method")
	ErrInvalidKeyMaterial    = errors.New("invalid private key")
)

type IncompleteCredentialsError struct {
	Missing []string
}

func (e *IncompleteCredentialsError) Error() string {
	return fmt.Sprintf("incomplete credentials: missing %s", strings.Join(e.Missing, ", "))
}

func (e *IncompleteCredentialsError) Is(target error) bool {
	return target == ErrIncompleteCredentials
}

// RefreshError carries the provider's message. It is meant for logs and for
// coarse classification, not for echoing to end users.
type RefreshError struct {
	StatusCode      int
	ProviderMessage string
}

func (e *RefreshError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token refresh failed (status: %d): %s", e.StatusCode, e.ProviderMessage)
	}

	return fmt.Sprintf("token refresh failed: %s", e.ProviderMessage)
}

func (e *RefreshError) Is(target error) bool {
	return target == ErrRefreshFailed
}

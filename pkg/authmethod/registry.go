// Package authmethod turns a decrypted warehouse bundle into the connection
// descriptor for its auth method. It performs no I/O.
package authmethod

import (
	"fmt"
	"strings"

	"github.com/flowbaker/vault/pkg/domain"
)

var requiredFields = map[domain.AuthMethod][]string{
	domain.AuthMethodStaticSecret: {domain.FieldHost, domain.FieldUsername, domain.FieldPassword},
	domain.AuthMethodKeyPair:      {domain.FieldHost, domain.FieldUsername, domain.FieldPrivateKey},
	domain.AuthMethodOAuth2:       {domain.FieldHost, domain.FieldAccessToken},
}

var sensitiveFields = map[domain.AuthMethod][]string{
	domain.AuthMethodStaticSecret: {domain.FieldPassword},
	domain.AuthMethodKeyPair:      {domain.FieldPrivateKey, domain.FieldPassphrase},
	domain.AuthMethodOAuth2:       {domain.FieldAccessToken, domain.FieldRefreshToken},
}

// RequiredFields lists the fields that must be non-empty for method.
func RequiredFields(method domain.AuthMethod) []string {
	return append([]string(nil), requiredFields[method]...)
}

// SensitiveFields lists the fields stored encrypted for method.
func SensitiveFields(method domain.AuthMethod) []string {
	return append([]string(nil), sensitiveFields[method]...)
}

// AllSensitiveFields is the union over every method. A warehouse bundle may
// carry leftovers from a previous method, and those stay encrypted too.
func AllSensitiveFields() []string {
	return []string{
		domain.FieldPassword,
		domain.FieldPrivateKey,
		domain.FieldPassphrase,
		domain.FieldAccessToken,
		domain.FieldRefreshToken,
	}
}

// Describe builds the descriptor for method from decrypted fields. It fails
// with *domain.IncompleteCredentialsError when a required field is absent or
// empty, and with domain.ErrInvalidKeyMaterial when key-pair material cannot
// be parsed.
func Describe(method domain.AuthMethod, fields map[string]string) (domain.ConnectionDescriptor, error) {
	required, ok := requiredFields[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedAuthMethod, method)
	}

	if missing := missingFields(fields, required); len(missing) > 0 {
		return nil, &domain.IncompleteCredentialsError{Missing: missing}
	}

	target := domain.ConnectionTarget{
		Host:      value(fields, domain.FieldHost),
		Username:  value(fields, domain.FieldUsername),
		Role:      value(fields, domain.FieldRole),
		Warehouse: value(fields, domain.FieldWarehouse),
		Database:  value(fields, domain.FieldDatabase),
		Schema:    value(fields, domain.FieldSchema),
	}

	switch method {
	case domain.AuthMethodStaticSecret:
		return domain.SecretDescriptor{
			ConnectionTarget: target,
			Password:         fields[domain.FieldPassword],
		}, nil
	case domain.AuthMethodKeyPair:
		return describeKeyPair(target, fields)
	case domain.AuthMethodOAuth2:
		return domain.OAuthDescriptor{
			ConnectionTarget: target,
			AccessToken:      fields[domain.FieldAccessToken],
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedAuthMethod, method)
}

func describeKeyPair(target domain.ConnectionTarget, fields map[string]string) (domain.ConnectionDescriptor, error) {
	passphrase := fields[domain.FieldPassphrase]

	keyPEM, err := ensurePEM(fields[domain.FieldPrivateKey], passphrase)
	if err != nil {
		return nil, err
	}

	block, err := decodeKey(keyPEM)
	if err != nil {
		return nil, err
	}

	if isEncrypted(block) && passphrase == "" {
		return nil, &domain.IncompleteCredentialsError{Missing: []string{domain.FieldPassphrase}}
	}

	key, err := parsePrivateKey(block, passphrase)
	if err != nil {
		return nil, err
	}

	return domain.KeyPairDescriptor{
		ConnectionTarget: target,
		PrivateKey:       key,
	}, nil
}

func missingFields(fields map[string]string, required []string) []string {
	var missing []string
	for _, field := range required {
		if value(fields, field) == "" {
			missing = append(missing, field)
		}
	}

	return missing
}

func value(fields map[string]string, field string) string {
	return strings.TrimSpace(fields[field])
}

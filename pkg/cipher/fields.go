package cipher

import (
	"fmt"

	"github.com/flowbaker/vault/pkg/domain"
)

// SealFields returns a copy of fields where every non-empty sensitive value
// is encrypted. Empty sensitive values are dropped so that a merge keeps the
// previously stored secret.
func SealFields(c domain.FieldCipher, fields map[string]string, sensitive []string) (map[string]string, error) {
	sealed := make(map[string]string, len(fields))

	for k, v := range fields {
		sealed[k] = v
	}

	for _, name := range sensitive {
		value, ok := sealed[name]
		if !ok {
			continue
		}

		if value == "" {
			delete(sealed, name)
			continue
		}

		encrypted, err := c.Encrypt(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt field %s: %w", name, err)
		}

		sealed[name] = encrypted
	}

	return sealed, nil
}

// OpenFields returns a copy of fields with every present sensitive value
// decrypted. The first failure is returned wrapped with the field name.
func OpenFields(c domain.FieldCipher, fields map[string]string, sensitive []string) (map[string]string, error) {
	opened := make(map[string]string, len(fields))

	for k, v := range fields {
		opened[k] = v
	}

	for _, name := range sensitive {
		value := opened[name]
		if value == "" {
			continue
		}

		plaintext, err := c.Decrypt(value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}

		opened[name] = plaintext
	}

	return opened, nil
}

package authmethod

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/youmark/pkcs8"
)

const (
	pemTypePrivateKey          = "PRIVATE KEY"
	pemTypeEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	pemTypeRSAPrivateKey       = "RSA PRIVATE KEY"

	pemLineLength = 64
)

// ensurePEM normalizes pasted key material into PEM text. Accepted inputs are
// PEM, base64 of PEM, and a bare base64 DER body. A bare body is wrapped as an
// encrypted PKCS#8 key when a passphrase was supplied.
func ensurePEM(raw string, passphrase string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "-----BEGIN") {
		return raw, nil
	}

	body := strings.Join(strings.Fields(raw), "")

	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("%w: not PEM or base64", domain.ErrInvalidKeyMaterial)
	}

	if strings.Contains(string(decoded), "-----BEGIN") {
		return strings.TrimSpace(string(decoded)), nil
	}

	pemType := pemTypePrivateKey
	if passphrase != "" {
		pemType = pemTypeEncryptedPrivateKey
	}

	return foldPEM(pemType, body), nil
}

func foldPEM(pemType string, body string) string {
	var b strings.Builder

	b.WriteString("-----BEGIN " + pemType + "-----\n")
	for len(body) > pemLineLength {
		b.WriteString(body[:pemLineLength])
		b.WriteByte('\n')
		body = body[pemLineLength:]
	}
	if body != "" {
		b.WriteString(body)
		b.WriteByte('\n')
	}
	b.WriteString("-----END " + pemType + "-----")

	return b.String()
}

// isEncrypted reports whether the PEM block needs a passphrase.
func isEncrypted(block *pem.Block) bool {
	if block.Type == pemTypeEncryptedPrivateKey {
		return true
	}

	//nolint:staticcheck // legacy encrypted PKCS#1 keys are still pasted in
	return block.Type == pemTypeRSAPrivateKey && x509.IsEncryptedPEMBlock(block)
}

func decodeKey(keyPEM string) (*pem.Block, error) {
	block, _ := pem.Decode([]byte(keyPEM))
	if block == nil {
		return nil, fmt.Errorf("%w: failed to decode PEM block", domain.ErrInvalidKeyMaterial)
	}

	return block, nil
}

func parsePrivateKey(block *pem.Block, passphrase string) (*rsa.PrivateKey, error) {
	var (
		parsedKey any
		err       error
	)

	switch block.Type {
	case pemTypeEncryptedPrivateKey:
		parsedKey, err = pkcs8.ParsePKCS8PrivateKey(block.Bytes, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decrypt PKCS8 private key: %v", domain.ErrInvalidKeyMaterial, err)
		}
	case pemTypePrivateKey:
		parsedKey, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse PKCS8 private key: %v", domain.ErrInvalidKeyMaterial, err)
		}
	case pemTypeRSAPrivateKey:
		der := block.Bytes

		//nolint:staticcheck // see isEncrypted
		if x509.IsEncryptedPEMBlock(block) {
			der, err = x509.DecryptPEMBlock(block, []byte(passphrase))
			if err != nil {
				return nil, fmt.Errorf("%w: failed to decrypt RSA private key: %v", domain.ErrInvalidKeyMaterial, err)
			}
		}

		parsedKey, err = x509.ParsePKCS1PrivateKey(der)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse RSA private key: %v", domain.ErrInvalidKeyMaterial, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported private key type: %s", domain.ErrInvalidKeyMaterial, block.Type)
	}

	rsaKey, ok := parsedKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: private key is not RSA type", domain.ErrInvalidKeyMaterial)
	}

	return rsaKey, nil
}

// Package auth signs and verifies the ed25519 request signatures the
// dashboard backend attaches to every tenant call.
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader = "X-API-Signature"
	TimestampHeader = "X-API-Timestamp"

	signaturePrefix = "ed25519="

	DefaultWindow = 5 * time.Minute
)

var (
	ErrInvalidSignature = errors.New("invalid api signature")
	ErrStaleTimestamp   = errors.New("timestamp outside allowed window")
)

// canonicalRequest is the signed payload: method, path, an empty line, the
// unix timestamp and the body digest.
func canonicalRequest(method, path, timestamp string, body []byte) []byte {
	return fmt.Appendf(nil, "%s\n%s\n\n%s\nsha256:%x", method, path, timestamp, sha256.Sum256(body))
}

// GenerateKeyPair returns a base64 encoded ed25519 key pair.
func GenerateKeyPair() (publicKey string, privateKey string, err error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate ed25519 key: %w", err)
	}

	return base64.StdEncoding.EncodeToString(public), base64.StdEncoding.EncodeToString(private), nil
}

type RequestSigner struct {
	privateKey ed25519.PrivateKey
	now        func() time.Time
}

func NewRequestSigner(privateKeyBase64 string) (*RequestSigner, error) {
	privateKeyBytes, err := base64.StdEncoding.DecodeString(privateKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}

	if len(privateKeyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size: expected %d, got %d", ed25519.PrivateKeySize, len(privateKeyBytes))
	}

	return &RequestSigner{
		privateKey: ed25519.PrivateKey(privateKeyBytes),
		now:        time.Now,
	}, nil
}

// Sign returns the headers to attach to the request.
func (s *RequestSigner) Sign(method, path string, body []byte) map[string]string {
	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	signature := ed25519.Sign(s.privateKey, canonicalRequest(method, path, timestamp, body))

	return map[string]string{
		SignatureHeader: signaturePrefix + base64.StdEncoding.EncodeToString(signature),
		TimestampHeader: timestamp,
	}
}

type SignatureVerifier struct {
	publicKey ed25519.PublicKey
	window    time.Duration
	now       func() time.Time
}

func NewSignatureVerifier(publicKeyBase64 string) (*SignatureVerifier, error) {
	publicKeyBytes, err := base64.StdEncoding.DecodeString(publicKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}

	if len(publicKeyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key size: expected %d, got %d", ed25519.PublicKeySize, len(publicKeyBytes))
	}

	return &SignatureVerifier{
		publicKey: ed25519.PublicKey(publicKeyBytes),
		window:    DefaultWindow,
		now:       time.Now,
	}, nil
}

func (v *SignatureVerifier) Verify(method, path, signatureHeader, timestampHeader string, body []byte) error {
	encoded, ok := strings.CutPrefix(signatureHeader, signaturePrefix)
	if !ok || encoded == "" {
		return fmt.Errorf("%w: expected %s prefix", ErrInvalidSignature, signaturePrefix)
	}

	signature, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	timestamp, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid timestamp", ErrInvalidSignature)
	}

	skew := v.now().Sub(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.window {
		return ErrStaleTimestamp
	}

	if !ed25519.Verify(v.publicKey, canonicalRequest(method, path, timestampHeader, body), signature) {
		return ErrInvalidSignature
	}

	return nil
}

package domain

import (
	"crypto/rsa"
	"fmt"
)

type AuthMethod string

const (
	AuthMethodStaticSecret AuthMethod = "password"
	AuthMethodKeyPair      AuthMethod = "keypair"
	AuthMethodOAuth2       AuthMethod = "oauth"
)

// Field names of the warehouse bundle.
const (
	FieldAuthMethod   = "authMethod"
	FieldHost         = "host"
	FieldUsername     = "username"
	FieldPassword     = "password"
	FieldPrivateKey   = "privateKey"
	FieldPassphrase   = "passphrase"
	FieldAccessToken  = "accessToken"
	FieldRefreshToken = "refreshToken"
	FieldExpiresAt    = "expiresAt"
	FieldRole         = "role"
	FieldWarehouse    = "warehouse"
	FieldDatabase     = "database"
	FieldSchema       = "schema"
)

func ParseAuthMethod(s string) (AuthMethod, error) {
	switch AuthMethod(s) {
	case AuthMethodStaticSecret, AuthMethodKeyPair, AuthMethodOAuth2:
		return AuthMethod(s), nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedAuthMethod, s)
}

// ConnectionTarget holds the non-secret coordinates shared by every
// descriptor variant.
type ConnectionTarget struct {
	Host      string
	Username  string
	Role      string
	Warehouse string
	Database  string
	Schema    string
}

// ConnectionDescriptor is assembled from a decrypted bundle for a single
// verification and discarded afterwards. The variant set is closed: only the
// three descriptor types below implement it.
type ConnectionDescriptor interface {
	Method() AuthMethod
	Target() ConnectionTarget
	Accept(v DescriptorVisitor) error

	isConnectionDescriptor()
}

// DescriptorVisitor must handle every descriptor variant. Adding a variant
// adds a method here, which breaks every consumer until it handles it.
type DescriptorVisitor interface {
	VisitSecret(d SecretDescriptor) error
	VisitKeyPair(d KeyPairDescriptor) error
	VisitOAuth(d OAuthDescriptor) error
}

type SecretDescriptor struct {
	ConnectionTarget
	Password string
}

func (d SecretDescriptor) Method() AuthMethod               { return AuthMethodStaticSecret }
func (d SecretDescriptor) Target() ConnectionTarget         { return d.ConnectionTarget }
func (d SecretDescriptor) Accept(v DescriptorVisitor) error { return v.VisitSecret(d) }
func (SecretDescriptor) isConnectionDescriptor()            {}

type KeyPairDescriptor struct {
	ConnectionTarget
	PrivateKey *rsa.PrivateKey
}

func (d KeyPairDescriptor) Method() AuthMethod               { return AuthMethodKeyPair }
func (d KeyPairDescriptor) Target() ConnectionTarget         { return d.ConnectionTarget }
func (d KeyPairDescriptor) Accept(v DescriptorVisitor) error { return v.VisitKeyPair(d) }
func (KeyPairDescriptor) isConnectionDescriptor()            {}

type OAuthDescriptor struct {
	ConnectionTarget
	AccessToken string
}

func (d OAuthDescriptor) Method() AuthMethod               { return AuthMethodOAuth2 }
func (d OAuthDescriptor) Target() ConnectionTarget         { return d.ConnectionTarget }
func (d OAuthDescriptor) Accept(v DescriptorVisitor) error { return v.VisitOAuth(d) }
func (OAuthDescriptor) isConnectionDescriptor()            {}

package snowflake

import (
	"strings"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/snowflakedb/gosnowflake"
)

const (
	hostSuffix      = ".snowflakecomputing.com"
	applicationName = "flowbaker-vault"
)

// AccountFromHost accepts either a bare account identifier or the full
// account URL host.
func AccountFromHost(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimSuffix(host, "/")

	return strings.TrimSuffix(strings.ToLower(host), hostSuffix)
}

// AccountURL is the base URL of the account, used for the OAuth endpoints.
func AccountURL(host string) string {
	return "https://" + AccountFromHost(host) + hostSuffix
}

// configBuilder translates a descriptor into driver configuration. It
// handles every descriptor variant.
type configBuilder struct {
	cfg *gosnowflake.Config
}

func (b *configBuilder) VisitSecret(d domain.SecretDescriptor) error {
	b.cfg.Authenticator = gosnowflake.AuthTypeSnowflake
	b.cfg.Password = d.Password
	return nil
}

func (b *configBuilder) VisitKeyPair(d domain.KeyPairDescriptor) error {
	b.cfg.Authenticator = gosnowflake.AuthTypeJwt
	b.cfg.PrivateKey = d.PrivateKey
	return nil
}

func (b *configBuilder) VisitOAuth(d domain.OAuthDescriptor) error {
	b.cfg.Authenticator = gosnowflake.AuthTypeOAuth
	b.cfg.Token = d.AccessToken
	return nil
}

// BuildConfig returns the driver configuration for descriptor.
func BuildConfig(descriptor domain.ConnectionDescriptor) (*gosnowflake.Config, error) {
	target := descriptor.Target()

	cfg := &gosnowflake.Config{
		Account:     AccountFromHost(target.Host),
		User:        target.Username,
		Warehouse:   target.Warehouse,
		Role:        target.Role,
		Database:    target.Database,
		Schema:      target.Schema,
		Application: applicationName,
	}

	if err := descriptor.Accept(&configBuilder{cfg: cfg}); err != nil {
		return nil, err
	}

	return cfg, nil
}

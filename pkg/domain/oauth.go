package domain

import "time"

// Field names of the OAuth application registration bundle.
const (
	FieldClientID     = "clientId"
	FieldClientSecret = "clientSecret"
	FieldAuthURL      = "authUrl"
	FieldTokenURL     = "tokenUrl"
	FieldRedirectURI  = "redirectUri"
	FieldScope        = "scope"
)

// OAuthApp is a tenant's OAuth application registration with the warehouse,
// with the client secret already decrypted.
type OAuthApp struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURI  string
	Scope        string
}

// OAuthTokens is what a token endpoint hands back. RefreshToken is empty when
// the provider did not issue one.
type OAuthTokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

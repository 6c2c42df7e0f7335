package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const DefaultTokenTimeout = 10 * time.Second

// TokenClient talks to a provider token endpoint.
type TokenClient interface {
	Refresh(ctx context.Context, app domain.OAuthApp, refreshToken string) (domain.OAuthTokens, error)
	Exchange(ctx context.Context, app domain.OAuthApp, code string) (domain.OAuthTokens, error)
}

type HTTPTokenClient struct {
	httpClient *http.Client
	timeout    time.Duration
}

type HTTPTokenClientOption func(*HTTPTokenClient)

func WithHTTPClient(client *http.Client) HTTPTokenClientOption {
	return func(c *HTTPTokenClient) {
		c.httpClient = client
	}
}

func WithTokenTimeout(timeout time.Duration) HTTPTokenClientOption {
	return func(c *HTTPTokenClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func NewHTTPTokenClient(opts ...HTTPTokenClientOption) *HTTPTokenClient {
	c := &HTTPTokenClient{
		timeout: DefaultTokenTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}

	return c
}

func oauthConfig(app domain.OAuthApp) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     app.ClientID,
		ClientSecret: app.ClientSecret,
		RedirectURL:  app.RedirectURI,
		Scopes:       strings.Fields(app.Scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:   app.AuthURL,
			TokenURL:  app.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (c *HTTPTokenClient) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), cancel
}

// Refresh exchanges a refresh token for a new access token. The returned
// RefreshToken is only set when the provider rotated it.
func (c *HTTPTokenClient) Refresh(ctx context.Context, app domain.OAuthApp, refreshToken string) (domain.OAuthTokens, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	// Without refresh_token in the response the library carries the old
	// value forward, so rotation shows up as a changed value.
	token, err := oauthConfig(app).TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return domain.OAuthTokens{}, tokenEndpointError("refresh", err)
	}

	tokens := domain.OAuthTokens{
		AccessToken: token.AccessToken,
		Expiry:      token.Expiry,
	}

	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		tokens.RefreshToken = token.RefreshToken
	}

	return tokens, nil
}

// Exchange completes the authorization-code grant.
func (c *HTTPTokenClient) Exchange(ctx context.Context, app domain.OAuthApp, code string) (domain.OAuthTokens, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	token, err := oauthConfig(app).Exchange(ctx, code)
	if err != nil {
		return domain.OAuthTokens{}, tokenEndpointError("exchange", err)
	}

	return domain.OAuthTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}, nil
}

// AuthCodeURL is where the user is sent to grant access.
func AuthCodeURL(app domain.OAuthApp, state string) string {
	return oauthConfig(app).AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "query"))
}

// tokenEndpointError reduces a token endpoint failure to a RefreshError. The
// provider body is logged here and does not travel further.
func tokenEndpointError(grant string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		statusCode := 0
		if retrieveErr.Response != nil {
			statusCode = retrieveErr.Response.StatusCode
		}

		log.Warn().
			Str("grant", grant).
			Int("status_code", statusCode).
			Str("body", string(retrieveErr.Body)).
			Msg("Token endpoint rejected request")

		message := retrieveErr.ErrorCode
		if message == "" {
			message = fmt.Sprintf("token endpoint returned status %d", statusCode)
		}

		return &domain.RefreshError{StatusCode: statusCode, ProviderMessage: message}
	}

	log.Warn().Err(err).Str("grant", grant).Msg("Token endpoint request failed")

	if strings.Contains(err.Error(), "missing access_token") {
		return &domain.RefreshError{ProviderMessage: "no access_token returned"}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.RefreshError{ProviderMessage: "token endpoint timed out"}
	}

	return &domain.RefreshError{ProviderMessage: "token endpoint unreachable"}
}

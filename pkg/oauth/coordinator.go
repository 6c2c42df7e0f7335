// Package oauth repairs expired warehouse OAuth sessions. The coordinator
// probes, refreshes at most once, and probes at most once more.
package oauth

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/flowbaker/vault/pkg/authmethod"
	"github.com/flowbaker/vault/pkg/domain"
	"github.com/rs/zerolog/log"
)

type state int

const (
	stateProbing state = iota
	stateRefreshing
)

func (s state) String() string {
	switch s {
	case stateProbing:
		return "probing"
	case stateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Observer is told about every refresh attempt.
type Observer interface {
	ObserveRefresh(outcome string)
}

type VerifyParams struct {
	TenantID      string
	IntegrationID domain.IntegrationType
	Method        domain.AuthMethod
	// Fields are the decrypted bundle fields.
	Fields  map[string]string
	Timeout time.Duration
}

type Outcome struct {
	Result    domain.VerifyResult
	Refreshed bool
	Probes    int
}

type CoordinatorDependencies struct {
	Store    domain.CredentialStore
	Cipher   domain.FieldCipher
	Verifier domain.ConnectionVerifier
	Apps     *AppRegistry
	Tokens   TokenClient
	Observer Observer
}

type Coordinator struct {
	store    domain.CredentialStore
	cipher   domain.FieldCipher
	verifier domain.ConnectionVerifier
	apps     *AppRegistry
	tokens   TokenClient
	observer Observer
}

func NewCoordinator(deps CoordinatorDependencies) *Coordinator {
	return &Coordinator{
		store:    deps.Store,
		cipher:   deps.Cipher,
		verifier: deps.Verifier,
		apps:     deps.Apps,
		tokens:   deps.Tokens,
		observer: deps.Observer,
	}
}

// Verify probes the connection described by params. An auth failure on an
// OAuth bundle holding a refresh token triggers one refresh, one persist and
// one re-probe; the second result is final either way. Errors are returned
// for incomplete credentials, refresh failures and persistence failures;
// every other outcome is a VerifyResult.
func (c *Coordinator) Verify(ctx context.Context, params VerifyParams) (Outcome, error) {
	fields := maps.Clone(params.Fields)
	if fields == nil {
		fields = map[string]string{}
	}

	var outcome Outcome
	current := stateProbing

	for {
		switch current {
		case stateProbing:
			descriptor, err := authmethod.Describe(params.Method, fields)
			if err != nil {
				return outcome, err
			}

			outcome.Result = c.verifier.Verify(ctx, descriptor, params.Timeout)
			outcome.Probes++

			if !c.canRefresh(params.Method, outcome, fields) {
				return outcome, nil
			}

			log.Info().
				Str("tenant_id", params.TenantID).
				Str("result", string(outcome.Result.Kind)).
				Msg("Access token rejected, refreshing")

			current = stateRefreshing

		case stateRefreshing:
			tokens, err := c.refresh(ctx, params.TenantID, fields[domain.FieldRefreshToken])
			if err != nil {
				c.observe("failed")
				return outcome, err
			}

			if err := c.persist(ctx, params, tokens); err != nil {
				c.observe("persist_failed")
				return outcome, err
			}

			fields[domain.FieldAccessToken] = tokens.AccessToken
			if tokens.RefreshToken != "" {
				fields[domain.FieldRefreshToken] = tokens.RefreshToken
			}

			outcome.Refreshed = true
			c.observe("succeeded")

			current = stateProbing

		default:
			return outcome, fmt.Errorf("coordinator reached unknown state %s", current)
		}
	}
}

func (c *Coordinator) canRefresh(method domain.AuthMethod, outcome Outcome, fields map[string]string) bool {
	return method == domain.AuthMethodOAuth2 &&
		!outcome.Refreshed &&
		outcome.Result.IsAuthFailure() &&
		fields[domain.FieldRefreshToken] != ""
}

func (c *Coordinator) refresh(ctx context.Context, tenantID string, refreshToken string) (domain.OAuthTokens, error) {
	app, err := c.apps.Load(ctx, tenantID)
	if err != nil {
		return domain.OAuthTokens{}, err
	}

	tokens, err := c.tokens.Refresh(ctx, app, refreshToken)
	if err != nil {
		return domain.OAuthTokens{}, err
	}

	if tokens.AccessToken == "" {
		return domain.OAuthTokens{}, &domain.RefreshError{ProviderMessage: "no access_token returned"}
	}

	return tokens, nil
}

// persist writes only the token fields. The refresh token is written only
// when the provider issued a new one.
func (c *Coordinator) persist(ctx context.Context, params VerifyParams, tokens domain.OAuthTokens) error {
	update, err := TokenFields(c.cipher, tokens)
	if err != nil {
		return err
	}

	if err := c.store.Upsert(ctx, params.TenantID, params.IntegrationID, update); err != nil {
		return fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	return nil
}

func (c *Coordinator) observe(outcome string) {
	if c.observer != nil {
		c.observer.ObserveRefresh(outcome)
	}
}

// TokenFields seals tokens into bundle fields ready for a merge upsert.
func TokenFields(fc domain.FieldCipher, tokens domain.OAuthTokens) (map[string]string, error) {
	update := map[string]string{}

	accessToken, err := fc.Encrypt(tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	update[domain.FieldAccessToken] = accessToken

	if tokens.RefreshToken != "" {
		refreshToken, err := fc.Encrypt(tokens.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		update[domain.FieldRefreshToken] = refreshToken
	}

	if !tokens.Expiry.IsZero() {
		update[domain.FieldExpiresAt] = tokens.Expiry.UTC().Format(time.RFC3339)
	}

	return update, nil
}

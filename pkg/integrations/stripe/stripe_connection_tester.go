package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/balance"
)

const FieldSecretKey = "secretKey"

var Definition = domain.ConnectorDefinition{
	Type:            domain.IntegrationType_Stripe,
	Name:            "Stripe",
	RequiredFields:  []string{FieldSecretKey},
	SensitiveFields: []string{FieldSecretKey},
}

// StripeConnectionTester builds a client per call. The package-level
// stripe.Key is never touched, so concurrent tenants cannot leak keys into
// each other's probes.
type StripeConnectionTester struct {
	backend stripe.Backend
}

func NewStripeConnectionTester(deps domain.IntegrationDeps) domain.SourceConnector {
	config := &stripe.BackendConfig{
		HTTPClient:        deps.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if deps.BaseURL != "" {
		config.URL = stripe.String(deps.BaseURL)
	}

	return &StripeConnectionTester{
		backend: stripe.GetBackendWithConfig(stripe.APIBackend, config),
	}
}

func (c *StripeConnectionTester) Definition() domain.ConnectorDefinition {
	return Definition
}

func (c *StripeConnectionTester) TestConnection(ctx context.Context, params domain.TestConnectionParams) (bool, error) {
	client := balance.Client{B: c.backend, Key: params.Credentials[FieldSecretKey]}

	balanceParams := &stripe.BalanceParams{}
	balanceParams.Context = ctx

	if _, err := client.Get(balanceParams); err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode != 0 {
			log.Warn().
				Int("status_code", stripeErr.HTTPStatusCode).
				Str("type", string(stripeErr.Type)).
				Msg("Stripe rejected credentials")
			return false, nil
		}

		return false, fmt.Errorf("failed to reach Stripe: %w", err)
	}

	return true, nil
}

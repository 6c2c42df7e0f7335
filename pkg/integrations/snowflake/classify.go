package snowflake

import (
	"context"
	"errors"
	"regexp"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/snowflakedb/gosnowflake"
)

// Login failure codes returned by the Snowflake authentication endpoint.
// Revisit when the provider changes its error surface.
const (
	errNumberIncorrectCredentials = 390100
	errNumberAccountLocked        = 390102
	errNumberUserLocked           = 390101
	errNumberJWTInvalid           = 390144
	errNumberOAuthTokenInvalid    = 390303
	errNumberOAuthTokenExpired    = 390318
)

var (
	expiredPattern = regexp.MustCompile(`(?i)expired`)
	invalidPattern = regexp.MustCompile(`(?i)invalid|unauthori[sz]ed|incorrect|jwt|oauth|token`)
)

// ClassifyError maps a driver error to a verification result. It is the only
// place that interprets Snowflake error codes and messages.
func ClassifyError(err error) domain.VerifyResult {
	if err == nil {
		return domain.ResultOk()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ResultTimeout()
	}

	var sfErr *gosnowflake.SnowflakeError
	if errors.As(err, &sfErr) {
		switch sfErr.Number {
		case errNumberOAuthTokenExpired:
			return domain.ResultAuthExpired()
		case errNumberOAuthTokenInvalid,
			errNumberIncorrectCredentials,
			errNumberJWTInvalid,
			errNumberUserLocked,
			errNumberAccountLocked:
			return domain.ResultAuthInvalid()
		}
	}

	message := err.Error()

	switch {
	case expiredPattern.MatchString(message):
		return domain.ResultAuthExpired()
	case invalidPattern.MatchString(message):
		return domain.ResultAuthInvalid()
	}

	return domain.ResultNetworkError(describeDriverError(err))
}

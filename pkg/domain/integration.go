package domain

import (
	"errors"
)

var (
	ErrIntegrationNotFound = errors.New("integration not found")
)

type IntegrationType string

const (
	IntegrationType_Snowflake         IntegrationType = "snowflake"
	IntegrationType_SnowflakeOAuthApp IntegrationType = "snowflake_oauth_app"

	IntegrationType_NClarity    IntegrationType = "nclarity"
	IntegrationType_SageIntacct IntegrationType = "sageintacct"
	IntegrationType_Stripe      IntegrationType = "stripe"
	IntegrationType_Github      IntegrationType = "github"
	IntegrationType_Gitlab      IntegrationType = "gitlab"
	IntegrationType_Linear      IntegrationType = "linear"
	IntegrationType_Notion      IntegrationType = "notion"
)

// IsReserved reports whether the integration id belongs to the warehouse
// rather than to a source connector.
func (t IntegrationType) IsReserved() bool {
	return t == IntegrationType_Snowflake || t == IntegrationType_SnowflakeOAuthApp
}

package initialization

import (
	"context"
	"fmt"
	"net/http"

	"github.com/flowbaker/vault/internal/auth"
	"github.com/flowbaker/vault/internal/config"
	"github.com/flowbaker/vault/internal/controllers"
	"github.com/flowbaker/vault/internal/managers"
	"github.com/flowbaker/vault/internal/metrics"
	"github.com/flowbaker/vault/internal/scheduler"
	"github.com/flowbaker/vault/internal/server"
	"github.com/flowbaker/vault/internal/version"
	"github.com/flowbaker/vault/pkg/audit"
	"github.com/flowbaker/vault/pkg/cipher"
	"github.com/flowbaker/vault/pkg/clients/etl"
	"github.com/flowbaker/vault/pkg/connectors"
	"github.com/flowbaker/vault/pkg/domain"
	"github.com/flowbaker/vault/pkg/integrations/snowflake"
	"github.com/flowbaker/vault/pkg/oauth"

	"github.com/rs/zerolog/log"
)

// BuildVaultDependencies opens the store and wires every component behind
// the HTTP server.
func BuildVaultDependencies(ctx context.Context, cfg *config.Config) (*VaultDependencies, error) {
	log.Info().Msg("Building vault dependencies")

	fieldCipher, err := cipher.NewAESCipher(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create field cipher: %w", err)
	}

	signatureVerifier, err := auth.NewSignatureVerifier(cfg.APISigningPublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create signature verifier: %w", err)
	}

	handle, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	vaultMetrics := metrics.New()
	auditTrail := audit.NewTrail(handle.Audit)

	integrationSelector := domain.NewIntegrationSelector()
	RegisterConnectors(integrationSelector, domain.IntegrationDeps{
		HTTPClient: &http.Client{Timeout: cfg.ProbeTimeout},
	})

	aggregator := connectors.NewAggregator(connectors.AggregatorDependencies{
		Selector:     integrationSelector,
		Store:        handle.Store,
		Cipher:       fieldCipher,
		ProbeTimeout: cfg.ProbeTimeout,
		Observer:     vaultMetrics,
		Audit:        auditTrail,
	})

	warehouseVerifier := snowflake.NewVerifier()
	apps := oauth.NewAppRegistry(oauth.AppRegistryDependencies{
		Store:  handle.Store,
		Cipher: fieldCipher,
	})
	tokens := oauth.NewHTTPTokenClient(oauth.WithTokenTimeout(cfg.RefreshTimeout))

	coordinator := oauth.NewCoordinator(oauth.CoordinatorDependencies{
		Store:    handle.Store,
		Cipher:   fieldCipher,
		Verifier: warehouseVerifier,
		Apps:     apps,
		Tokens:   tokens,
		Observer: vaultMetrics,
	})

	warehouseManager := managers.NewWarehouseManager(managers.WarehouseManagerDependencies{
		Store:         handle.Store,
		Cipher:        fieldCipher,
		Verifier:      warehouseVerifier,
		Coordinator:   coordinator,
		Apps:          apps,
		Tokens:        tokens,
		VerifyTimeout: cfg.VerifyTimeout,
		Observer:      vaultMetrics,
		Audit:         auditTrail,
	})

	syncManager := managers.NewSyncManager(managers.SyncManagerDependencies{
		Selector: integrationSelector,
		Client:   etl.NewClient(etlClientOptions(cfg)...),
	})

	deps := &VaultDependencies{
		Aggregator: aggregator,
		Store:      handle.Store,
		closeStore: handle.Close,
	}

	if handle.KeepAlive != nil {
		deps.KeepAlive, err = scheduler.NewKeepAliveScheduler(scheduler.KeepAliveSchedulerDependencies{
			KeepAlive: handle.KeepAlive,
			Schedule:  cfg.KeepAliveSchedule,
			Observer:  vaultMetrics,
		})
		if err != nil {
			_ = handle.Close()
			return nil, err
		}
	}

	deps.Server = server.NewHTTPServer(server.HTTPServerDependencies{
		ConnectorController: controllers.NewConnectorController(controllers.ConnectorControllerDependencies{
			Aggregator:  aggregator,
			SyncManager: syncManager,
		}),
		WarehouseController: controllers.NewWarehouseController(controllers.WarehouseControllerDependencies{
			WarehouseManager: warehouseManager,
		}),
		AuditController: controllers.NewAuditController(controllers.AuditControllerDependencies{
			Trail: auditTrail,
		}),
		SignatureVerifier: signatureVerifier,
		Metrics:           vaultMetrics,
	})

	log.Info().
		Int("connectors", len(integrationSelector.Connectors())).
		Str("store_driver", cfg.StoreDriver).
		Msg("Vault dependencies ready")

	return deps, nil
}

// Runs started here are manual; the ETL service tells them apart from its
// own scheduled runs by the source header.
func etlClientOptions(cfg *config.Config) []etl.ClientOption {
	return []etl.ClientOption{
		etl.WithBaseURL(cfg.ETLBaseURL),
		etl.WithUserAgent("flowbaker-vault/" + version.GetShortVersion()),
		etl.WithHeader("X-Sync-Source", "manual"),
	}
}

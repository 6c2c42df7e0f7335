package initialization

import (
	"context"
	"fmt"

	"github.com/flowbaker/vault/internal/config"
	"github.com/flowbaker/vault/internal/scheduler"
	"github.com/flowbaker/vault/pkg/authmethod"
	"github.com/flowbaker/vault/pkg/domain"
	"github.com/flowbaker/vault/pkg/integrations/snowflake"
	"github.com/flowbaker/vault/pkg/store/memory"
	"github.com/flowbaker/vault/pkg/store/redisstore"
	"github.com/flowbaker/vault/pkg/store/sqlstore"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// StoreHandle is an opened credential store plus the hooks its backend
// supports. KeepAlive and Migrate are nil when the backend has nothing to do.
type StoreHandle struct {
	Store     domain.CredentialStore
	Audit     domain.AuditLog
	KeepAlive scheduler.KeepAliveFunc
	Migrate   func(ctx context.Context) error
	Close     func() error
}

// OpenStore builds the credential store selected by STORE_DRIVER.
func OpenStore(ctx context.Context, cfg *config.Config) (*StoreHandle, error) {
	log.Info().Str("driver", cfg.StoreDriver).Msg("Opening credential store")

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn().Msg("Memory store selected, credentials are lost on restart")
		store := memory.New()
		return &StoreHandle{
			Store: store,
			Audit: store,
			Close: func() error { return nil },
		}, nil
	case config.StoreDriverPostgres:
		keeper := sqlstore.NewKeeper(sqlstore.OpenPostgres(cfg.DatabaseURL), sqlstore.DefaultKeeperConfig())
		return sqlHandle(keeper, sqlstore.PostgresDialect), nil
	case config.StoreDriverSnowflake:
		open, err := snowflakeOpenFunc(cfg)
		if err != nil {
			return nil, err
		}
		keeper := sqlstore.NewKeeper(open, sqlstore.DefaultKeeperConfig())
		return sqlHandle(keeper, sqlstore.SnowflakeDialect), nil
	case config.StoreDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := redisstore.New(client, redisstore.Opts{})
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return &StoreHandle{
			Store:     store,
			Audit:     store,
			KeepAlive: store.Ping,
			Close:     client.Close,
		}, nil
	}

	return nil, fmt.Errorf("unsupported store driver: %s", cfg.StoreDriver)
}

func sqlHandle(keeper *sqlstore.Keeper, dialect sqlstore.Dialect) *StoreHandle {
	store := sqlstore.New(keeper, dialect)
	return &StoreHandle{
		Store:     store,
		Audit:     store,
		KeepAlive: keeper.KeepAlive,
		Migrate: func(ctx context.Context) error {
			return sqlstore.Migrate(ctx, keeper, dialect)
		},
		Close: keeper.Close,
	}
}

// snowflakeOpenFunc authenticates the store session with the service key
// pair, reusing the warehouse descriptor path.
func snowflakeOpenFunc(cfg *config.Config) (sqlstore.OpenFunc, error) {
	descriptor, err := authmethod.Describe(domain.AuthMethodKeyPair, map[string]string{
		domain.FieldHost:       cfg.SnowflakeAccount,
		domain.FieldUsername:   cfg.SnowflakeUser,
		domain.FieldPrivateKey: cfg.SnowflakePrivateKey,
		domain.FieldWarehouse:  cfg.SnowflakeWarehouse,
		domain.FieldDatabase:   cfg.SnowflakeDatabase,
		domain.FieldSchema:     cfg.SnowflakeSchema,
		domain.FieldRole:       cfg.SnowflakeRole,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read SNOWFLAKE_PRIVATE_KEY: %w", err)
	}

	sfConfig, err := snowflake.BuildConfig(descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to build snowflake store config: %w", err)
	}

	return sqlstore.OpenSnowflake(*sfConfig), nil
}

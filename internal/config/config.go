package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	StoreDriverMemory    = "memory"
	StoreDriverPostgres  = "postgres"
	StoreDriverSnowflake = "snowflake"
	StoreDriverRedis     = "redis"
)

// Config holds all vault configuration
type Config struct {
	HTTPAddress string
	LogLevel    string

	// Hex encoded AES-256 key for credential fields
	EncryptionKey       string
	APISigningPublicKey string

	StoreDriver string
	DatabaseURL string

	SnowflakeAccount    string
	SnowflakeUser       string
	SnowflakePrivateKey string
	SnowflakeWarehouse  string
	SnowflakeDatabase   string
	SnowflakeSchema     string
	SnowflakeRole       string

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	ETLBaseURL string

	VerifyTimeout     time.Duration
	RefreshTimeout    time.Duration
	ProbeTimeout      time.Duration
	KeepAliveSchedule string
}

var envMappings = map[string]string{
	"HTTPAddress":         "HTTP_ADDRESS",
	"LogLevel":            "LOG_LEVEL",
	"EncryptionKey":       "ENCRYPTION_KEY",
	"APISigningPublicKey": "API_SIGNING_PUBLIC_KEY",
	"StoreDriver":         "STORE_DRIVER",
	"DatabaseURL":         "DATABASE_URL",
	"SnowflakeAccount":    "SNOWFLAKE_ACCOUNT",
	"SnowflakeUser":       "SNOWFLAKE_USER",
	"SnowflakePrivateKey": "SNOWFLAKE_PRIVATE_KEY",
	"SnowflakeWarehouse":  "SNOWFLAKE_WAREHOUSE",
	"SnowflakeDatabase":   "SNOWFLAKE_DATABASE",
	"SnowflakeSchema":     "SNOWFLAKE_SCHEMA",
	"SnowflakeRole":       "SNOWFLAKE_ROLE",
	"RedisAddress":        "REDIS_ADDRESS",
	"RedisPassword":       "REDIS_PASSWORD",
	"RedisDB":             "REDIS_DB",
	"ETLBaseURL":          "ETL_BASE_URL",
	"VerifyTimeout":       "VERIFY_TIMEOUT",
	"RefreshTimeout":      "REFRESH_TIMEOUT",
	"ProbeTimeout":        "PROBE_TIMEOUT",
	"KeepAliveSchedule":   "KEEPALIVE_SCHEDULE",
}

// Load reads configuration from an optional config file and the environment.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, configKey)
		}
	}

	v.SetConfigName("vault_config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.vault")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.StoreDriver = strings.ToLower(strings.TrimSpace(config.StoreDriver))

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	log.Debug().
		Str("http_address", config.HTTPAddress).
		Str("store_driver", config.StoreDriver).
		Str("etl_base_url", config.ETLBaseURL).
		Msg("Config loaded")

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTPAddress", ":8080")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("StoreDriver", StoreDriverMemory)
	v.SetDefault("SnowflakeSchema", "PUBLIC")
	v.SetDefault("RedisAddress", "localhost:6379")
	v.SetDefault("RedisDB", 0)
	v.SetDefault("VerifyTimeout", 15*time.Second)
	v.SetDefault("RefreshTimeout", 10*time.Second)
	v.SetDefault("ProbeTimeout", 10*time.Second)
	v.SetDefault("KeepAliveSchedule", "@every 15m")
}

// validateConfig reports every missing variable at once.
func validateConfig(config *Config) error {
	var missingVars []string

	if config.EncryptionKey == "" {
		missingVars = append(missingVars, "ENCRYPTION_KEY")
	}

	if config.APISigningPublicKey == "" {
		missingVars = append(missingVars, "API_SIGNING_PUBLIC_KEY")
	}

	if config.ETLBaseURL == "" {
		missingVars = append(missingVars, "ETL_BASE_URL")
	}

	switch config.StoreDriver {
	case StoreDriverMemory, StoreDriverRedis:
	case StoreDriverPostgres:
		if config.DatabaseURL == "" {
			missingVars = append(missingVars, "DATABASE_URL")
		}
	case StoreDriverSnowflake:
		for _, required := range []struct{ value, name string }{
			{config.SnowflakeAccount, "SNOWFLAKE_ACCOUNT"},
			{config.SnowflakeUser, "SNOWFLAKE_USER"},
			{config.SnowflakePrivateKey, "SNOWFLAKE_PRIVATE_KEY"},
			{config.SnowflakeDatabase, "SNOWFLAKE_DATABASE"},
		} {
			if required.value == "" {
				missingVars = append(missingVars, required.name)
			}
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q (expected memory, postgres, snowflake or redis)", config.StoreDriver)
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %s\n\nGenerate keys with: %s keygen",
			strings.Join(missingVars, ", "),
			os.Args[0])
	}

	return nil
}

package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/flowbaker/vault/pkg/store/sqlstore/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/snowflakedb/gosnowflake"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate brings the schema up to date. Postgres uses the embedded goose
// migrations; Snowflake, which goose does not support, gets idempotent DDL.
func Migrate(ctx context.Context, keeper *Keeper, dialect Dialect) error {
	db, err := keeper.DB(ctx)
	if err != nil {
		return err
	}

	switch dialect.Name {
	case PostgresDialect.Name:
		goose.SetBaseFS(migrations.Migrations)
		if err := goose.SetDialect("pgx"); err != nil {
			return fmt.Errorf("failed to set migration dialect: %w", err)
		}

		if err := gooseUpContext(ctx, db, "."); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	case SnowflakeDialect.Name:
		if _, err := db.ExecContext(ctx, dialect.createBundleDDL); err != nil {
			return fmt.Errorf("failed to create credential table: %w", err)
		}

		if _, err := db.ExecContext(ctx, dialect.createAuditDDL); err != nil {
			return fmt.Errorf("failed to create audit table: %w", err)
		}
	default:
		return fmt.Errorf("unsupported store dialect: %s", dialect.Name)
	}

	return nil
}

// OpenPostgres returns an OpenFunc for a pgx-backed handle.
func OpenPostgres(dsn string) OpenFunc {
	return func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping postgres: %w", err)
		}

		return db, nil
	}
}

// OpenSnowflake returns an OpenFunc for the warehouse session used as the
// store backend.
func OpenSnowflake(cfg gosnowflake.Config) OpenFunc {
	return func(ctx context.Context) (*sql.DB, error) {
		db := sql.OpenDB(gosnowflake.NewConnector(gosnowflake.SnowflakeDriver{}, cfg))

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping snowflake: %w", err)
		}

		return db, nil
	}
}

package snowflake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/flowbaker/vault/pkg/verifier"
	"github.com/rs/zerolog/log"
	"github.com/snowflakedb/gosnowflake"
)

const probeQuery = "SELECT CURRENT_USER(), CURRENT_ROLE(), CURRENT_WAREHOUSE()"

// Dialer opens one dedicated warehouse session per verification. Sessions
// are never pooled or shared between verifications.
type Dialer struct{}

func NewDialer() *Dialer {
	return &Dialer{}
}

func (d *Dialer) Dial(ctx context.Context, descriptor domain.ConnectionDescriptor) (verifier.Connection, error) {
	cfg, err := BuildConfig(descriptor)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		cfg.LoginTimeout = time.Until(deadline)
	}

	db := sql.OpenDB(gosnowflake.NewConnector(gosnowflake.SnowflakeDriver{}, *cfg))
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Connection{db: db, conn: conn}, nil
}

type Connection struct {
	db   *sql.DB
	conn *sql.Conn
}

// Session is what the probe reports back about the authenticated session.
type Session struct {
	User      string
	Role      string
	Warehouse string
}

func (c *Connection) Probe(ctx context.Context) error {
	_, err := c.Session(ctx)
	return err
}

func (c *Connection) Session(ctx context.Context) (Session, error) {
	var user, role, warehouse sql.NullString

	if err := c.conn.QueryRowContext(ctx, probeQuery).Scan(&user, &role, &warehouse); err != nil {
		return Session{}, err
	}

	session := Session{
		User:      user.String,
		Role:      role.String,
		Warehouse: warehouse.String,
	}

	log.Debug().
		Str("user", session.User).
		Str("role", session.Role).
		Str("warehouse", session.Warehouse).
		Msg("Snowflake probe succeeded")

	return session, nil
}

func (c *Connection) Close() error {
	return errors.Join(c.conn.Close(), c.db.Close())
}

// NewVerifier wires the warehouse dialer to its error classifier.
func NewVerifier() *verifier.Verifier {
	return verifier.New(verifier.VerifierDependencies{
		Dialer:   NewDialer(),
		Classify: ClassifyError,
	})
}

func describeDriverError(err error) string {
	var sfErr *gosnowflake.SnowflakeError
	if errors.As(err, &sfErr) {
		return fmt.Sprintf("snowflake error %d (%s)", sfErr.Number, sfErr.SQLState)
	}

	return err.Error()
}

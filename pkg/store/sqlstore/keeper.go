package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// OpenFunc opens and validates a new database handle.
type OpenFunc func(ctx context.Context) (*sql.DB, error)

type KeeperConfig struct {
	// HealthCheckAfter is how long a handle may sit unchecked before the
	// next caller pings it.
	HealthCheckAfter time.Duration
	PingTimeout      time.Duration
	ConnectTimeout   time.Duration
}

func DefaultKeeperConfig() KeeperConfig {
	return KeeperConfig{
		HealthCheckAfter: time.Minute,
		PingTimeout:      5 * time.Second,
		ConnectTimeout:   15 * time.Second,
	}
}

// Keeper owns the one long-lived connection shared by every store call. A
// dead handle is replaced on demand; concurrent callers that find it dead
// share a single re-establishment.
type Keeper struct {
	open   OpenFunc
	config KeeperConfig

	mu          sync.RWMutex
	db          *sql.DB
	lastChecked time.Time

	reconnects singleflight.Group
	now        func() time.Time
}

func NewKeeper(open OpenFunc, config KeeperConfig) *Keeper {
	return &Keeper{
		open:   open,
		config: config,
		now:    time.Now,
	}
}

// DB returns a healthy handle, reconnecting when the current one is missing
// or fails its health check.
func (k *Keeper) DB(ctx context.Context) (*sql.DB, error) {
	k.mu.RLock()
	db := k.db
	fresh := db != nil && k.now().Sub(k.lastChecked) < k.config.HealthCheckAfter
	k.mu.RUnlock()

	if fresh {
		return db, nil
	}

	if db != nil {
		err := k.ping(ctx, db)
		if err == nil {
			k.markChecked(db)
			return db, nil
		}

		log.Warn().Err(err).Msg("Store connection failed health check, reconnecting")
	}

	return k.reconnect(ctx, db)
}

// MarkStale forces the next DB call to health-check the handle.
func (k *Keeper) MarkStale() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.lastChecked = time.Time{}
}

// KeepAlive runs a trivial statement so the remote session does not idle out.
func (k *Keeper) KeepAlive(ctx context.Context) error {
	db, err := k.DB(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, k.config.PingTimeout)
	defer cancel()

	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		k.MarkStale()
		return fmt.Errorf("keep-alive query failed: %w", err)
	}

	k.markChecked(db)

	return nil
}

func (k *Keeper) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.db == nil {
		return nil
	}

	err := k.db.Close()
	k.db = nil

	return err
}

func (k *Keeper) ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, k.config.PingTimeout)
	defer cancel()

	return db.PingContext(ctx)
}

func (k *Keeper) markChecked(db *sql.DB) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.db == db {
		k.lastChecked = k.now()
	}
}

func (k *Keeper) reconnect(ctx context.Context, dead *sql.DB) (*sql.DB, error) {
	result := k.reconnects.DoChan("reconnect", func() (any, error) {
		k.mu.RLock()
		current := k.db
		k.mu.RUnlock()

		// Another caller already replaced the handle we found dead.
		if current != nil && current != dead {
			return current, nil
		}

		// Detached from the caller: the result is shared with every waiter.
		openCtx, cancel := context.WithTimeout(context.Background(), k.config.ConnectTimeout)
		defer cancel()

		db, err := k.open(openCtx)
		if err != nil {
			return nil, err
		}

		k.mu.Lock()
		old := k.db
		k.db = db
		k.lastChecked = k.now()
		k.mu.Unlock()

		if old != nil {
			_ = old.Close()
		}

		log.Info().Msg("Store connection established")

		return db, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return nil, fmt.Errorf("failed to connect to store: %w", res.Err)
		}

		db, ok := res.Val.(*sql.DB)
		if !ok {
			return nil, errors.New("failed to connect to store: unexpected handle")
		}

		return db, nil
	}
}

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeeper_ConcurrentCallersShareOneConnect(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var opens atomic.Int32
	release := make(chan struct{})

	keeper := NewKeeper(func(ctx context.Context) (*sql.DB, error) {
		opens.Add(1)
		<-release
		return db, nil
	}, DefaultKeeperConfig())

	const callers = 8

	var wg sync.WaitGroup
	handles := make([]*sql.DB, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = keeper.DB(context.Background())
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, db, handles[i])
	}
}

func TestKeeper_ReconnectsAfterFailedPing(t *testing.T) {
	dead, deadMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	deadMock.ExpectPing().WillReturnError(errors.New("session expired"))
	deadMock.ExpectClose()

	fresh, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = fresh.Close() })

	handles := []*sql.DB{dead, fresh}
	var opens int

	keeper := NewKeeper(func(ctx context.Context) (*sql.DB, error) {
		db := handles[opens]
		opens++
		return db, nil
	}, DefaultKeeperConfig())

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	keeper.now = func() time.Time { return clock }

	first, err := keeper.DB(context.Background())
	require.NoError(t, err)
	assert.Same(t, dead, first)

	clock = clock.Add(2 * time.Minute)

	second, err := keeper.DB(context.Background())
	require.NoError(t, err)
	assert.Same(t, fresh, second)
	assert.Equal(t, 2, opens)
	require.NoError(t, deadMock.ExpectationsWereMet())
}

func TestKeeper_HealthyHandleIsReused(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mock.ExpectPing()

	var opens int
	keeper := NewKeeper(func(ctx context.Context) (*sql.DB, error) {
		opens++
		return db, nil
	}, DefaultKeeperConfig())

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	keeper.now = func() time.Time { return clock }

	_, err = keeper.DB(context.Background())
	require.NoError(t, err)

	// Within the health window: no ping.
	_, err = keeper.DB(context.Background())
	require.NoError(t, err)

	clock = clock.Add(2 * time.Minute)
	_, err = keeper.DB(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, opens)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKeeper_ConnectFailure(t *testing.T) {
	keeper := NewKeeper(func(ctx context.Context) (*sql.DB, error) {
		return nil, errors.New("account locked")
	}, DefaultKeeperConfig())

	_, err := keeper.DB(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account locked")
}

func TestKeeper_CallerContextCancelled(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	keeper := NewKeeper(func(ctx context.Context) (*sql.DB, error) {
		<-release
		return nil, errors.New("never used")
	}, DefaultKeeperConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := keeper.DB(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKeeper_KeepAlive(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery(`^SELECT 1$`).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	keeper := NewKeeper(func(ctx context.Context) (*sql.DB, error) {
		return db, nil
	}, DefaultKeeperConfig())

	require.NoError(t, keeper.KeepAlive(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

package distlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestRedisLock_Exclusive(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)

	a := NewRedisLock(rdb, "coupon-expiry", time.Minute)
	b := NewRedisLock(rdb, "coupon-expiry", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lp:lock:coupon-expiry"))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b does not own the key, so its release is a no-op
	require.NoError(t, b.Release(ctx))
	assert.True(t, mr.Exists(a.Key()))

	require.NoError(t, a.Release(ctx))
	assert.False(t, mr.Exists(a.Key()))
}

func TestRedisLock_Extend(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)

	l := NewRedisLock(rdb, "feed-import", time.Second)
	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	extended, err := l.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)
	assert.Greater(t, mr.TTL(l.Key()), 30*time.Second)

	mr.FastForward(2 * time.Minute)
	extended, err = l.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)
}

func TestFactoryRun(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	f := NewFactory(rdb, nil)

	calls := 0
	err := f.Run(ctx, "purge", time.Minute, func(context.Context) error {
		calls++
		assert.True(t, mr.Exists("lp:lock:purge"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, mr.Exists("lp:lock:purge"), "lock released after run")

	require.NoError(t, mr.Set("lp:lock:purge", "someone-else"))
	err = f.Run(ctx, "purge", time.Minute, func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.Equal(t, 1, calls)
}

func TestRun_PropagatesJobError(t *testing.T) {
	_, rdb := newRedis(t)
	boom := errors.New("boom")
	err := Run(context.Background(), NewRedisLock(rdb, "x", time.Minute), func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewAdvisoryLock(db, "task-reminders")
	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_RenewsLease(t *testing.T) {
	mr, rdb := newRedis(t)
	l := NewRedisLock(rdb, "task-reminders", 60*time.Millisecond)

	err := Run(context.Background(), l, func(ctx context.Context) error {
		// shrink the expiry; the keep-alive must push it back out
		mr.SetTTL(l.Key(), time.Millisecond)
		require.Eventually(t, func() bool {
			return mr.TTL(l.Key()) > 10*time.Millisecond
		}, time.Second, 5*time.Millisecond)
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(l.Key()))
}

func TestRun_LostLeaseCancelsJob(t *testing.T) {
	mr, rdb := newRedis(t)
	l := NewRedisLock(rdb, "feed-import", 30*time.Millisecond)

	err := Run(context.Background(), l, func(ctx context.Context) error {
		// another holder takes over the key
		require.NoError(t, mr.Set(l.Key(), "someone-else"))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return errors.New("job was not cancelled")
		}
	})
	assert.ErrorIs(t, err, ErrLockLost)
	got, _ := mr.Get(l.Key())
	assert.Equal(t, "someone-else", got, "release leaves a foreign key alone")
}

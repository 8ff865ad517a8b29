// Package distlock serializes scheduled jobs across worker replicas.
//
// Redis is preferred; when no Redis client is configured the lock falls
// back to a session-scoped PostgreSQL advisory lock.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lapublica/platform/internal/pkg/logger"
)

var (
	// ErrNotAcquired is returned by Run when another holder owns the lock.
	ErrNotAcquired = errors.New("distlock: lock held elsewhere")
	// ErrLockLost is returned by Run when a lease could not be renewed
	// and fn was cancelled.
	ErrLockLost = errors.New("distlock: lock lost while running")
)

// Locker is a non-blocking mutual exclusion primitive.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Leaser is a Locker held for a lease that expires unless extended.
type Leaser interface {
	Locker
	Lease() time.Duration
	Extend(ctx context.Context, ttl time.Duration) (bool, error)
}

// Factory builds named locks against whichever backend is configured.
type Factory struct {
	redis *redis.Client
	db    *sql.DB
}

// NewFactory returns a Factory. Either argument may be nil but not both.
func NewFactory(rdb *redis.Client, db *sql.DB) *Factory {
	return &Factory{redis: rdb, db: db}
}

// New creates a lock for key.
func (f *Factory) New(key string, ttl time.Duration) Locker {
	if f.redis != nil {
		return NewRedisLock(f.redis, key, ttl)
	}
	return NewAdvisoryLock(f.db, key)
}

// Run executes fn while holding the lock named key. It returns
// ErrNotAcquired without calling fn if the lock is taken.
func (f *Factory) Run(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	return Run(ctx, f.New(key, ttl), fn)
}

// Run executes fn while holding l. A Leaser is extended every third of its
// lease until fn returns; if the lease is lost fn's context is cancelled
// and Run returns ErrLockLost.
func Run(ctx context.Context, l Locker, fn func(context.Context) error) error {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	defer func() {
		// release with a fresh context so a cancelled job still frees the key
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Release(rctx)
	}()

	ls, ok := l.(Leaser)
	if !ok || ls.Lease() <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(ctx, ls, cancel)
	}()
	err = fn(ctx)
	lost := errors.Is(context.Cause(ctx), ErrLockLost)
	cancel(nil)
	<-done
	if lost {
		return ErrLockLost
	}
	return err
}

func keepAlive(ctx context.Context, l Leaser, cancel context.CancelCauseFunc) {
	t := time.NewTicker(l.Lease() / 3)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ok, err := l.Extend(ctx, l.Lease())
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// transient; the lease still has two thirds left
				logger.Warn("distlock: extend failed", "error", err)
				continue
			}
			if !ok {
				logger.Warn("distlock: lease lost")
				cancel(ErrLockLost)
				return
			}
		}
	}
}

// AdvisoryLock uses pg_try_advisory_lock. The lock is pinned to one
// connection because advisory locks are session scoped.
type AdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewAdvisoryLock derives a stable lock ID from key.
func NewAdvisoryLock(db *sql.DB, key string) *AdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(keyPrefix + key))
	return &AdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

func (l *AdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("distlock: get conn: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("distlock: try advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *AdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}

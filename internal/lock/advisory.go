package lock

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryLocker implements Locker with Postgres session-level advisory
// locks. Each held lock pins one pooled connection for the duration of the
// run; if the process dies the session closes and Postgres releases the lock,
// which is the sole recovery path for crashed runs.
type AdvisoryLocker struct {
	pool *pgxpool.Pool

	mu   sync.Mutex
	held map[string]*pgxpool.Conn
}

// NewAdvisoryLocker builds an advisory locker on the shared pool.
func NewAdvisoryLocker(pool *pgxpool.Pool) *AdvisoryLocker {
	return &AdvisoryLocker{
		pool: pool,
		held: make(map[string]*pgxpool.Conn),
	}
}

// TryLock acquires the advisory lock for the key, returning false without
// waiting when another session holds it.
func (l *AdvisoryLocker) TryLock(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	if _, ok := l.held[key]; ok {
		l.mu.Unlock()
		return false, nil
	}
	l.mu.Unlock()

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID(key)).Scan(&acquired); err != nil {
		conn.Release()
		return false, fmt.Errorf("failed to try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return false, nil
	}

	l.mu.Lock()
	l.held[key] = conn
	l.mu.Unlock()
	return true, nil
}

// Unlock releases the advisory lock and returns its connection to the pool.
func (l *AdvisoryLocker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	conn, ok := l.held[key]
	delete(l.held, key)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", lockID(key)); err != nil {
		return fmt.Errorf("failed to release advisory lock: %w", err)
	}
	return nil
}

// lockID folds the feed key into the 64-bit advisory lock space. FNV keeps
// the mapping stable across processes and restarts.
func lockID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("clientsync:" + key))
	return int64(h.Sum64())
}

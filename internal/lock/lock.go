// Package lock provides the cross-process, non-blocking mutual exclusion
// primitive that guarantees at most one live sync run per feed key.
package lock

import "context"

// Locker is a non-blocking try-lock keyed by feed identity. TryLock returns
// false immediately when another holder exists; it never queues or waits.
// Implementations must release the lock automatically when the holding
// session dies, so an abnormally terminated run cannot wedge a feed.
type Locker interface {
	TryLock(ctx context.Context, key string) (bool, error)
	Unlock(ctx context.Context, key string) error
}

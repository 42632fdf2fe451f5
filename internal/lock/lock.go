// Package lock provides per-order mutual exclusion for the lifecycle
// controller's critical section. Exactly one implementation is wired per
// deployment; the lifecycle controller depends only on this interface, so
// it never imports Redis directly.
package lock

import "context"

// Unlock releases a previously acquired lock. Calling it more than once is
// a caller bug but must not panic.
type Unlock func()

// Locker acquires exclusive access to a key, blocking (respecting ctx)
// until it is available or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

package lock

import "context"

// Lease is a held distributed lock. Lost is closed when the holder can no
// longer prove ownership, for example after the key expired or was taken over.
type Lease interface {
	Lost() <-chan struct{}
	Release()
}

// Locker hands out at most one Lease at a time across replicas. acquired=false
// with a nil error means another replica holds the lock.
type Locker interface {
	TryLock(ctx context.Context) (lease Lease, acquired bool, err error)
}

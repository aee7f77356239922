package partition

import (
	"context"
	"time"
)

// timedMutex is a mutual-exclusion primitive supporting bounded-wait
// acquisition, which sync.Mutex does not offer. It is the Go stand-in for
// the source's pthread_mutex_timedlock usage in
// as_partition_reserve_migrate_timeout.
type timedMutex struct {
	ch chan struct{}
}

func newTimedMutex() *timedMutex {
	m := &timedMutex{ch: make(chan struct{}, 1)}
	m.ch <- struct{}{}
	return m
}

// Lock blocks until the lock is acquired.
func (m *timedMutex) Lock() {
	<-m.ch
}

// Unlock releases the lock. Unlocking a lock that is not held is a
// programmer error, as with sync.Mutex.
func (m *timedMutex) Unlock() {
	m.ch <- struct{}{}
}

// TryLockTimeout attempts to acquire the lock within timeout, returning
// false if it could not.
func (m *timedMutex) TryLockTimeout(timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-m.ch:
			return true
		default:
			return false
		}
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-m.ch:
		return true
	case <-t.C:
		return false
	}
}

// TryLockContext attempts to acquire the lock until ctx is done.
func (m *timedMutex) TryLockContext(ctx context.Context) bool {
	select {
	case <-m.ch:
		return true
	case <-ctx.Done():
		return false
	}
}
